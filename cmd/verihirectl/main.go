// Command verihirectl is the operator CLI: it runs the résumé parser on a
// local file and decodes request tokens without the service running.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
