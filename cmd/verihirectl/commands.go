package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"verihire/internal/resume"
	"verihire/internal/verification/token"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "verihirectl",
		Short:        "Operator tools for the verihire service",
		SilenceUsage: true,
	}
	root.AddCommand(newParseCmd(), newTokenCmd())
	return root
}

func newParseCmd() *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse a résumé file and print the structured result",
		Long:  `Extracts text from a .txt, .pdf, .doc(x), .rtf or .odt file and prints the work history, education and skills the parser finds.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			text, err := resume.ExtractText(f, filepath.Base(args[0]), "")
			if err != nil {
				return err
			}
			var opts []resume.Option
			if year > 0 {
				opts = append(opts, resume.WithClock(func() time.Time {
					return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
				}))
			}
			result := resume.NewParser(opts...).Parse(text)
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "reference year for open-ended dates (defaults to the current year)")
	return cmd
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Inspect verification request tokens",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "inspect [token]",
		Short: "Decode a request token without verifying its signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claims, err := token.Inspect(args[0])
			if err != nil {
				return fmt.Errorf("decode token: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), claims)
		},
	}, &cobra.Command{
		Use:   "hash [token]",
		Short: "Print the stored fingerprint of a request token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), token.Hash(args[0]))
			return err
		},
	})
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
