package resume

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"
)

// MaxUploadBytes bounds the size of an uploaded résumé file.
const MaxUploadBytes = 5 << 20

// ErrUnsupportedType is returned for containers text cannot be extracted from.
var ErrUnsupportedType = errors.New("unsupported résumé file type")

// ExtractText returns the plain text of an uploaded résumé. Plain text is
// passed through; PDF, DOC(X), RTF and ODT go through docconv.
func ExtractText(r io.Reader, filename, contentType string) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return "", fmt.Errorf("upload exceeds %d bytes", MaxUploadBytes)
	}

	mimeType := detectMimeType(filename, contentType)
	switch mimeType {
	case "text/plain":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: text is not valid UTF-8", ErrUnsupportedType)
		}
		return string(data), nil
	case "application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/rtf",
		"application/vnd.oasis.opendocument.text":
		res, err := docconv.Convert(bytes.NewReader(data), mimeType, true)
		if err != nil {
			return "", fmt.Errorf("convert %s: %w", mimeType, err)
		}
		return res.Body, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}
}

func detectMimeType(filename, contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if ct != "" && ct != "application/octet-stream" {
		if ct == "text/rtf" {
			return "application/rtf"
		}
		return ct
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".text", ".md":
		return "text/plain"
	case "":
		return ct
	}
	return docconv.MimeTypeByExtension(filename)
}
