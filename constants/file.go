package constants

import (
	"mime"
	"path/filepath"
	"strings"
)

// Format is the coarse file format the extractor dispatches on.
type Format string

const (
	TEXT  Format = "TEXT"
	PDF   Format = "PDF"
	IMAGE Format = "IMAGE"
)

// MapMIMEToFormat resolves a declared MIME type to an extraction format.
// Returns "" for unsupported types.
func MapMIMEToFormat(mimeType string) Format {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch {
	case mt == "text/plain" || mt == "text/csv" || mt == "text/markdown":
		return TEXT
	case mt == "application/pdf":
		return PDF
	case strings.HasPrefix(mt, "image/"):
		return IMAGE
	default:
		return ""
	}
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// GuessMIME resolves a MIME type from a file name when the upload did not
// declare one.
func GuessMIME(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return ""
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	switch NormalizeExt(ext) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "pdf":
		return "application/pdf"
	case "txt":
		return "text/plain"
	default:
		return ""
	}
}
