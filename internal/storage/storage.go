package storage

import (
	"context"
	"io"
	"mime"
	"path/filepath"
	"strings"
)

// AttachmentStore keeps uploaded files and hands back an opaque reference.
// Callers store the reference and never inspect file bytes.
type AttachmentStore interface {
	Put(ctx context.Context, name, contentType string, body io.Reader, size int64) (string, error)
	Remove(ctx context.Context, ref string) error
}

// ContentType resolves the MIME type from declared, falling back to the
// file extension and then to application/octet-stream.
func ContentType(fileName, declared string) string {
	if declared = strings.TrimSpace(declared); declared != "" {
		return declared
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName))); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
