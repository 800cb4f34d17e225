package core

import (
	"context"
	"io"
)

type (
	// Upload is a file received from a client.
	Upload struct {
		Filename    string
		ContentType string
		Size        int64
		Content     io.Reader
	}

	// FileStorage stores uploaded documents (transcripts, syllabi, program structures, Template3 PDFs).
	FileStorage interface {
		// Save stores the upload under a new unique key built from `folder` and returns that key.
		Save(ctx context.Context, folder string, upload Upload) (string, error)
		Open(ctx context.Context, key string) (io.ReadCloser, error)
		Delete(ctx context.Context, key string) error
	}
)
