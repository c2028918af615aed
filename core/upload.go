package core

import (
	"context"
	"io"
)

// Uploader is any service that can push a file to object storage and return
// its public URL.
type Uploader interface {
	Upload(ctx context.Context, filename string, file io.Reader) (url string, err error)
}
