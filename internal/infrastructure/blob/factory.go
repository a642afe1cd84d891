package blob

import (
	"context"
	"fmt"
)

// Options selects and configures a backend.
type Options struct {
	Backend   string // local or s3
	LocalPath string
	S3        S3Config
}

// New returns the Store named by opts.Backend.
func New(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", "local":
		return NewLocal(opts.LocalPath)
	case "s3":
		if opts.S3.Bucket == "" {
			return nil, fmt.Errorf("s3 bucket is required")
		}
		return NewS3(ctx, opts.S3)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", opts.Backend)
	}
}
