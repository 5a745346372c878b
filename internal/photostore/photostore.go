package photostore

import (
	"context"
	"io"
)

// PhotoStore reads restriction photos uploaded alongside submissions.
// Get returns domain.ErrNotFound (wrapped) for unknown keys.
type PhotoStore interface {
	Get(ctx context.Context, storageKey string) (io.ReadCloser, string, error)
}
