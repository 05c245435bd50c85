// Package storage defines the object-store collaborator for uploaded files
// and generated audit packs. The engine only needs existence, URLs, and a
// freshness check; the actual bucket implementation lives with the caller.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/tradeware/exportguard/internal/model"
)

// ObjectStore is the file storage contract, keyed by storage path.
type ObjectStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Upload(ctx context.Context, key string, r io.Reader) error
	DownloadURL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// PackFresh reports whether an audit pack generated at packGeneratedAt is
// still current for the given documents. A pack goes stale the moment any
// input document changed after generation; there is no time-based expiry.
func PackFresh(packGeneratedAt time.Time, docs []model.Document) bool {
	if packGeneratedAt.IsZero() {
		return false
	}
	for i := range docs {
		if docs[i].UpdatedAt.After(packGeneratedAt) {
			return false
		}
	}
	return true
}
