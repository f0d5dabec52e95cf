// Package mediastore holds uploaded media blobs for a short time so call
// participants can fetch what another participant shared. Storage is
// deliberately ephemeral: blobs expire after a TTL and nothing survives a
// restart (or the Redis TTL, when Redis is configured).
package mediastore

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("mediastore: blob not found or expired")

type Blob struct {
	ID          string
	ContentType string
	Data        []byte
}

type Store interface {
	Put(ctx context.Context, contentType string, data []byte) (id string, err error)
	Get(ctx context.Context, id string) (Blob, error)
}
