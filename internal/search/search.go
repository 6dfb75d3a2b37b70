// Package search talks to the reverse-image-search backend service.
package search

import (
	"context"

	"imgseekbot/internal/engine"
)

// Service performs a reverse image search against one backend engine and
// returns the raw textual result.
type Service interface {
	Search(ctx context.Context, eng engine.ID, image []byte) (string, error)
}
