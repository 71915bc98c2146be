package history

import (
	"context"

	"github.com/Hemang2904/jewelbench-flux-gen/internal/domain"
)

// Store records completed batch runs for the listing API. Only run
// metadata is stored; image bytes and dedupe state never leave the run
// that produced them.
type Store interface {
	Record(ctx context.Context, rec domain.RunRecord) error
	Get(ctx context.Context, id string) (domain.RunRecord, error)
	List(ctx context.Context, limit int) ([]domain.RunRecord, error)
}
