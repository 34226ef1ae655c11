package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/me/corohost/pkg/model"
)

// Store records script runs.
type Store interface {
	CreateRun(ctx context.Context, run *model.Run) error
	// FinishRun moves a running run to a terminal state.
	FinishRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	// ListRuns returns the newest runs first along with the total number
	// of runs matching opts.
	ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error)

	Close() error
	Migrate(ctx context.Context) error
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return "run_" + uuid.New().String()
}
