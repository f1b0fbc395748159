// Package storage defines persistence for analysis runs. Each run
// archives the full compatibility report so past analyses can be
// rendered or diffed without re-ingesting the mod set. The SQLite
// implementation lives in the sqlite subpackage.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested run is missing.
var ErrNotFound = errors.New("run not found")

// Run is one archived analysis.
type Run struct {
	ID        string
	CreatedAt time.Time
	Packages  []string
	Issues    int
	Critical  int
	// Report is the serialized compatibility report JSON.
	Report []byte
}

// RunStore persists analysis runs.
type RunStore interface {
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, error)
	LatestRun(ctx context.Context) (Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	Close() error
}
