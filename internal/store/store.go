// Package store provides the knowledge log and post history interfaces with
// JSON-file, SQLite and in-memory implementations.
//
// None of the implementations lock their backing files: the bot assumes a
// single writer process for the lifetime of a run.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/growthbot/internal/model"
)

// Names of the two knowledge logs.
const (
	RecentLog = "recent"
	AllLog    = "all"
)

// ErrClustersNotFound is returned when the cluster file does not exist yet.
var ErrClustersNotFound = errors.New("cluster file not found")

// KnowledgeLog is an append-only sequence of knowledge entries.
type KnowledgeLog interface {
	// Append adds an entry to the end of the log. An empty ID is filled in.
	Append(ctx context.Context, e model.KnowledgeEntry) (model.KnowledgeEntry, error)

	// All returns every entry in insertion order. A log that was never
	// written returns an empty slice.
	All(ctx context.Context) ([]model.KnowledgeEntry, error)

	// Len returns the number of entries.
	Len(ctx context.Context) (int, error)

	// Reset empties the log.
	Reset(ctx context.Context) error
}

// PostHistory is the append-only posting audit log.
type PostHistory interface {
	Append(ctx context.Context, e model.PostHistoryEntry) (model.PostHistoryEntry, error)
	All(ctx context.Context) ([]model.PostHistoryEntry, error)
}

func checkStatus(e model.PostHistoryEntry) error {
	if !model.ValidStatuses[e.Status] {
		return fmt.Errorf("invalid post status %q", e.Status)
	}
	return nil
}

func newID() string {
	return ulid.Make().String()
}
