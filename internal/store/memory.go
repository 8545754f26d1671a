package store

import (
	"context"
	"sync"
	"time"

	"github.com/rcliao/growthbot/internal/model"
)

// MemoryLog is an in-process KnowledgeLog, used by tests and dry runs.
type MemoryLog struct {
	mu      sync.Mutex
	entries []model.KnowledgeEntry
}

// NewMemoryLog returns a log pre-filled with the given entries.
func NewMemoryLog(entries ...model.KnowledgeEntry) *MemoryLog {
	return &MemoryLog{entries: append([]model.KnowledgeEntry(nil), entries...)}
}

func (l *MemoryLog) Append(ctx context.Context, e model.KnowledgeEntry) (model.KnowledgeEntry, error) {
	if err := ctx.Err(); err != nil {
		return e, err
	}
	if e.ID == "" {
		e.ID = newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return e, nil
}

func (l *MemoryLog) All(ctx context.Context) ([]model.KnowledgeEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.KnowledgeEntry, len(l.entries))
	copy(out, l.entries)
	return out, nil
}

func (l *MemoryLog) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries), nil
}

func (l *MemoryLog) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	return nil
}

// MemoryHistory is an in-process PostHistory.
type MemoryHistory struct {
	mu      sync.Mutex
	entries []model.PostHistoryEntry
}

func (h *MemoryHistory) Append(ctx context.Context, e model.PostHistoryEntry) (model.PostHistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return e, err
	}
	if err := checkStatus(e); err != nil {
		return e, err
	}
	if e.ID == "" {
		e.ID = newID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	return e, nil
}

func (h *MemoryHistory) All(ctx context.Context) ([]model.PostHistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]model.PostHistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out, nil
}
