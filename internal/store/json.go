package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rcliao/growthbot/internal/model"
)

// JSONLog implements KnowledgeLog on top of a JSON document of the form
// {"knowledge_entries": [...]}. Every mutation reads the whole file and
// rewrites it.
type JSONLog struct {
	path string
}

// NewJSONLog returns a log backed by the file at path. The file is created on
// the first write.
func NewJSONLog(path string) *JSONLog {
	return &JSONLog{path: path}
}

func (l *JSONLog) load() (model.KnowledgeFile, error) {
	var f model.KnowledgeFile
	ok, err := readJSON(l.path, &f)
	if err != nil || !ok {
		return model.KnowledgeFile{Entries: []model.KnowledgeEntry{}}, err
	}
	if f.Entries == nil {
		f.Entries = []model.KnowledgeEntry{}
	}
	return f, nil
}

func (l *JSONLog) Append(ctx context.Context, e model.KnowledgeEntry) (model.KnowledgeEntry, error) {
	if err := ctx.Err(); err != nil {
		return e, err
	}
	f, err := l.load()
	if err != nil {
		return e, err
	}
	if e.ID == "" {
		e.ID = newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	f.Entries = append(f.Entries, e)
	if err := writeJSON(l.path, f); err != nil {
		return e, err
	}
	return e, nil
}

func (l *JSONLog) All(ctx context.Context) ([]model.KnowledgeEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := l.load()
	if err != nil {
		return nil, err
	}
	return f.Entries, nil
}

func (l *JSONLog) Len(ctx context.Context) (int, error) {
	entries, err := l.All(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (l *JSONLog) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeJSON(l.path, model.KnowledgeFile{Entries: []model.KnowledgeEntry{}})
}

// JSONHistory implements PostHistory as a JSON array on disk.
type JSONHistory struct {
	path string
}

// NewJSONHistory returns a post history backed by the file at path.
func NewJSONHistory(path string) *JSONHistory {
	return &JSONHistory{path: path}
}

func (h *JSONHistory) Append(ctx context.Context, e model.PostHistoryEntry) (model.PostHistoryEntry, error) {
	if err := checkStatus(e); err != nil {
		return e, err
	}
	entries, err := h.All(ctx)
	if err != nil {
		return e, err
	}
	if e.ID == "" {
		e.ID = newID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	entries = append(entries, e)
	if err := writeJSON(h.path, entries); err != nil {
		return e, err
	}
	return e, nil
}

func (h *JSONHistory) All(ctx context.Context) ([]model.PostHistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries := []model.PostHistoryEntry{}
	if _, err := readJSON(h.path, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// readJSON decodes the file at path into v. A missing or empty file reports
// ok=false with no error.
func readJSON(path string, v any) (ok bool, err error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

// writeJSON replaces the file at path with the indented encoding of v.
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return writeFile(path, buf.Bytes())
}

func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
