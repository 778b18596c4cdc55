package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"agentic_dcf/pkg/core/router"
)

// DefaultSessionDir is used when a FileSessionRepo is created with an empty dir.
var DefaultSessionDir = filepath.Join(".cache", "sessions")

// FileSessionRepo keeps one indented JSON file per session.
type FileSessionRepo struct {
	dir string
}

var _ SessionRepository = (*FileSessionRepo)(nil)

func NewFileSessionRepo(dir string) (*FileSessionRepo, error) {
	if dir == "" {
		dir = DefaultSessionDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileSessionRepo{dir: dir}, nil
}

func (r *FileSessionRepo) Dir() string { return r.dir }

// Save writes through a temp file so a crash never leaves a truncated session.
func (r *FileSessionRepo) Save(_ context.Context, s *router.Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	path := r.path(s.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to save session file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to save session file: %w", err)
	}
	return nil
}

func (r *FileSessionRepo) Load(_ context.Context, id string) (*router.Session, error) {
	data, err := os.ReadFile(r.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	var s router.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", id, err)
	}
	return &s, nil
}

// List scans the directory; files that fail to decode are skipped.
func (r *FileSessionRepo) List(_ context.Context, ticker string, limit int) ([]SessionSummary, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, err
	}
	var out []SessionSummary
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.dir, e.Name()))
		if err != nil {
			continue
		}
		var s router.Session
		if err := json.Unmarshal(data, &s); err != nil {
			continue
		}
		if ticker != "" && !strings.EqualFold(s.Ticker, ticker) {
			continue
		}
		out = append(out, summarize(&s, info.ModTime().UTC()))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *FileSessionRepo) path(id string) string {
	safe := strings.Map(func(c rune) rune {
		if c == '/' || c == '\\' || c == '.' {
			return '_'
		}
		return c
	}, id)
	return filepath.Join(r.dir, safe+".json")
}
