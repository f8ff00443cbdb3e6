package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rendis/conveyor/pkg/schema"
)

// FileStore keeps one JSON document per execution under a directory,
// named <id>.json. Writes go to a temp file in the same directory and are
// renamed into place, so readers only ever observe a complete document.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a FileStore.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "create log directory %s: %s", dir, err.Error()).WithCause(err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory backing the store.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Write persists the document via write-to-temp-then-rename.
func (s *FileStore) Write(ctx context.Context, id string, doc []byte) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, id+".*.tmp")
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "create temp file for %s: %s", id, err.Error()).WithCause(err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return schema.NewErrorf(schema.ErrCodeStore, "write %s: %s", id, err.Error()).WithCause(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return schema.NewErrorf(schema.ErrCodeStore, "sync %s: %s", id, err.Error()).WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return schema.NewErrorf(schema.ErrCodeStore, "close %s: %s", id, err.Error()).WithCause(err)
	}

	if err := os.Rename(tmpName, s.path(id)); err != nil {
		os.Remove(tmpName)
		return schema.NewErrorf(schema.ErrCodeStore, "rename %s into place: %s", id, err.Error()).WithCause(err)
	}
	return nil
}

// Read returns the document for id.
func (s *FileStore) Read(ctx context.Context, id string) ([]byte, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, schema.NewErrorf(schema.ErrCodeNotFound, "no execution log for %q", id)
		}
		return nil, schema.NewErrorf(schema.ErrCodeStore, "read %s: %s", id, err.Error()).WithCause(err)
	}
	return doc, nil
}

// Delete removes the document for id; a missing document is not an error.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return schema.NewErrorf(schema.ErrCodeStore, "delete %s: %s", id, err.Error()).WithCause(err)
	}
	return nil
}

// List returns the IDs of all persisted documents, sorted.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list %s: %s", s.dir, err.Error()).WithCause(err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error { return nil }

func validateID(id string) error {
	if id == "" {
		return schema.NewError(schema.ErrCodeValidation, "log id is empty")
	}
	if strings.ContainsAny(id, "/\\") || id != filepath.Base(id) {
		return schema.NewErrorf(schema.ErrCodeValidation, "log id %q contains path separators", id)
	}
	if strings.HasPrefix(id, ".") {
		return schema.NewError(schema.ErrCodeValidation, fmt.Sprintf("log id %q starts with a dot", id))
	}
	return nil
}
