package graphstore

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const recordExt = ".yaml"

// FileStore keeps one YAML file per record in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create store directory %s", dir)
	}

	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", errors.Wrapf(ErrInvalidID, "%q", id)
	}

	return filepath.Join(s.dir, id+recordExt), nil
}

func (s *FileStore) Load(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(ErrNotFound, id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", path)
	}

	rec := &Record{}
	err = yaml.Unmarshal(data, rec)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to unmarshal %s", path)
	}

	return rec, nil
}

// Save writes the record to a temporary file then renames it over the previous one.
func (s *FileStore) Save(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec == nil {
		return ErrInvalidID
	}
	path, err := s.path(rec.ID)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "unable to marshal record")
	}

	tmp := path + ".tmp"
	err = os.WriteFile(tmp, data, 0o600)
	if err != nil {
		return errors.Wrapf(err, "unable to write %s", tmp)
	}
	err = os.Rename(tmp, path)
	if err != nil {
		return errors.Wrapf(err, "unable to rename %s", tmp)
	}

	return nil
}

func (s *FileStore) List(ctx context.Context) ([]Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to list %s", s.dir)
	}

	ids := []string{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != recordExt {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), recordExt))
	}
	slices.Sort(ids)

	res := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		res = append(res, *rec)
	}

	return res, nil
}
