// Package files exposes the recordings directory: listing, probing,
// deleting and opening recordings by bare file name.
package files

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/xrrecorder/internal/domain"
	"github.com/MrSnakeDoc/xrrecorder/internal/logger"
	"github.com/MrSnakeDoc/xrrecorder/internal/utils"
)

// Registry serves the recordings directory. The filesystem is the source of
// truth; nothing is cached between calls.
type Registry struct {
	dir    string
	prober Prober
	log    logger.Logger
}

func NewRegistry(dir string, prober Prober, log logger.Logger) *Registry {
	return &Registry{dir: dir, prober: prober, log: log}
}

// Dir returns the recordings directory.
func (r *Registry) Dir() string { return r.dir }

// ValidateName accepts only a bare file name inside the recordings
// directory.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".":
		return domain.WithOp(domain.ErrInvalidName, "files.validate")
	case strings.Contains(name, ".."),
		strings.ContainsAny(name, "/\\\x00"),
		filepath.Base(name) != name:
		return &domain.Error{Kind: domain.KindInvalidName, Op: "files.validate", Msg: "invalid file name " + strconv.Quote(name)}
	}
	return nil
}

// List returns the names of regular, non-hidden files, sorted.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		r.log.Error("failed to read recordings dir", logger.String("dir", r.dir), logger.Error(err))
		return nil, domain.Wrap(domain.KindIO, "files.list", err, "cannot read recordings directory")
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || !e.Type().IsRegular() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes one recording.
func (r *Registry) Delete(ctx context.Context, name string) error {
	path, err := r.resolve("files.delete", name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return mapFSError("files.delete", name, err)
	}
	r.log.Info("recording deleted", logger.String("name", name))
	return nil
}

// Probe returns size and media details for one recording.
func (r *Registry) Probe(ctx context.Context, name string) (FileDetail, error) {
	path, err := r.resolve("files.probe", name)
	if err != nil {
		return FileDetail{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return FileDetail{}, mapFSError("files.probe", name, err)
	}

	detail, err := r.prober.Probe(ctx, path)
	if err != nil {
		r.log.Warn("probe failed", logger.String("name", name), logger.Error(err))
		return FileDetail{}, err
	}
	detail.Name = name
	detail.Size = info.Size()
	detail.ModTime = info.ModTime().UTC().Format(time.RFC3339)
	return detail, nil
}

// Open returns the recording for streaming. The caller closes it.
func (r *Registry) Open(name string) (*os.File, fs.FileInfo, error) {
	path, err := r.resolve("files.open", name)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, mapFSError("files.open", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		utils.Close(f)
		return nil, nil, mapFSError("files.open", name, err)
	}
	if !info.Mode().IsRegular() {
		utils.Close(f)
		return nil, nil, domain.WithOp(domain.ErrNotFound, "files.open")
	}
	return f, info, nil
}

func (r *Registry) resolve(op, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			de.Op = op
		}
		return "", err
	}
	return filepath.Join(r.dir, name), nil
}

func mapFSError(op, name string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return domain.Wrap(domain.KindNotFound, op, err, "no such recording "+strconv.Quote(name))
	case errors.Is(err, fs.ErrPermission):
		return domain.Wrap(domain.KindPermissionDenied, op, err, "permission denied for "+strconv.Quote(name))
	default:
		return domain.Wrap(domain.KindIO, op, err, "filesystem error for "+strconv.Quote(name))
	}
}
