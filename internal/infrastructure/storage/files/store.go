// Package files keeps uploaded images and attachments on the local disk and
// serves them under /uploads.
package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"setflow/internal/core/apperror"
	"setflow/internal/core/entity"
	"setflow/internal/domain/assetform"
	"setflow/pkg/logger"
)

// sniffLen is how much of a file is read to detect its type.
const sniffLen = 3072

// rasterImages are the image types served inline. SVG is excluded: it can
// carry script.
var rasterImages = []string{"image/png", "image/jpeg", "image/gif", "image/webp", "image/bmp", "image/avif"}

// activeTypes are stored as opaque binaries so browsers never render them.
var activeTypes = []string{
	"text/html", "application/xhtml+xml", "image/svg+xml",
	"text/xml", "application/xml", "application/javascript", "text/javascript",
}

func isAny(mt *mimetype.MIME, types []string) bool {
	for _, t := range types {
		if mt.Is(t) {
			return true
		}
	}
	return false
}

// extension picks the stored file extension from the sniffed type only.
func extension(mt *mimetype.MIME) string {
	ext := mt.Extension()
	if ext == "" || isAny(mt, activeTypes) {
		return ".bin"
	}
	return ext
}

// Inline reports whether a stored file name may be displayed by the
// browser; everything else is served as an attachment.
func Inline(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".avif":
		return true
	}
	return false
}

type Config struct {
	Dir      string
	BaseURL  string // "http://localhost:8080"; URLs are BaseURL + "/uploads/" + name
	MaxBytes int64
}

func DefaultConfig() Config {
	return Config{Dir: "./uploads", MaxBytes: 10 << 20}
}

// Store writes each upload under a fresh uuid name. It is safe for
// concurrent use.
type Store struct {
	cfg Config
}

var (
	_ assetform.ImageUploader = (*Store)(nil)
	_ assetform.FileUploader  = (*Store)(nil)
)

func New(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		cfg.Dir = DefaultConfig().Dir
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultConfig().MaxBytes
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{cfg: cfg}, nil
}

func (s *Store) Dir() string { return s.cfg.Dir }

func (s *Store) URL(name string) string {
	return s.cfg.BaseURL + "/uploads/" + name
}

// Save stores r and describes the result. Files larger than MaxBytes are
// refused.
func (s *Store) Save(ctx context.Context, name string, r io.Reader) (entity.FileDescriptor, error) {
	return s.save(ctx, name, r, false)
}

// SaveImage is Save restricted to raster image content.
func (s *Store) SaveImage(ctx context.Context, name string, r io.Reader) (entity.FileDescriptor, error) {
	return s.save(ctx, name, r, true)
}

func (s *Store) save(ctx context.Context, name string, r io.Reader, imageOnly bool) (entity.FileDescriptor, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return entity.FileDescriptor{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return entity.FileDescriptor{}, apperror.NewValidation("file is empty").WithDetail("file", name)
	}

	mt := mimetype.Detect(head)
	if imageOnly && !isAny(mt, rasterImages) {
		return entity.FileDescriptor{}, apperror.NewValidation("file is not an image").
			WithDetail("file", name).
			WithDetail("type", mt.String())
	}

	stored := uuid.NewString() + extension(mt)

	tmp, err := os.CreateTemp(s.cfg.Dir, ".upload-*")
	if err != nil {
		return entity.FileDescriptor{}, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	limited := io.LimitReader(io.MultiReader(bytes.NewReader(head), r), s.cfg.MaxBytes+1)
	size, err := io.Copy(tmp, limited)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return entity.FileDescriptor{}, fmt.Errorf("write upload: %w", err)
	}
	if size > s.cfg.MaxBytes {
		return entity.FileDescriptor{}, apperror.NewValidation("file is too large").
			WithDetail("file", name).
			WithDetail("maxBytes", s.cfg.MaxBytes)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.cfg.Dir, stored)); err != nil {
		return entity.FileDescriptor{}, fmt.Errorf("store upload: %w", err)
	}

	logger.Debug(ctx, "file stored", "name", name, "stored", stored, "size", size, "type", mt.String())
	return entity.FileDescriptor{
		Name: filepath.Base(name),
		URL:  s.URL(stored),
		Size: size,
		Type: mt.String(),
	}, nil
}

// Remove deletes a file previously returned by Save. Unknown URLs are ignored.
func (s *Store) Remove(url string) error {
	name := filepath.Base(url)
	if !strings.HasPrefix(url, s.URL("")) || name == "." || name == "/" {
		return nil
	}
	err := os.Remove(filepath.Join(s.cfg.Dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// UploadImage implements assetform.ImageUploader.
func (s *Store) UploadImage(ctx context.Context, u *assetform.Upload) (string, error) {
	fd, err := s.upload(ctx, u, true)
	if err != nil {
		return "", err
	}
	return fd.URL, nil
}

// UploadFiles implements assetform.FileUploader. When one upload fails the
// files stored before it are removed.
func (s *Store) UploadFiles(ctx context.Context, uploads []*assetform.Upload) ([]entity.FileDescriptor, error) {
	out := make([]entity.FileDescriptor, 0, len(uploads))
	for _, u := range uploads {
		fd, err := s.upload(ctx, u, false)
		if err != nil {
			for _, done := range out {
				if rerr := s.Remove(done.URL); rerr != nil {
					logger.Warn(ctx, "remove partial upload", "url", done.URL, "error", rerr)
				}
			}
			return nil, err
		}
		out = append(out, fd)
	}
	return out, nil
}

func (s *Store) upload(ctx context.Context, u *assetform.Upload, image bool) (entity.FileDescriptor, error) {
	if u == nil || u.Open == nil {
		return entity.FileDescriptor{}, apperror.NewValidation("no file content")
	}
	rc, err := u.Open()
	if err != nil {
		return entity.FileDescriptor{}, fmt.Errorf("open %s: %w", u.Name, err)
	}
	defer rc.Close()
	return s.save(ctx, u.Name, rc, image)
}
