// Package storage keeps uploaded images in named buckets on the local
// filesystem and serves them back under a public URL.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrUnknownBucket   = errors.New("unknown bucket")
	ErrInvalidName     = errors.New("invalid object name")
	ErrEmptyFile       = errors.New("file is empty")
)

// Bucket describes what a bucket accepts.
type Bucket struct {
	Name    string
	MaxSize int64
	// Allowed MIME types. A trailing "/*" accepts the whole family.
	Allowed []string
}

var (
	MenuImages = Bucket{
		Name:    "menu-images",
		MaxSize: 5 << 20,
		Allowed: []string{"image/jpeg", "image/png", "image/webp", "image/gif"},
	}
	Logos = Bucket{
		Name:    "logos",
		MaxSize: 2 << 20,
		Allowed: []string{"image/*"},
	}
)

var buckets = map[string]Bucket{
	MenuImages.Name: MenuImages,
	Logos.Name:      Logos,
}

// Object is a stored file.
type Object struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// FS stores buckets as directories under root.
type FS struct {
	root      string
	publicURL string
}

// NewFS creates the bucket directories under root. publicURL is the base
// the objects are served from, e.g. http://localhost:8081/storage.
func NewFS(root, publicURL string) (*FS, error) {
	for name := range buckets {
		if err := os.MkdirAll(filepath.Join(root, name), 0o755); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", name, err)
		}
	}
	return &FS{root: root, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Validate sniffs data and checks it against the bucket rules.
func Validate(b Bucket, data []byte) (*mimetype.MIME, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if int64(len(data)) > b.MaxSize {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, b.MaxSize)
	}
	mt := mimetype.Detect(data)
	for _, allowed := range b.Allowed {
		if family, ok := strings.CutSuffix(allowed, "/*"); ok {
			if strings.HasPrefix(mt.String(), family+"/") {
				return mt, nil
			}
			continue
		}
		if mt.Is(allowed) {
			return mt, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mt.String())
}

// ReadLimited reads at most limit bytes, failing with ErrTooLarge when
// the reader holds more.
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if n > limit {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, limit)
	}
	return buf.Bytes(), nil
}

// Put validates and writes data under a fresh random name.
func (s *FS) Put(b Bucket, data []byte) (Object, error) {
	mt, err := Validate(b, data)
	if err != nil {
		return Object{}, err
	}
	name := uuid.New().String() + mt.Extension()
	path := filepath.Join(s.root, b.Name, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Object{}, fmt.Errorf("write object: %w", err)
	}
	return Object{
		Bucket:      b.Name,
		Name:        name,
		URL:         s.PublicURL(b.Name, name),
		ContentType: mt.String(),
		Size:        int64(len(data)),
	}, nil
}

// Delete removes an object. Missing objects are not an error.
func (s *FS) Delete(bucket, name string) error {
	path, err := s.path(bucket, name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// DeleteURL removes the object behind a public URL, if it is one of ours.
func (s *FS) DeleteURL(url string) error {
	bucket, name, ok := s.ObjectFromURL(url)
	if !ok {
		return nil
	}
	return s.Delete(bucket, name)
}

// PublicURL is the address an object is served from.
func (s *FS) PublicURL(bucket, name string) string {
	return s.publicURL + "/" + bucket + "/" + name
}

// ObjectFromURL extracts bucket and name from a public URL.
func (s *FS) ObjectFromURL(url string) (bucket, name string, ok bool) {
	rest, found := strings.CutPrefix(url, s.publicURL+"/")
	if !found {
		return "", "", false
	}
	bucket, name, found = strings.Cut(rest, "/")
	if !found || name == "" || strings.Contains(name, "/") {
		return "", "", false
	}
	if _, known := buckets[bucket]; !known {
		return "", "", false
	}
	return bucket, name, true
}

// Serve writes an object to w with its sniffed content type.
func (s *FS) Serve(w http.ResponseWriter, r *http.Request, bucket, name string) error {
	path, err := s.path(bucket, name)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	w.Header().Set("Content-Type", mt.String())
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, name, info.ModTime(), f)
	return nil
}

func (s *FS) path(bucket, name string) (string, error) {
	if _, ok := buckets[bucket]; !ok {
		return "", ErrUnknownBucket
	}
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrInvalidName
	}
	return filepath.Join(s.root, bucket, name), nil
}
