package storage

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Minimal file signatures recognised by content sniffing.
var (
	pngData  = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
	jpegData = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, make([]byte, 32)...)
	bmpData  = append([]byte("BM"), make([]byte, 40)...)
	pdfData  = []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n")
)

func newTestFS(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir(), "http://localhost:8081/storage/")
	require.NoError(t, err)
	return fs
}

func TestValidate(t *testing.T) {
	mt, err := Validate(MenuImages, pngData)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mt.String())

	_, err = Validate(MenuImages, jpegData)
	assert.NoError(t, err)

	_, err = Validate(MenuImages, pdfData)
	assert.ErrorIs(t, err, ErrUnsupportedType)

	// Logos accept any image type, menu images only the web formats
	_, err = Validate(MenuImages, bmpData)
	assert.ErrorIs(t, err, ErrUnsupportedType)
	_, err = Validate(Logos, bmpData)
	assert.NoError(t, err)

	_, err = Validate(Logos, nil)
	assert.ErrorIs(t, err, ErrEmptyFile)

	big := append(append([]byte{}, pngData...), make([]byte, Logos.MaxSize)...)
	_, err = Validate(Logos, big)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestReadLimited(t *testing.T) {
	data, err := ReadLimited(strings.NewReader("hello"), 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = ReadLimited(strings.NewReader("hello!"), 5)
	assert.True(t, errors.Is(err, ErrTooLarge))
}

func TestPutServeDelete(t *testing.T) {
	fs := newTestFS(t)

	obj, err := fs.Put(MenuImages, pngData)
	require.NoError(t, err)
	assert.Equal(t, "menu-images", obj.Bucket)
	assert.True(t, strings.HasSuffix(obj.Name, ".png"))
	assert.Equal(t, "http://localhost:8081/storage/menu-images/"+obj.Name, obj.URL)
	assert.FileExists(t, filepath.Join(fs.root, "menu-images", obj.Name))

	rr := httptest.NewRecorder()
	require.NoError(t, fs.Serve(rr, httptest.NewRequest("GET", "/", nil), obj.Bucket, obj.Name))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.True(t, bytes.Equal(pngData, rr.Body.Bytes()))

	require.NoError(t, fs.DeleteURL(obj.URL))
	_, err = os.Stat(filepath.Join(fs.root, "menu-images", obj.Name))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	// Deleting twice is fine
	assert.NoError(t, fs.Delete(obj.Bucket, obj.Name))
}

func TestObjectFromURL(t *testing.T) {
	fs := newTestFS(t)

	bucket, name, ok := fs.ObjectFromURL("http://localhost:8081/storage/logos/a.png")
	assert.True(t, ok)
	assert.Equal(t, "logos", bucket)
	assert.Equal(t, "a.png", name)

	for _, url := range []string{
		"https://cdn.example.com/logos/a.png",
		"http://localhost:8081/storage/other/a.png",
		"http://localhost:8081/storage/logos/",
		"http://localhost:8081/storage/logos/x/a.png",
	} {
		_, _, ok := fs.ObjectFromURL(url)
		assert.False(t, ok, url)
	}

	// Foreign URLs are left alone
	assert.NoError(t, fs.DeleteURL("https://cdn.example.com/logos/a.png"))
}

func TestPathRejectsTraversal(t *testing.T) {
	fs := newTestFS(t)

	assert.ErrorIs(t, fs.Delete("logos", "../secret"), ErrInvalidName)
	assert.ErrorIs(t, fs.Delete("logos", ".hidden"), ErrInvalidName)
	assert.ErrorIs(t, fs.Delete("nope", "a.png"), ErrUnknownBucket)

	rr := httptest.NewRecorder()
	err := fs.Serve(rr, httptest.NewRequest("GET", "/", nil), "logos", "missing.png")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
