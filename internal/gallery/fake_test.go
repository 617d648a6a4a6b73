package gallery

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/imgbed/internal/apperr"
	"github.com/starford/imgbed/internal/storage"
)

// fakeImage carries the source payload so tests can follow content across renames.
type fakeImage struct {
	*image.Gray
	payload string
}

// fakeCodec accepts sources starting with "img:" and writes "enc:" + payload.
// A payload of "img:encfail" decodes but fails to encode.
type fakeCodec struct{}

func (fakeCodec) Extension() string { return ".webp" }

func (fakeCodec) Decode(r io.Reader) (image.Image, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", err
	}
	if !strings.HasPrefix(string(data), "img:") {
		return nil, "", fmt.Errorf("fake: %w", apperr.ErrUnsupportedImage)
	}
	return fakeImage{Gray: image.NewGray(image.Rect(0, 0, 1, 1)), payload: string(data)}, "fake", nil
}

func (fakeCodec) Encode(w io.Writer, img image.Image) error {
	fi, ok := img.(fakeImage)
	if !ok {
		return errors.New("fake: foreign image")
	}
	if fi.payload == "img:encfail" {
		return fmt.Errorf("fake: %w", apperr.ErrUnsupportedImage)
	}
	_, err := io.WriteString(w, "enc:"+fi.payload)
	return err
}

func newTestStore(t *testing.T, opts ...Option) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	fs, err := storage.NewFS(root)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return New(fs, fakeCodec{}, opts...), root
}

func mustCreate(t *testing.T, s *Store, category string) {
	t.Helper()
	if _, err := s.CreateCategory(category); err != nil {
		t.Fatalf("CreateCategory(%q): %v", category, err)
	}
}

func mustInsert(t *testing.T, s *Store, category, payload string) string {
	t.Helper()
	name, err := s.Insert(t.Context(), category, strings.NewReader("img:"+payload))
	if err != nil {
		t.Fatalf("Insert(%q): %v", payload, err)
	}
	return name
}

// dirNames lists every entry of dir on disk, hidden ones included.
func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// contents maps each file in dir to its content.
func contents(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := map[string]string{}
	for _, name := range dirNames(t, dir) {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		out[name] = string(data)
	}
	return out
}

func writeRaw(t *testing.T, root, category, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(root, category, name), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}
