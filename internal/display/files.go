package display

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"image-preprocessing/internal/core"
	imgio "image-preprocessing/internal/io"
)

// Files writes each shown value to <dir>/<slug(title)>.png.
type Files struct {
	dir    string
	loader *imgio.ImageLoader

	mu      sync.Mutex
	written map[string]struct{}
}

func NewFiles(dir string, loader *imgio.ImageLoader) (*Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if loader == nil {
		loader = imgio.NewImageLoader(nil)
	}
	return &Files{dir: dir, loader: loader, written: make(map[string]struct{})}, nil
}

func (f *Files) Show(title string, v core.Value) error {
	img, err := toImage(v)
	if err != nil {
		return err
	}
	if img != v {
		defer img.Close()
	}

	path := filepath.Join(f.dir, slug(title)+".png")
	if err := f.loader.SaveImage(img, path); err != nil {
		return err
	}

	f.mu.Lock()
	f.written[path] = struct{}{}
	f.mu.Unlock()
	return nil
}

// Paths returns the files written so far, sorted.
func (f *Files) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	paths := make([]string, 0, len(f.written))
	for p := range f.written {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
