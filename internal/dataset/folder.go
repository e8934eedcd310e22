package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"image-preprocessing/internal/core"
	imgio "image-preprocessing/internal/io"
)

type folderEntry struct {
	path  string
	label int
}

// Folder reads root/<class>/<image> trees. Classes are sorted by name and
// numbered from zero; images are decoded lazily.
type Folder struct {
	root    string
	classes []string
	entries []folderEntry
	loader  *imgio.ImageLoader
}

func OpenFolder(root string, loader *imgio.ImageLoader) (*Folder, error) {
	if loader == nil {
		loader = imgio.NewImageLoader(nil)
	}

	dirs, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("folder dataset: %w", err)
	}

	f := &Folder{root: root, loader: loader}
	for _, dir := range dirs {
		if !dir.IsDir() {
			continue
		}
		label := len(f.classes)
		f.classes = append(f.classes, dir.Name())

		files, err := os.ReadDir(filepath.Join(root, dir.Name()))
		if err != nil {
			return nil, fmt.Errorf("folder dataset: %w", err)
		}
		for _, file := range files {
			if file.IsDir() || !imgio.IsSupportedImageFormat(file.Name()) {
				continue
			}
			f.entries = append(f.entries, folderEntry{
				path:  filepath.Join(root, dir.Name(), file.Name()),
				label: label,
			})
		}
	}

	if len(f.classes) == 0 {
		return nil, fmt.Errorf("folder dataset: no class directories under %s", root)
	}
	return f, nil
}

func (f *Folder) Len() int { return len(f.entries) }

func (f *Folder) Iterate() Iterator { return newIndexIterator(f) }

func (f *Folder) Classes() []string {
	out := make([]string, len(f.classes))
	copy(out, f.classes)
	return out
}

func (f *Folder) At(i int) (Sample, error) {
	if err := checkIndex("folder", i, f.Len()); err != nil {
		return Sample{}, err
	}
	entry := f.entries[i]
	img, err := f.loader.LoadImage(entry.path)
	if err != nil {
		return Sample{}, fmt.Errorf("folder sample %d: %w", i, err)
	}
	return Sample{Index: i, Image: img, Label: entry.label}, nil
}

var _ RandomAccess = (*Folder)(nil)
var _ RandomAccess = (*MNIST)(nil)
var _ Named = (*Folder)(nil)
var _ Named = (*MNIST)(nil)
var _ RandomAccess = (*Slice)(nil)

// Slice is an in-memory dataset. At hands out copies, so the stored images
// stay valid across passes.
type Slice struct {
	images []*core.Image
	labels []int
}

// FromImages builds a Slice; images remain owned by the caller.
func FromImages(images []*core.Image, labels []int) (*Slice, error) {
	if len(images) != len(labels) {
		return nil, fmt.Errorf("slice dataset: %d images but %d labels", len(images), len(labels))
	}
	for i, img := range images {
		if img == nil {
			return nil, fmt.Errorf("slice dataset: image %d is nil", i)
		}
	}
	return &Slice{images: images, labels: labels}, nil
}

func (s *Slice) Len() int { return len(s.images) }

func (s *Slice) Iterate() Iterator { return newIndexIterator(s) }

func (s *Slice) At(i int) (Sample, error) {
	if err := checkIndex("slice", i, s.Len()); err != nil {
		return Sample{}, err
	}
	return Sample{Index: i, Image: s.images[i].Clone(), Label: s.labels[i]}, nil
}
