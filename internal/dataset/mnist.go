package dataset

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"image-preprocessing/internal/core"
)

const (
	// ImageSize is the side length of an MNIST digit.
	ImageSize = 28

	idxImageMagic = 0x00000803
	idxLabelMagic = 0x00000801
)

type idxFile struct {
	name   string
	digest string // sha256 of the gzipped file
}

var mnistFiles = map[Split][2]idxFile{
	SplitTrain: {
		{"train-images-idx3-ubyte", "440fcabf73cc546fa21475e81ea370265605f56be210a4024d2ca8f203523609"},
		{"train-labels-idx1-ubyte", "3552534a0a558bbed6aed32b30c495cca23d567ec52cac8be1a0730e8010255c"},
	},
	SplitEval: {
		{"t10k-images-idx3-ubyte", "8d422c7b0a1c1c79245a5bcf07fe86e33eeafee792b84584aec276f5a2dbc4e6"},
		{"t10k-labels-idx1-ubyte", "f7ae60f92e00ec6debd23a6088c31dbd2371eca3ffa0defaefb259924204aec6"},
	},
}

// MNIST holds one split of the MNIST digits in memory and materializes
// 28x28 grayscale images on demand.
type MNIST struct {
	rows   int
	cols   int
	pixels []byte
	labels []byte
}

type mnistOptions struct {
	verify bool
	logger logrus.FieldLogger
}

// MNISTOption configures OpenMNIST.
type MNISTOption func(*mnistOptions)

// WithChecksums verifies gzipped files against the published sha256 digests.
// The digests cover the archives only; raw files are read unverified and a
// warning is logged for each.
func WithChecksums() MNISTOption {
	return func(o *mnistOptions) { o.verify = true }
}

func WithLogger(logger logrus.FieldLogger) MNISTOption {
	return func(o *mnistOptions) { o.logger = logger }
}

// OpenMNIST loads a split from root or root/MNIST/raw. Each file may be
// gzipped (".gz") or raw.
func OpenMNIST(root string, split Split, opts ...MNISTOption) (*MNIST, error) {
	o := mnistOptions{logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	files, ok := mnistFiles[split]
	if !ok {
		return nil, fmt.Errorf("mnist: unknown split %d", int(split))
	}

	imageData, err := readIDX(root, files[0], o)
	if err != nil {
		return nil, err
	}
	labelData, err := readIDX(root, files[1], o)
	if err != nil {
		return nil, err
	}

	count, rows, cols, pixels, err := parseIDXImages(imageData, files[0].name)
	if err != nil {
		return nil, err
	}
	labels, err := parseIDXLabels(labelData, files[1].name)
	if err != nil {
		return nil, err
	}
	if len(labels) != count {
		return nil, &core.DecodingError{
			Source: files[1].name,
			Err:    fmt.Errorf("%d labels for %d images", len(labels), count),
		}
	}

	o.logger.WithFields(logrus.Fields{
		"root":   root,
		"split":  split.String(),
		"images": count,
		"size":   fmt.Sprintf("%dx%d", cols, rows),
	}).Info("MNIST split loaded")

	return &MNIST{rows: rows, cols: cols, pixels: pixels, labels: labels}, nil
}

func (m *MNIST) Len() int { return len(m.labels) }

func (m *MNIST) Iterate() Iterator { return newIndexIterator(m) }

func (m *MNIST) At(i int) (Sample, error) {
	if err := checkIndex("mnist", i, m.Len()); err != nil {
		return Sample{}, err
	}
	plane := m.rows * m.cols
	img, err := core.NewImageFromBytes(m.cols, m.rows, core.ModeGray, m.pixels[i*plane:(i+1)*plane])
	if err != nil {
		return Sample{}, fmt.Errorf("mnist sample %d: %w", i, err)
	}
	return Sample{Index: i, Image: img, Label: int(m.labels[i])}, nil
}

// Classes returns the digit names indexed by label.
func (m *MNIST) Classes() []string {
	return []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}
}

func locateIDX(root, name string) (string, error) {
	for _, dir := range []string{root, filepath.Join(root, "MNIST", "raw")} {
		for _, candidate := range []string{name + ".gz", name} {
			path := filepath.Join(dir, candidate)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}
	return "", fmt.Errorf("mnist: %s not found under %s: %w", name, root, fs.ErrNotExist)
}

func readIDX(root string, f idxFile, o mnistOptions) ([]byte, error) {
	path, err := locateIDX(root, f.name)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mnist: cannot read %s: %w", path, err)
	}

	if !strings.HasSuffix(path, ".gz") {
		if o.verify {
			o.logger.WithField("file", path).Warn("Checksum skipped: digests cover gzipped files only")
		}
		return raw, nil
	}

	if o.verify {
		if sum := fmt.Sprintf("%x", sha256.Sum256(raw)); sum != f.digest {
			return nil, &core.DecodingError{Source: path, Err: fmt.Errorf("sha256 %s does not match %s", sum, f.digest)}
		}
	}

	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &core.DecodingError{Source: path, Err: err}
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, &core.DecodingError{Source: path, Err: err}
	}
	return data, nil
}

func parseIDXImages(data []byte, source string) (count, rows, cols int, pixels []byte, err error) {
	if len(data) < 16 {
		return 0, 0, 0, nil, &core.DecodingError{Source: source, Err: fmt.Errorf("header truncated: %d bytes", len(data))}
	}
	if magic := binary.BigEndian.Uint32(data[0:4]); magic != idxImageMagic {
		return 0, 0, 0, nil, &core.DecodingError{Source: source, Err: fmt.Errorf("bad image magic 0x%08x", magic)}
	}
	count = int(binary.BigEndian.Uint32(data[4:8]))
	rows = int(binary.BigEndian.Uint32(data[8:12]))
	cols = int(binary.BigEndian.Uint32(data[12:16]))
	if rows <= 0 || cols <= 0 || rows > core.MaxDimension || cols > core.MaxDimension {
		return 0, 0, 0, nil, &core.DecodingError{Source: source, Err: fmt.Errorf("invalid image size %dx%d", cols, rows)}
	}

	pixels = data[16:]
	if len(pixels) != count*rows*cols {
		return 0, 0, 0, nil, &core.DecodingError{
			Source: source,
			Err:    fmt.Errorf("expected %d pixel bytes for %d images, found %d", count*rows*cols, count, len(pixels)),
		}
	}
	return count, rows, cols, pixels, nil
}

func parseIDXLabels(data []byte, source string) ([]byte, error) {
	if len(data) < 8 {
		return nil, &core.DecodingError{Source: source, Err: fmt.Errorf("header truncated: %d bytes", len(data))}
	}
	if magic := binary.BigEndian.Uint32(data[0:4]); magic != idxLabelMagic {
		return nil, &core.DecodingError{Source: source, Err: fmt.Errorf("bad label magic 0x%08x", magic)}
	}
	count := int(binary.BigEndian.Uint32(data[4:8]))
	labels := data[8:]
	if len(labels) != count {
		return nil, &core.DecodingError{Source: source, Err: fmt.Errorf("expected %d labels, found %d", count, len(labels))}
	}
	return labels, nil
}
