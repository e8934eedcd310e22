// Image file decoding and encoding through OpenCV
package io

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"image-preprocessing/internal/core"
)

var supportedFormats = []string{".jpg", ".jpeg", ".png", ".tiff", ".tif", ".bmp", ".webp"}

// ImageLoader handles image file operations
type ImageLoader struct {
	logger logrus.FieldLogger
}

func NewImageLoader(logger logrus.FieldLogger) *ImageLoader {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ImageLoader{
		logger: logger,
	}
}

// LoadImage reads and decodes the file at path.
func (il *ImageLoader) LoadImage(path string) (*core.Image, error) {
	il.logger.WithField("filepath", path).Debug("Loading image")

	if !IsSupportedImageFormat(path) {
		return nil, &core.DecodingError{Source: path, Err: fmt.Errorf("unsupported image format %q", filepath.Ext(path))}
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return il.Decode(buf, path)
}

// Decode parses an encoded image. Color images come back in RGB(A) order;
// anything OpenCV cannot parse, or that is not 8-bit, is a DecodingError.
func (il *ImageLoader) Decode(buf []byte, source string) (*core.Image, error) {
	if len(buf) == 0 {
		return nil, &core.DecodingError{Source: source, Err: fmt.Errorf("empty buffer")}
	}

	mat, err := gocv.IMDecode(buf, gocv.IMReadUnchanged)
	if err != nil {
		mat.Close()
		return nil, &core.DecodingError{Source: source, Err: err}
	}
	if mat.Empty() {
		mat.Close()
		return nil, &core.DecodingError{Source: source, Err: fmt.Errorf("no raster decoded")}
	}

	img, err := fromDecoded(mat)
	if err != nil {
		return nil, &core.DecodingError{Source: source, Err: err}
	}

	il.logger.WithFields(logrus.Fields{
		"source":   source,
		"width":    img.Width(),
		"height":   img.Height(),
		"channels": img.Channels(),
	}).Debug("Image decoded")

	return img, nil
}

// SaveImage encodes img to path; the extension selects the format.
func (il *ImageLoader) SaveImage(img *core.Image, path string) error {
	il.logger.WithField("filepath", path).Debug("Saving image")

	if img == nil {
		return fmt.Errorf("cannot save empty image")
	}
	if !IsSupportedImageFormat(path) {
		return fmt.Errorf("unsupported image format: %s", path)
	}

	bgr, err := swapRedBlue(img)
	if err != nil {
		return err
	}
	defer bgr.Close()

	if ok := gocv.IMWrite(path, bgr); !ok {
		return fmt.Errorf("failed to save image: %s", path)
	}

	il.logger.WithFields(logrus.Fields{
		"filepath": path,
		"width":    img.Width(),
		"height":   img.Height(),
		"channels": img.Channels(),
	}).Info("Image saved")

	return nil
}

func fromDecoded(mat gocv.Mat) (*core.Image, error) {
	var (
		mode core.ColorMode
		code gocv.ColorConversionCode
	)
	switch mat.Type() {
	case gocv.MatTypeCV8UC1:
		return core.NewImage(mat, core.ModeGray)
	case gocv.MatTypeCV8UC3:
		mode, code = core.ModeRGB, gocv.ColorBGRToRGB
	case gocv.MatTypeCV8UC4:
		mode, code = core.ModeRGBA, gocv.ColorBGRAToRGBA
	default:
		mat.Close()
		return nil, fmt.Errorf("unsupported pixel format: mat type %d", int(mat.Type()))
	}

	rgb := gocv.NewMat()
	err := gocv.CvtColor(mat, &rgb, code)
	mat.Close()
	if err != nil {
		rgb.Close()
		return nil, err
	}
	return core.NewImage(rgb, mode)
}

// swapRedBlue returns a BGR(A) copy for OpenCV encoders. The swap is its own inverse.
func swapRedBlue(img *core.Image) (gocv.Mat, error) {
	out := gocv.NewMat()
	var err error
	switch img.Mode() {
	case core.ModeRGB:
		err = gocv.CvtColor(img.Mat(), &out, gocv.ColorBGRToRGB)
	case core.ModeRGBA:
		err = gocv.CvtColor(img.Mat(), &out, gocv.ColorBGRAToRGBA)
	default:
		src := img.Mat()
		out.Close()
		return src.Clone(), nil
	}
	if err != nil {
		out.Close()
		return gocv.NewMat(), err
	}
	return out, nil
}

// IsSupportedImageFormat reports whether the extension of path is one OpenCV decodes.
func IsSupportedImageFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}
