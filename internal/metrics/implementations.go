// Concrete implementations of quality metrics
package metrics

import (
	"fmt"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"image-preprocessing/internal/core"
)

// MSE is the mean squared difference of luminance.
type MSE struct{}

func NewMSE() *MSE { return &MSE{} }

func (m *MSE) Calculate(before, after *core.Image) (float64, error) {
	if err := sameSize(before, after); err != nil {
		return 0, err
	}

	f1, err := luminance(before)
	if err != nil {
		return 0, err
	}
	defer f1.Close()

	f2, err := luminance(after)
	if err != nil {
		return 0, err
	}
	defer f2.Close()

	return meanSquaredError(f1, f2), nil
}

func (m *MSE) GetName() string              { return "MSE" }
func (m *MSE) GetDescription() string       { return "Mean Squared Error of luminance" }
func (m *MSE) GetRange() (float64, float64) { return 0, 65025 }
func (m *MSE) IsHigherBetter() bool         { return false }

// PSNR is the peak signal-to-noise ratio in dB; identical images give +Inf.
type PSNR struct{}

func NewPSNR() *PSNR { return &PSNR{} }

func (p *PSNR) Calculate(before, after *core.Image) (float64, error) {
	mse, err := NewMSE().Calculate(before, after)
	if err != nil {
		return 0, err
	}
	if mse == 0 {
		return math.Inf(1), nil
	}
	return 10 * math.Log10(255*255/mse), nil
}

func (p *PSNR) GetName() string              { return "PSNR" }
func (p *PSNR) GetDescription() string       { return "Peak Signal-to-Noise Ratio" }
func (p *PSNR) GetRange() (float64, float64) { return 0, 100 }
func (p *PSNR) IsHigherBetter() bool         { return true }

// SSIM is the global (single window) structural similarity of luminance.
type SSIM struct{}

func NewSSIM() *SSIM { return &SSIM{} }

func (s *SSIM) Calculate(before, after *core.Image) (float64, error) {
	if err := sameSize(before, after); err != nil {
		return 0, err
	}

	f1, err := luminance(before)
	if err != nil {
		return 0, err
	}
	defer f1.Close()

	f2, err := luminance(after)
	if err != nil {
		return 0, err
	}
	defer f2.Close()

	// (0.01*255)^2 and (0.03*255)^2
	const C1, C2 = 6.5025, 58.5225

	mu1 := f1.Mean().Val1
	mu2 := f2.Mean().Val1

	f1Sq, f2Sq, f1f2 := gocv.NewMat(), gocv.NewMat(), gocv.NewMat()
	defer f1Sq.Close()
	defer f2Sq.Close()
	defer f1f2.Close()

	gocv.Multiply(f1, f1, &f1Sq)
	gocv.Multiply(f2, f2, &f2Sq)
	gocv.Multiply(f1, f2, &f1f2)

	sigma1Sq := f1Sq.Mean().Val1 - mu1*mu1
	sigma2Sq := f2Sq.Mean().Val1 - mu2*mu2
	sigma12 := f1f2.Mean().Val1 - mu1*mu2

	num := (2*mu1*mu2 + C1) * (2*sigma12 + C2)
	den := (mu1*mu1 + mu2*mu2 + C1) * (sigma1Sq + sigma2Sq + C2)
	return num / den, nil
}

func (s *SSIM) GetName() string              { return "SSIM" }
func (s *SSIM) GetDescription() string       { return "Structural Similarity Index" }
func (s *SSIM) GetRange() (float64, float64) { return 0, 1 }
func (s *SSIM) IsHigherBetter() bool         { return true }

// Sharpness is the ratio of the variance of the Laplacian after and before.
// Values above 1 mean edges were accentuated.
type Sharpness struct{}

func NewSharpness() *Sharpness { return &Sharpness{} }

func (s *Sharpness) Calculate(before, after *core.Image) (float64, error) {
	if before == nil || after == nil {
		return 0, fmt.Errorf("empty images")
	}

	origSharpness, err := LaplacianVariance(before)
	if err != nil {
		return 0, err
	}
	procSharpness, err := LaplacianVariance(after)
	if err != nil {
		return 0, err
	}

	if origSharpness == 0 {
		return 1.0, nil
	}
	return procSharpness / origSharpness, nil
}

func (s *Sharpness) GetName() string              { return "Sharpness" }
func (s *Sharpness) GetDescription() string       { return "Edge strength ratio (variance of Laplacian)" }
func (s *Sharpness) GetRange() (float64, float64) { return 0, 2 }
func (s *Sharpness) IsHigherBetter() bool         { return true }

// LaplacianVariance measures the edge energy of a single image.
func LaplacianVariance(img *core.Image) (float64, error) {
	gray, err := luminance(img)
	if err != nil {
		return 0, err
	}
	defer gray.Close()

	laplacian := gocv.NewMat()
	defer laplacian.Close()
	gocv.Laplacian(gray, &laplacian, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderReplicate)

	values, err := laplacian.DataPtrFloat64()
	if err != nil {
		return 0, fmt.Errorf("laplacian data: %w", err)
	}
	return stat.PopVariance(values, nil), nil
}

func sameSize(a, b *core.Image) error {
	if a == nil || b == nil {
		return fmt.Errorf("empty images")
	}
	if a.Width() != b.Width() || a.Height() != b.Height() {
		return &core.ShapeError{
			Step:     "metrics",
			Expected: fmt.Sprintf("%dx%d image", a.Width(), a.Height()),
			Actual:   fmt.Sprintf("%dx%d", b.Width(), b.Height()),
		}
	}
	return nil
}

// luminance returns a single-channel CV32F copy of img. Color images are
// weighted with the Rec. 601 coefficients in R,G,B order.
func luminance(img *core.Image) (gocv.Mat, error) {
	src := img.Mat()
	gray := gocv.NewMat()
	defer gray.Close()

	switch img.Mode() {
	case core.ModeGray:
		src.CopyTo(&gray)
	case core.ModeRGB:
		gocv.CvtColor(src, &gray, gocv.ColorRGBToGray)
	case core.ModeRGBA:
		gocv.CvtColor(src, &gray, gocv.ColorRGBAToGray)
	default:
		return gocv.NewMat(), fmt.Errorf("unsupported color mode %s", img.Mode())
	}

	out := gocv.NewMat()
	gray.ConvertTo(&out, gocv.MatTypeCV32F)
	return out, nil
}

func meanSquaredError(f1, f2 gocv.Mat) float64 {
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.Subtract(f1, f2, &diff)

	diffSq := gocv.NewMat()
	defer diffSq.Close()
	gocv.Multiply(diff, diff, &diffSq)

	return diffSq.Mean().Val1
}
