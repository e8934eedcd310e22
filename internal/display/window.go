package display

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"image-preprocessing/internal/core"
)

// Window collects shown values as tabs of a single fyne window.
// Show must be called before Run or from the fyne event loop.
type Window struct {
	app    fyne.App
	window fyne.Window
	tabs   *container.AppTabs
}

func NewWindow(app fyne.App, title string) *Window {
	window := app.NewWindow(title)
	window.Resize(fyne.NewSize(900, 700))

	tabs := container.NewAppTabs()
	tabs.SetTabLocation(container.TabLocationTop)
	window.SetContent(tabs)

	return &Window{app: app, window: window, tabs: tabs}
}

func (w *Window) Show(title string, v core.Value) error {
	raster, err := Raster(v)
	if err != nil {
		return err
	}

	img := canvas.NewImageFromImage(raster)
	img.FillMode = canvas.ImageFillContain
	img.ScaleMode = canvas.ImageScalePixels
	img.SetMinSize(fyne.NewSize(256, 256))

	info := widget.NewLabel(describe(v))
	content := container.NewBorder(nil, info, nil, nil, img)

	w.tabs.Append(container.NewTabItem(title, content))
	w.tabs.SelectIndex(len(w.tabs.Items) - 1)
	return nil
}

// Len returns the number of values shown so far.
func (w *Window) Len() int { return len(w.tabs.Items) }

// Run shows the window and blocks until it is closed.
func (w *Window) Run() {
	w.window.SetCloseIntercept(func() {
		w.app.Quit()
	})
	w.window.ShowAndRun()
}

func describe(v core.Value) string {
	switch t := v.(type) {
	case *core.Tensor:
		s := t.Stats()
		return fmt.Sprintf("tensor %v  min %.3f  max %.3f  mean %.3f  std %.3f",
			t.Shape(), s.Min, s.Max, s.Mean, s.StdDev)
	case *core.Image:
		return fmt.Sprintf("image %s  shape %v", t, t.Shape())
	}
	return fmt.Sprintf("%T", v)
}
