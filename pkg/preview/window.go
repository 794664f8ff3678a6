//go:build cgo
// +build cgo

// Package preview provides the default frontend.Viewer implementation: a
// debug window drawing tracked feature points and the frontend's status
// over the left camera image.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"runtime"
	"sync"

	"gocv.io/x/gocv"

	"github.com/stereoslam/frontend/pkg/frontend"
)

// shownFrame bundles what ShowFrame hands off to the render goroutine:
// the left image to draw over and the frame/status to annotate it with.
type shownFrame struct {
	image  gocv.Mat
	frame  *frontend.Frame
	status frontend.TrackingStatus
}

// Window is a gocv.Window-backed frontend.Viewer. OpenCV's UI calls must
// run on a single, dedicated OS thread, so Window owns a goroutine locked
// to one for its whole lifetime (mirrors miface's preview window).
//
// frontend.Viewer.ShowFrame only carries feature/status data, not image
// bytes (the Frame type deliberately holds no image, per spec.md §4.F).
// The caller is expected to hand Window the left image for the frame
// about to be shown via SetImage immediately before calling
// Frontend.AddFrame; ShowFrame then pairs that pending image with the
// annotations the frontend produces.
type Window struct {
	window  *gocv.Window
	frameCh chan shownFrame
	closeCh chan struct{}
	doneCh  chan struct{}
	once    sync.Once
	initDone chan struct{}

	mu      sync.Mutex
	pending gocv.Mat
}

// NewWindow creates and opens a preview window with the given title.
func NewWindow(title string) *Window {
	w := &Window{
		frameCh:  make(chan shownFrame, 1),
		closeCh:  make(chan struct{}),
		doneCh:   make(chan struct{}),
		initDone: make(chan struct{}),
		pending:  gocv.NewMat(),
	}
	go w.renderLoop(title)
	<-w.initDone
	return w
}

func (w *Window) renderLoop(title string) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	w.window = gocv.NewWindow(title)
	close(w.initDone)

	for {
		select {
		case sf := <-w.frameCh:
			drawAnnotations(&sf.image, sf.frame, sf.status)
			w.window.IMShow(sf.image)
			w.window.WaitKey(1)
			sf.image.Close()

		case <-w.closeCh:
			if w.window != nil {
				w.window.Close()
			}
			close(w.doneCh)
			return
		}
	}
}

// SetImage records the left image for the next ShowFrame call. The
// caller retains ownership of img; SetImage clones it.
func (w *Window) SetImage(img gocv.Mat) {
	if img.Empty() {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending.Close()
	w.pending = img.Clone()
}

// ShowFrame implements frontend.Viewer: it pairs the most recent image
// passed to SetImage with f's annotations and queues it for display.
func (w *Window) ShowFrame(f *frontend.Frame, status frontend.TrackingStatus) {
	w.mu.Lock()
	img := w.pending
	w.pending = gocv.NewMat()
	w.mu.Unlock()

	if img.Empty() {
		img.Close()
		return
	}

	select {
	case w.frameCh <- shownFrame{image: img, frame: f, status: status}:
	default:
		img.Close() // drop the frame if rendering is behind
	}
}

// drawAnnotations paints tracked feature points and an overlay with the
// frame's status and feature count onto img in place.
func drawAnnotations(img *gocv.Mat, f *frontend.Frame, status frontend.TrackingStatus) {
	if f == nil {
		return
	}
	dotColor := color.RGBA{G: 255, A: 255}
	for _, feat := range f.Features {
		center := image.Pt(int(feat.Pixel.X), int(feat.Pixel.Y))
		c := dotColor
		if !feat.HasMapPoint {
			c = color.RGBA{R: 255, A: 255}
		}
		gocv.Circle(img, center, 3, c, -1)
	}

	label := fmt.Sprintf("%s  features=%d", status, len(f.Features))
	gocv.PutText(img, label, image.Pt(10, 20), gocv.FontHersheyPlain, 1.2, color.RGBA{R: 255, G: 255, B: 255, A: 255}, 1)
}

// Close closes the preview window and stops its render goroutine.
func (w *Window) Close() error {
	w.once.Do(func() {
		close(w.closeCh)
		<-w.doneCh
		w.mu.Lock()
		w.pending.Close()
		w.mu.Unlock()
	})
	return nil
}
