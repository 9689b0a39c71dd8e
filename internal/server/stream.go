package server

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/madhubani/internal/canvas"
)

const streamInterval = 66 * time.Millisecond // ~15 FPS

// CanvasStream serves the canvas as an MJPEG stream.
type CanvasStream struct {
	canvas *canvas.Canvas
	log    *zap.Logger
}

// NewCanvasStream creates a CanvasStream for c.
func NewCanvasStream(c *canvas.Canvas, log *zap.Logger) *CanvasStream {
	if log == nil {
		log = zap.NewNop()
	}
	return &CanvasStream{canvas: c, log: log.Named("stream")}
}

// ServeHTTP streams MJPEG frames until the client goes away.
func (h *CanvasStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		if err := h.writeFrame(w); err != nil {
			h.log.Debug("stream ended", zap.Error(err))
			return
		}
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *CanvasStream) writeFrame(w http.ResponseWriter) error {
	mat, err := gocv.ImageToMatRGB(h.canvas.Image())
	if err != nil {
		return fmt.Errorf("convert canvas: %w", err)
	}
	defer mat.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return fmt.Errorf("encode canvas: %w", err)
	}
	defer buf.Close()

	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", buf.Len()); err != nil {
		return err
	}
	if _, err := w.Write(buf.GetBytes()); err != nil {
		return err
	}
	_, err = fmt.Fprint(w, "\r\n")
	return err
}

// CanvasSnapshot serves the canvas as a single PNG.
type CanvasSnapshot struct {
	canvas *canvas.Canvas
}

// NewCanvasSnapshot creates a CanvasSnapshot for c.
func NewCanvasSnapshot(c *canvas.Canvas) *CanvasSnapshot {
	return &CanvasSnapshot{canvas: c}
}

func (h *CanvasSnapshot) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	if err := h.canvas.EncodePNG(w); err != nil {
		http.Error(w, "Failed to encode canvas", http.StatusInternalServerError)
	}
}
