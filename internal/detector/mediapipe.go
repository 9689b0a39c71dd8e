package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const (
	serviceScript = "landmark_service.py"
	idleShutdown  = 30 * time.Second
)

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess
// running both the hand landmarker and the face mesh.
type MediaPipeDetector struct {
	config    Config
	log       *zap.Logger
	script    string
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The Python process is started lazily on first detection.
func NewMediaPipeDetector(config Config, log *zap.Logger) (*MediaPipeDetector, error) {
	scriptPath := findServiceScript()
	if scriptPath == "" {
		return nil, fmt.Errorf("%s not found", serviceScript)
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &MediaPipeDetector{
		config: config,
		log:    log.Named("mediapipe"),
		script: scriptPath,
	}, nil
}

// Detect analyzes a frame and returns the detected hand and face landmarks.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) (Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return Frame{}, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return Frame{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	// Write length (4 bytes big-endian) + data
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := d.stdin.Write(length); err != nil {
		return Frame{}, fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return Frame{}, fmt.Errorf("write data: %w", err)
	}

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		return Frame{}, fmt.Errorf("read response: %w", err)
	}

	result, err := parseResponse(line)
	if err != nil {
		return Frame{}, err
	}
	result.Width = frame.Cols()
	result.Height = frame.Rows()

	d.resetIdleTimer()
	return result, nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	args := []string{
		d.script,
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', 2, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', 2, 64),
	}
	if d.config.RefineLandmarks {
		args = append(args, "--refine-landmarks")
	}
	d.cmd = exec.Command(pythonPath, args...)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start landmark service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	d.log.Info("landmark service started", zap.String("python", pythonPath), zap.Int("pid", d.cmd.Process.Pid))

	return nil
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil
	d.log.Info("landmark service stopped")

	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(idleShutdown, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if err := d.shutdown(); err != nil {
			d.log.Warn("idle shutdown", zap.Error(err))
		}
	})
}

func findServiceScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", serviceScript),
		filepath.Join("..", "scripts", serviceScript),
		filepath.Join(execDir, "scripts", serviceScript),
		filepath.Join(os.Getenv("HOME"), ".madhubani", "scripts", serviceScript),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if absPath, err := filepath.Abs(path); err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".madhubani/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if absPath, err := filepath.Abs(path); err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// serviceResponse is one JSON line written by the landmark service.
type serviceResponse struct {
	Hands []jsonHand `json:"hands"`
	Face  *jsonFace  `json:"face"`
}

type jsonHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

type jsonFace struct {
	Points []Point3D `json:"points"`
	Score  float64   `json:"score"`
}

// parseResponse decodes a service line into a Frame. Only the most
// confident hand is kept; an empty point list counts as not detected.
func parseResponse(line []byte) (Frame, error) {
	var resp serviceResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return Frame{}, fmt.Errorf("parse response: %w", err)
	}

	var frame Frame
	for i := range resp.Hands {
		h := resp.Hands[i]
		if len(h.Points) == 0 {
			continue
		}
		if frame.Hand == nil || h.Score > frame.Hand.Score {
			frame.Hand = &Hand{
				Points:     truncate(h.Points, NumLandmarks),
				Handedness: h.Handedness,
				Score:      h.Score,
			}
		}
	}

	if resp.Face != nil && len(resp.Face.Points) > 0 {
		frame.Face = &Face{
			Points: truncate(resp.Face.Points, NumFaceMesh),
			Score:  resp.Face.Score,
		}
	}

	return frame, nil
}

func truncate(points []Point3D, n int) []Point3D {
	if len(points) > n {
		points = points[:n]
	}
	out := make([]Point3D, len(points))
	copy(out, points)
	return out
}
