package desktop

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Recorder captures one spoken utterance.
type Recorder interface {
	RecordUtterance(ctx context.Context, maxDur time.Duration) ([]float32, error)
}

type WorkflowConfig struct {
	PhotoDir   string
	VideoDir   string
	NoteDir    string
	Camera     string // v4l2 device
	NoteMaxDur time.Duration
	SampleRate int

	// SaveWAV writes a recorded note to disk.
	SaveWAV func(path string, samples []float32, sampleRate int) error
	Now     func() time.Time
}

// Workflow implements ports.Workflow.
type Workflow struct {
	cfg     WorkflowConfig
	rec     Recorder
	capture commandRunner // waits for completion
	open    commandRunner // detached
}

var ErrNoVideos = errors.New("no videos found")

var videoExt = []string{".mp4", ".mkv", ".webm", ".mov", ".avi"}

func NewWorkflow(cfg WorkflowConfig, rec Recorder) *Workflow {
	if cfg.Camera == "" {
		cfg.Camera = "/dev/video0"
	}
	if cfg.NoteMaxDur <= 0 {
		cfg.NoteMaxDur = 30 * time.Second
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Workflow{cfg: cfg, rec: rec, capture: execRun, open: execStart}
}

func execRun(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (w *Workflow) stamp() string {
	return w.cfg.Now().Format("20060102-150405")
}

func (w *Workflow) CapturePhoto(ctx context.Context) (string, error) {
	if err := os.MkdirAll(w.cfg.PhotoDir, 0o755); err != nil {
		return "", fmt.Errorf("create photo dir: %w", err)
	}
	path := filepath.Join(w.cfg.PhotoDir, "jarvis-"+w.stamp()+".jpg")

	err := w.capture(ctx, "ffmpeg", "-hide_banner", "-loglevel", "error", "-y",
		"-f", "v4l2", "-i", w.cfg.Camera, "-frames:v", "1", path)
	if err != nil {
		return "", fmt.Errorf("capture photo: %w", err)
	}
	return "Photo captured and saved.", nil
}

func (w *Workflow) ShowLastVideo(ctx context.Context) (string, error) {
	path, err := latestVideo(w.cfg.VideoDir)
	if err != nil {
		return "", err
	}
	if err := w.open(ctx, "xdg-open", path); err != nil {
		return "", fmt.Errorf("open video: %w", err)
	}
	return "Playing your most recent video now.", nil
}

func (w *Workflow) RecordNote(ctx context.Context) (string, error) {
	if w.rec == nil || w.cfg.SaveWAV == nil {
		return "", errors.New("note recording is not configured")
	}

	samples, err := w.rec.RecordUtterance(ctx, w.cfg.NoteMaxDur)
	if err != nil {
		return "", fmt.Errorf("record note: %w", err)
	}
	path := filepath.Join(w.cfg.NoteDir, "note-"+w.stamp()+".wav")
	if err := w.cfg.SaveWAV(path, samples, w.cfg.SampleRate); err != nil {
		return "", fmt.Errorf("save note: %w", err)
	}

	secs := len(samples) / w.cfg.SampleRate
	return fmt.Sprintf("Note recorded successfully. %d second%s saved.", secs, plural(secs)), nil
}

func latestVideo(dir string) (string, error) {
	var (
		newest  string
		newTime time.Time
	)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if d.IsDir() || !slices.Contains(videoExt, strings.ToLower(filepath.Ext(path))) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if newest == "" || info.ModTime().After(newTime) {
			newest, newTime = path, info.ModTime()
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scan %s: %w", dir, err)
	}
	if newest == "" {
		return "", ErrNoVideos
	}
	return newest, nil
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
