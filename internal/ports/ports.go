package ports

import (
	"context"
	"errors"

	"jarvis/internal/domain"
)

var (
	// ErrPermissionDenied is fatal for the capability that returned it.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUnavailable is returned by providers that have no backend on this device.
	ErrUnavailable = errors.New("provider unavailable")
)

// TranscriptionSession is a live recognition stream.
// Events is closed when the stream ends; Wait then reports why.
type TranscriptionSession interface {
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// AudioCapture is a running microphone stream of mono float frames.
// Frames is closed when the stream stops; Err then reports why.
type AudioCapture interface {
	Frames() <-chan []float32
	Err() error
}

// AudioSource opens capture streams that run until ctx is done.
type AudioSource interface {
	Open(ctx context.Context) (AudioCapture, error)
}

// Recognizer opens streaming recognition sessions.
type Recognizer interface {
	Start(ctx context.Context) (TranscriptionSession, error)
}

// Speaker synthesizes and plays text. Speak returns once playback is complete.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Responder answers open-ended utterances.
type Responder interface {
	Reply(ctx context.Context, text string) (string, error)
}

// Connectivity reports whether network-backed resources are reachable.
type Connectivity interface {
	Online() bool
}

type Calendar interface {
	TodayEvents(ctx context.Context) (string, error)
}

type Reminders interface {
	AddReminder(ctx context.Context, title string) (string, error)
}

// Home controls smart-home devices. Lights accepts "on", "off", a color or a percentage.
type Home interface {
	Lights(ctx context.Context, value string) (string, error)
	LightStatus(ctx context.Context) (string, error)
	Scene(ctx context.Context, name string) (string, error)
	Lock(ctx context.Context) (string, error)
}

type Health interface {
	Steps(ctx context.Context) (string, error)
	HeartRate(ctx context.Context) (string, error)
	Summary(ctx context.Context) (string, error)
}

// Media controls the active media player. An empty query resumes playback.
type Media interface {
	Play(ctx context.Context, query string) (string, error)
	Pause(ctx context.Context) (string, error)
	Next(ctx context.Context) (string, error)
}

type Weather interface {
	Current(ctx context.Context) (string, error)
}

type Launcher interface {
	OpenApp(ctx context.Context, name string) (string, error)
	Navigate(ctx context.Context, destination string) (string, error)
}

// Device exposes local output controls.
type Device interface {
	SetVolume(ctx context.Context, percent int) error
	SetBrightness(ctx context.Context, percent int) error
}

// Workflow drives capture and playback tasks.
type Workflow interface {
	CapturePhoto(ctx context.Context) (string, error)
	ShowLastVideo(ctx context.Context) (string, error)
	RecordNote(ctx context.Context) (string, error)
}

type ProtocolStore interface {
	LoadProtocols(ctx context.Context) ([]domain.Protocol, error)
	SaveProtocols(ctx context.Context, protocols []domain.Protocol) error
}

type FactStore interface {
	LoadFacts(ctx context.Context) ([]domain.Fact, error)
	SaveFacts(ctx context.Context, facts []domain.Fact) error
}

type SettingsStore interface {
	Setting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Cue names a short sound effect.
type Cue string

const (
	CueStartup    Cue = "startup"
	CueWake       Cue = "wake"
	CueProcessing Cue = "processing"
	CueSuccess    Cue = "success"
	CueError      Cue = "error"
)

// Cues plays sound effects without blocking the caller.
type Cues interface {
	Play(cue Cue)
}

// Notifier shows a desktop notification.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}
