// Package health keeps the latest activity readings pushed by the watch
// companion and answers health questions from them.
package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Sample is one reading from the watch. Steps is the cumulative count for
// the day of At; zero fields are left unchanged.
type Sample struct {
	Steps     int       `json:"steps,omitempty"`
	HeartRate int       `json:"heartRate,omitempty"`
	At        time.Time `json:"at"`
}

type Tracker struct {
	mu sync.RWMutex

	stepsDay  string
	steps     int
	heartRate int
	heartAt   time.Time

	now     func() time.Time
	printer *message.Printer
}

var ErrInvalidSample = errors.New("sample carries no readings")

func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now, printer: message.NewPrinter(language.English)}
}

func day(t time.Time) string { return t.Format(time.DateOnly) }

func (t *Tracker) Record(s Sample) error {
	if s.Steps <= 0 && s.HeartRate <= 0 {
		return ErrInvalidSample
	}
	if s.At.IsZero() {
		s.At = t.now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if s.Steps > 0 {
		d := day(s.At)
		if d != t.stepsDay || s.Steps > t.steps {
			t.stepsDay, t.steps = d, s.Steps
		}
	}
	if s.HeartRate > 0 && !s.At.Before(t.heartAt) {
		t.heartRate, t.heartAt = s.HeartRate, s.At
	}
	return nil
}

func (t *Tracker) todaySteps() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.stepsDay != day(t.now()) {
		return 0
	}
	return t.steps
}

func (t *Tracker) Steps(context.Context) (string, error) {
	n := t.todaySteps()
	switch {
	case n == 0:
		return "You haven't recorded any steps today. Time to get moving!", nil
	case n < 5000:
		return t.printer.Sprintf("You've taken %d steps today. Keep going!", n), nil
	case n < 10000:
		return t.printer.Sprintf("You've taken %d steps today. Well on your way to your goal!", n), nil
	default:
		return t.printer.Sprintf("Impressive! You've taken %d steps today. Excellent work!", n), nil
	}
}

func (t *Tracker) HeartRate(context.Context) (string, error) {
	t.mu.RLock()
	bpm := t.heartRate
	t.mu.RUnlock()

	switch {
	case bpm == 0:
		return "No heart rate data available. Is your watch connected?", nil
	case bpm < 60:
		return fmt.Sprintf("Your heart rate is %d BPM. Nice and relaxed.", bpm), nil
	case bpm < 100:
		return fmt.Sprintf("Your heart rate is %d BPM. Looking normal.", bpm), nil
	default:
		return fmt.Sprintf("Your heart rate is %d BPM. Elevated, have you been active?", bpm), nil
	}
}

func (t *Tracker) Summary(ctx context.Context) (string, error) {
	steps, _ := t.Steps(ctx)

	t.mu.RLock()
	bpm, at := t.heartRate, t.heartAt
	t.mu.RUnlock()

	if bpm == 0 || t.now().Sub(at) > time.Hour {
		return steps, nil
	}
	return fmt.Sprintf("%s Your latest heart rate was %d BPM.", steps, bpm), nil
}
