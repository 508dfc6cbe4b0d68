// Package vad segments a mono frame stream into utterances by energy.
package vad

import "math"

const (
	silenceThreshRMS   = 0.015
	silenceFramesToEnd = 30 // 600ms of 20ms frames
)

// Utterance accumulates voiced audio and detects its end.
type Utterance struct {
	Samples       []float32
	speaking      bool
	silenceFrames int
}

// Push adds a frame and reports whether the utterance is complete.
func (u *Utterance) Push(frame []float32) bool {
	if FrameRMS(frame) > silenceThreshRMS {
		u.speaking = true
		u.silenceFrames = 0
		u.Samples = append(u.Samples, frame...)
		return false
	}
	if !u.speaking {
		return false
	}

	u.silenceFrames++
	u.Samples = append(u.Samples, frame...)
	return u.silenceFrames >= silenceFramesToEnd
}

func (u *Utterance) Speaking() bool { return u.speaking }

func (u *Utterance) Reset() {
	*u = Utterance{}
}

func FrameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
