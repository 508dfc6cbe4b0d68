package espeak

/*
#cgo LDFLAGS: -lespeak-ng
#include <stdlib.h>
#include <espeak-ng/speak_lib.h>

static int
espeak_say(const char *text, const char *voice, int rate)
{
	if (!text || !voice)
	{ return -1; }

	if (espeak_Initialize(AUDIO_OUTPUT_SYNCH_PLAYBACK, 500, NULL, 0) < 0)
	{ return -2; }

	espeak_VOICE specs = { .languages = voice };
	espeak_SetVoiceByProperties(&specs);
	espeak_SetParameter(espeakRATE, rate, 0);

	espeak_Synth(text, 500, 0, 0, 0, espeakCHARS_AUTO, NULL, NULL);
	espeak_Synchronize();
	espeak_Terminate();

	return 0;
}

static void
espeak_stop(void)
{
	espeak_Cancel();
}
*/
import "C"

import (
	"context"
	"fmt"
	"sync"
	"unsafe"
)

const baseRate = 175 // words per minute at speed 1.0

// Engine speaks through the local espeak-ng library. It works offline.
type Engine struct {
	mu    sync.Mutex
	voice string
	speed func() float64
}

// New returns an engine for the given espeak voice (e.g. "en", "en-gb").
// speed may be nil.
func New(voice string, speed func() float64) *Engine {
	if voice == "" {
		voice = "en-gb"
	}
	return &Engine{voice: voice, speed: speed}
}

func (e *Engine) Name() string { return "espeak" }

func (e *Engine) Say(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rate := baseRate
	if e.speed != nil {
		if s := e.speed(); s > 0 {
			rate = int(float64(baseRate) * s)
		}
	}

	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))
	cvoice := C.CString(e.voice)
	defer C.free(unsafe.Pointer(cvoice))

	done := make(chan C.int, 1)
	go func() {
		done <- C.espeak_say(ctext, cvoice, C.int(rate))
	}()

	select {
	case rc := <-done:
		if rc != 0 {
			return fmt.Errorf("espeak_say failed: %d", int(rc))
		}
		return nil
	case <-ctx.Done():
		C.espeak_stop()
		<-done
		return ctx.Err()
	}
}
