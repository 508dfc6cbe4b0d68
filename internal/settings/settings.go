package settings

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strconv"
	"sync"

	"jarvis/internal/domain"
	"jarvis/internal/ports"
)

const (
	keyPersonality  = "personality"
	keyVoice        = "voice"
	keySpeechSpeed  = "speech_speed"
	keyStartupSound = "startup_sound"
	keyBeeps        = "confirmation_beeps"
)

var ErrInvalid = errors.New("invalid settings")

// Values is the user-adjustable assistant configuration.
type Values struct {
	Personality       domain.Personality `json:"personality"`
	Voice             string             `json:"voice"`
	SpeechSpeed       float64            `json:"speech_speed"`
	StartupSound      bool               `json:"startup_sound"`
	ConfirmationBeeps bool               `json:"confirmation_beeps"`
}

func Defaults() Values {
	return Values{
		Personality:       domain.PersonalityProfessional,
		Voice:             "onyx",
		SpeechSpeed:       1.0,
		StartupSound:      true,
		ConfirmationBeeps: true,
	}
}

type Settings struct {
	mu    sync.RWMutex
	v     Values
	store ports.SettingsStore
}

func New(store ports.SettingsStore) *Settings {
	return &Settings{v: Defaults(), store: store}
}

func (s *Settings) Load(ctx context.Context) error {
	v := Defaults()

	get := func(key string) (string, bool, error) {
		return s.store.Setting(ctx, key)
	}

	if raw, ok, err := get(keyPersonality); err != nil {
		return fmt.Errorf("load %s: %w", keyPersonality, err)
	} else if ok {
		if p, valid := domain.ParsePersonality(raw); valid {
			v.Personality = p
		}
	}
	if raw, ok, err := get(keyVoice); err != nil {
		return fmt.Errorf("load %s: %w", keyVoice, err)
	} else if ok && raw != "" {
		v.Voice = raw
	}
	if raw, ok, err := get(keySpeechSpeed); err != nil {
		return fmt.Errorf("load %s: %w", keySpeechSpeed, err)
	} else if ok {
		if f, perr := strconv.ParseFloat(raw, 64); perr == nil && f > 0 {
			v.SpeechSpeed = f
		}
	}
	if raw, ok, err := get(keyStartupSound); err != nil {
		return fmt.Errorf("load %s: %w", keyStartupSound, err)
	} else if ok {
		v.StartupSound = raw == "true"
	}
	if raw, ok, err := get(keyBeeps); err != nil {
		return fmt.Errorf("load %s: %w", keyBeeps, err)
	} else if ok {
		v.ConfirmationBeeps = raw == "true"
	}

	s.mu.Lock()
	s.v = v
	s.mu.Unlock()

	log.Debug("Loaded settings", "personality", v.Personality, "voice", v.Voice)
	return nil
}

func (s *Settings) Values() Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v
}

func (s *Settings) Personality() domain.Personality {
	return s.Values().Personality
}

func (s *Settings) BeepsEnabled() bool {
	return s.Values().ConfirmationBeeps
}

// Update validates and persists v.
func (s *Settings) Update(ctx context.Context, v Values) error {
	if _, ok := domain.ParsePersonality(string(v.Personality)); !ok {
		return fmt.Errorf("%w: unknown personality %q", ErrInvalid, v.Personality)
	}
	if v.SpeechSpeed <= 0 || v.SpeechSpeed > 4 {
		return fmt.Errorf("%w: speech speed %.2f out of range", ErrInvalid, v.SpeechSpeed)
	}
	if v.Voice == "" {
		v.Voice = Defaults().Voice
	}

	pairs := [][2]string{
		{keyPersonality, string(v.Personality)},
		{keyVoice, v.Voice},
		{keySpeechSpeed, strconv.FormatFloat(v.SpeechSpeed, 'f', -1, 64)},
		{keyStartupSound, strconv.FormatBool(v.StartupSound)},
		{keyBeeps, strconv.FormatBool(v.ConfirmationBeeps)},
	}
	for _, kv := range pairs {
		if err := s.store.SetSetting(ctx, kv[0], kv[1]); err != nil {
			return fmt.Errorf("save %s: %w", kv[0], err)
		}
	}

	s.mu.Lock()
	s.v = v
	s.mu.Unlock()
	return nil
}

func (s *Settings) Voice() string {
	return s.Values().Voice
}

func (s *Settings) SpeechSpeed() float64 {
	return s.Values().SpeechSpeed
}

func (s *Settings) StartupSound() bool {
	return s.Values().StartupSound
}
