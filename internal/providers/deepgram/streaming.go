package deepgram

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"jarvis/internal/domain"
	"jarvis/internal/ports"
)

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
	SampleRate  int
}

// Recognizer implements ports.Recognizer by streaming microphone audio to Deepgram.
type Recognizer struct {
	cfg Config
	src ports.AudioSource
}

func NewRecognizer(cfg Config, src ports.AudioSource) *Recognizer {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	return &Recognizer{cfg: cfg, src: src}
}

func (r *Recognizer) Start(ctx context.Context) (ports.TranscriptionSession, error) {
	if strings.TrimSpace(r.cfg.APIKey) == "" {
		return nil, errors.New("DEEPGRAM_API_KEY is not configured")
	}

	wsURL, err := buildListenURL(r.cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.cfg.APIKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("deepgram rejected credentials: %w", ports.ErrPermissionDenied)
		}
		return nil, fmt.Errorf("failed to connect to Deepgram websocket: %w", err)
	}

	captureCtx, stopCapture := context.WithCancel(ctx)
	capture, err := r.src.Open(captureCtx)
	if err != nil {
		stopCapture()
		_ = conn.Close()
		return nil, fmt.Errorf("open microphone: %w", err)
	}

	s := &session{
		conn:        conn,
		capture:     capture,
		stopCapture: stopCapture,
		events:      make(chan domain.TranscriptEvent, 64),
		closing:     make(chan struct{}),
		done:        make(chan struct{}),
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()
	go func() {
		s.wg.Wait()
		close(s.events)
		close(s.done)
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()

	return s, nil
}

type session struct {
	conn        *websocket.Conn
	capture     ports.AudioCapture
	stopCapture context.CancelFunc

	events  chan domain.TranscriptEvent
	closing chan struct{}
	done    chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

func (s *session) Events() <-chan domain.TranscriptEvent {
	return s.events
}

func (s *session) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
		s.stopCapture()
		_ = s.conn.Close()
	})
	<-s.done
	return s.waitErr()
}

func (s *session) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *session) setErr(err error) {
	if err == nil {
		return
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
			return
		}
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *session) writeLoop() {
	defer s.wg.Done()

	for frame := range s.capture.Frames() {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, linear16(frame)); err != nil {
			s.setErr(fmt.Errorf("failed to send audio: %w", err))
			s.stopCapture()
			return
		}
	}
	if err := s.capture.Err(); err != nil {
		s.setErr(err)
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		log.Debug("Deepgram close stream failed", "err", err)
	}
}

func (s *session) readLoop() {
	defer s.wg.Done()
	defer s.stopCapture()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closing:
			default:
				s.setErr(fmt.Errorf("failed to read provider event: %w", err))
			}
			return
		}

		var response deepgramResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			s.setErr(errors.New(message))
			return
		}

		transcript := extractTranscript(response)
		if transcript == "" {
			continue
		}

		event := domain.TranscriptEvent{Kind: domain.TranscriptKindPartial, Text: transcript}
		if response.IsFinal || response.SpeechFinal {
			event.Kind = domain.TranscriptKindFinal
		}
		select {
		case s.events <- event:
		case <-s.closing:
			return
		}
	}
}

func linear16(frame []float32) []byte {
	out := make([]byte, 2*len(frame))
	for i, f := range frame {
		v := int16(math.Round(float64(max(-1, min(1, f))) * 32767))
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}

type deepgramResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func extractTranscript(response deepgramResponse) string {
	if len(response.Channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(response.Channel.Alternatives[0].Transcript)
}

func buildListenURL(cfg Config) (string, error) {
	base := strings.TrimSpace(cfg.APIBaseURL)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	query := listenURL.Query()
	query.Set("model", cfg.Model)
	query.Set("encoding", "linear16")
	query.Set("sample_rate", fmt.Sprintf("%d", cfg.SampleRate))
	query.Set("channels", "1")
	query.Set("interim_results", "true")
	query.Set("smart_format", fmt.Sprintf("%t", cfg.SmartFormat))
	if cfg.Language != "" {
		query.Set("language", cfg.Language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
