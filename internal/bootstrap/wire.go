package bootstrap

import (
	"context"
	"fmt"
	log "log/slog"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"jarvis/internal/api"
	"jarvis/internal/audio"
	"jarvis/internal/bus"
	"jarvis/internal/config"
	"jarvis/internal/dispatch"
	"jarvis/internal/health"
	"jarvis/internal/ipc"
	"jarvis/internal/macro"
	"jarvis/internal/memory"
	"jarvis/internal/netwatch"
	"jarvis/internal/nlu"
	"jarvis/internal/notify"
	"jarvis/internal/ports"
	"jarvis/internal/providers/deepgram"
	"jarvis/internal/providers/whisper"
	"jarvis/internal/proxy"
	"jarvis/internal/session"
	"jarvis/internal/settings"
	"jarvis/internal/store"
	"jarvis/internal/telemetry"
	"jarvis/internal/timer"
	"jarvis/internal/tts"
	"jarvis/internal/tts/espeak"
	"jarvis/internal/wake"
	"jarvis/pkg/protocol"
	"jarvis/pkg/stt"
)

// Options are the command-line overrides for the daemon.
type Options struct {
	SocketPath string
	APIAddr    string
	NoAPI      bool
	AutoListen bool
}

// Services is the assembled runtime graph.
type Services struct {
	Config     config.Config
	Session    *session.Session
	Dispatcher *dispatch.Dispatcher
	Settings   *settings.Settings
	Timers     *timer.Manager
	Bus        *bus.Bus

	opts     Options
	cues     *notify.Cues
	notifier ports.Notifier
	monitor  *netwatch.Monitor
	wake     *wake.Engine
	hub      *protocol.Protocol
	api      *api.Server
	ipc      *ipc.Server
	nats     *telemetry.Conn
	closers  []func() error
	log      *log.Logger
}

// Build wires all backend dependencies for the current runtime.
func Build(ctx context.Context, cfg config.Config, opts Options) (_ *Services, err error) {
	s := &Services{
		Config: cfg,
		Bus:    bus.New(),
		Timers: timer.NewManager(),
		opts:   opts,
		log:    log.Default().With("component", "bootstrap"),
	}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	db, err := store.Open(cfg.Paths.Database)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, db.Close)

	macros := macro.NewEngine(db)
	if err := macros.Load(ctx); err != nil {
		return nil, fmt.Errorf("load protocols: %w", err)
	}
	facts := memory.NewManager(db)
	if err := facts.Load(ctx); err != nil {
		return nil, fmt.Errorf("load memory: %w", err)
	}
	s.Settings = settings.New(db)
	if err := s.Settings.Load(ctx); err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	httpClient, err := proxy.NewClient(cfg.Network.SocksProxy, 0)
	if err != nil {
		return nil, fmt.Errorf("proxy client: %w", err)
	}
	dialer, err := proxy.NewDialer(cfg.Network.SocksProxy)
	if err != nil {
		return nil, fmt.Errorf("proxy dialer: %w", err)
	}

	s.monitor = netwatch.New(netwatch.Config{
		Targets:  cfg.Network.ProbeTargets,
		Interval: cfg.Network.ProbeInterval,
		OnChange: func(online bool) {
			state := "offline"
			if online {
				state = "online"
			}
			s.Bus.Publish(bus.Message{Kind: bus.KindState, From: "netwatch", State: state})
		},
	}, dialer)

	player := audio.NewPlayer()
	mic := audio.NewMic()
	if err := mic.Init(); err != nil {
		return nil, fmt.Errorf("init audio: %w", err)
	}
	s.closers = append(s.closers, func() error { mic.Close(); return nil })

	s.cues = notify.NewCues(player, cfg.Speech.CueDir, s.Settings.BeepsEnabled)
	s.notifier = notify.NewDesktop("Jarvis", "audio-input-microphone")

	var client *openai.Client
	if cfg.OpenAI.APIKey != "" {
		reqOpts := []option.RequestOption{
			option.WithAPIKey(cfg.OpenAI.APIKey),
			option.WithHTTPClient(httpClient),
		}
		if cfg.OpenAI.BaseURL != "" {
			reqOpts = append(reqOpts, option.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		c := openai.NewClient(reqOpts...)
		client = &c
	} else {
		s.log.Warn("OPENAI_API_KEY not set, using offline replies and espeak")
	}

	speaker, err := buildSpeaker(cfg, client, s.Settings, player)
	if err != nil {
		return nil, err
	}

	var responder ports.Responder = nlu.NewOffline(s.Settings)
	if client != nil {
		responder = nlu.NewResponder(*client, nlu.Config{
			Model:      cfg.OpenAI.ChatModel,
			MaxHistory: cfg.OpenAI.MaxHistory,
			MaxTokens:  int64(cfg.OpenAI.MaxTokens),
		}, s.Settings, facts)
	}

	recognizer, err := s.buildRecognizer(cfg, mic)
	if err != nil {
		return nil, err
	}
	s.wake = wake.New(recognizer, wake.Config{
		Phrases:        cfg.Wake.Phrases,
		SilenceTimeout: cfg.Wake.SilenceTimeout,
	})

	providers := s.buildProviders(ctx, cfg, httpClient, mic)
	tracker := health.NewTracker(time.Now)
	providers.Health = tracker

	s.Dispatcher = dispatch.New(dispatch.Deps{
		Providers: providers,
		Macros:    macros,
		Actions: &dispatch.ActionExecutor{
			Home:    providers.Home,
			Device:  providers.Device,
			Media:   providers.Media,
			Speaker: speaker,
			Timeout: cfg.Dispatch.ProviderTimeout,
		},
		Responder:    responder,
		Connectivity: s.monitor,
		Timers:       s.Timers,
		Memory:       facts,
		Personality:  s.Settings,
	}, dispatch.Config{
		ProviderTimeout:  cfg.Dispatch.ProviderTimeout,
		ResponderTimeout: cfg.Dispatch.ResponderTimeout,
	})

	s.Session = session.New(session.Deps{
		Wake:        s.wake,
		Handler:     s.Dispatcher,
		Speaker:     speaker,
		Bus:         s.Bus,
		Cues:        s.cues,
		Personality: s.Settings,
	}, session.Config{Greet: cfg.Wake.Greet})

	if !opts.NoAPI {
		addr := cfg.API.Addr
		if opts.APIAddr != "" {
			addr = opts.APIAddr
		}
		s.api = api.NewServer(api.Deps{
			Assistant:    s.Session,
			History:      s.Dispatcher.History(),
			Protocols:    macros,
			Facts:        facts,
			Settings:     s.Settings,
			Timers:       s.Timers,
			Health:       tracker,
			Events:       s.Bus,
			Connectivity: s.monitor,
		}, addr, cfg.API.Token)
	}

	s.ipc, err = ipc.Listen(opts.SocketPath, s.handleControl)
	if err != nil {
		return nil, fmt.Errorf("ipc: %w", err)
	}

	if cfg.NATS.URL != "" {
		conn, err := telemetry.Connect(cfg.NATS.URL)
		if err != nil {
			s.log.Warn("NATS unavailable, events stay local", "url", cfg.NATS.URL, "err", err)
		} else {
			s.nats = conn
			s.closers = append(s.closers, func() error { conn.Close(); return nil })
		}
	}

	return s, nil
}

func buildSpeaker(cfg config.Config, client *openai.Client, sets *settings.Settings, player *audio.Player) (*tts.Speaker, error) {
	var backends []tts.Backend
	if client != nil {
		backends = append(backends, tts.NewOpenAI(*client, cfg.OpenAI.TTSModel, sets, player))
	}
	backends = append(backends, espeak.New(cfg.Speech.EspeakVoice, sets.SpeechSpeed))

	chain, err := tts.NewChain(backends...)
	if err != nil {
		return nil, fmt.Errorf("tts: %w", err)
	}

	var ducker tts.Ducker
	if cfg.Speech.Duck {
		ducker = audio.NewDucker([]string{"jarvis", "espeak", "espeak-ng"}, 10)
	}
	return tts.NewSpeaker(chain, ducker), nil
}

func (s *Services) buildRecognizer(cfg config.Config, mic *audio.Mic) (ports.Recognizer, error) {
	if cfg.STT.Provider == "deepgram" {
		s.log.Info("Using Deepgram streaming recognition", "model", cfg.Deepgram.Model)
		return deepgram.NewRecognizer(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Deepgram.Language,
			SmartFormat: cfg.Deepgram.SmartFormat,
			SampleRate:  audio.SampleRate,
		}, mic), nil
	}

	tr, err := stt.NewTranscriber(cfg.STT.WhisperModel, stt.Options{
		Language:      cfg.STT.Language,
		Threads:       cfg.STT.Threads,
		InitialPrompt: "Hey Jarvis.",
	})
	if err != nil {
		return nil, fmt.Errorf("load whisper model %s: %w", cfg.STT.WhisperModel, err)
	}
	s.closers = append(s.closers, tr.Close)
	s.log.Info("Using local whisper recognition", "model", cfg.STT.WhisperModel)

	return whisper.NewRecognizer(mic, func(ctx context.Context, pcm []float32) (string, error) {
		res, err := tr.Transcribe(ctx, pcm)
		if err != nil {
			return "", err
		}
		return res.Text, nil
	}), nil
}
