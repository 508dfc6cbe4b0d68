package bootstrap

import (
	"context"
	"errors"
	"net/http"

	"jarvis/internal/audio"
	"jarvis/internal/bus"
	"jarvis/internal/config"
	"jarvis/internal/dispatch"
	"jarvis/internal/home"
	"jarvis/internal/ports"
	"jarvis/internal/providers/desktop"
	"jarvis/internal/providers/google"
	"jarvis/internal/providers/mpris"
	"jarvis/internal/providers/weather"
	"jarvis/pkg/protocol"
)

// buildProviders connects whatever backends are configured. A backend that
// fails to connect stays nil and its intents answer with a failure line.
func (s *Services) buildProviders(ctx context.Context, cfg config.Config, httpClient *http.Client, mic *audio.Mic) dispatch.Providers {
	p := dispatch.Providers{
		Weather:  weather.New(httpClient, weather.Config{Location: cfg.Weather.Location, Imperial: cfg.Weather.Imperial}),
		Launcher: desktop.NewLauncher(cfg.Paths.Home),
		Device:   audio.NewDevice(),
		Workflow: desktop.NewWorkflow(desktop.WorkflowConfig{
			PhotoDir:   cfg.Paths.Photos,
			VideoDir:   cfg.Paths.Videos,
			NoteDir:    cfg.Paths.Notes,
			SampleRate: audio.SampleRate,
			SaveWAV:    audio.WriteWAV,
		}, mic),
	}

	if h := s.connectHub(ctx, cfg.Hub); h != nil {
		p.Home = h
	}

	g, err := google.New(ctx, google.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		TokenPath:    cfg.Google.TokenPath,
		CalendarID:   cfg.Google.CalendarID,
		TaskList:     cfg.Google.TaskList,
		HTTPClient:   httpClient,
	})
	switch {
	case errors.Is(err, google.ErrNotAuthorized), errors.Is(err, ports.ErrUnavailable):
		s.log.Info("Google calendar disabled", "reason", err)
	case err != nil:
		s.log.Warn("Failed to connect Google account", "err", err)
	default:
		p.Calendar = g
		p.Reminders = g
	}

	player, err := mpris.Connect(cfg.Media.PreferredPlayer)
	if err != nil {
		s.log.Warn("Media control disabled", "err", err)
	} else {
		p.Media = player
		s.closers = append(s.closers, player.Close)
	}

	return p
}

func (s *Services) connectHub(ctx context.Context, cfg config.HubConfig) *home.Hub {
	if cfg.URL == "" {
		s.log.Info("No hub configured, home control disabled")
		return nil
	}

	hub, err := protocol.New(ctx, protocol.Config{
		Shard: cfg.Shard,
		URL:   cfg.URL,
		OnMessage: func(m *protocol.Message) {
			s.Bus.Publish(bus.Message{Kind: bus.KindHub, From: m.From, Content: m.String()})
		},
	})
	if err != nil {
		s.log.Warn("Failed to connect to hub, home control disabled", "url", cfg.URL, "err", err)
		return nil
	}
	s.hub = hub
	s.closers = append(s.closers, hub.Close)
	s.log.Info("Connected to hub", "url", cfg.URL, "shard", cfg.Shard)

	return home.NewHub(hub, home.Config{
		LightsNode: cfg.LightsNode,
		LockNode:   cfg.LockNode,
		SceneNode:  cfg.SceneNode,
	})
}
