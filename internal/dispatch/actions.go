package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"jarvis/internal/domain"
	"jarvis/internal/ports"
)

// ActionExecutor routes protocol actions to the device providers.
type ActionExecutor struct {
	Home    ports.Home
	Device  ports.Device
	Media   ports.Media
	Speaker ports.Speaker
	Timeout time.Duration
}

func (x *ActionExecutor) timeout() time.Duration {
	if x.Timeout <= 0 {
		return 8 * time.Second
	}
	return x.Timeout
}

func (x *ActionExecutor) RunAction(ctx context.Context, a domain.Action) error {
	value := strings.TrimSpace(a.Value)

	switch a.Type {
	case domain.ActionLights:
		if x.Home == nil {
			return ports.ErrUnavailable
		}
		_, err := call(ctx, x.timeout(), func(ctx context.Context) (string, error) {
			return x.Home.Lights(ctx, strings.ToLower(value))
		})
		return err

	case domain.ActionLock:
		if x.Home == nil {
			return ports.ErrUnavailable
		}
		_, err := call(ctx, x.timeout(), x.Home.Lock)
		return err

	case domain.ActionVolume:
		if x.Device == nil {
			return ports.ErrUnavailable
		}
		v, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
		if err != nil {
			return fmt.Errorf("volume value %q: %w", value, err)
		}
		return callErr(ctx, x.timeout(), func(ctx context.Context) error {
			return x.Device.SetVolume(ctx, v)
		})

	case domain.ActionMusic:
		if x.Media == nil {
			return ports.ErrUnavailable
		}
		var fn func(context.Context) (string, error)
		switch strings.ToLower(value) {
		case "pause", "stop":
			fn = x.Media.Pause
		case "next", "skip":
			fn = x.Media.Next
		case "", "play", "resume":
			fn = func(ctx context.Context) (string, error) { return x.Media.Play(ctx, "") }
		default:
			fn = func(ctx context.Context) (string, error) { return x.Media.Play(ctx, value) }
		}
		_, err := call(ctx, x.timeout(), fn)
		return err

	case domain.ActionSay:
		if x.Speaker == nil {
			return ports.ErrUnavailable
		}
		return x.Speaker.Speak(ctx, value)

	default:
		return fmt.Errorf("unsupported action %q", a.Type)
	}
}
