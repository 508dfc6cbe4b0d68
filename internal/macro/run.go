package macro

import (
	"context"
	log "log/slog"
	"strconv"
	"strings"
	"time"

	"jarvis/internal/domain"
)

// ActionRunner performs a single non-wait action.
type ActionRunner interface {
	RunAction(ctx context.Context, a domain.Action) error
}

type Result struct {
	// Response is empty when the protocol has neither a response nor a say action.
	Response string
	// Spoken reports that Response was already played by the runner.
	Spoken bool
	Failed int
}

// Run executes p's actions in declaration order. Wait actions suspend for
// their value in seconds. Action failures are logged and do not stop the
// sequence, and the sequence is not cancelled with ctx.
//
// Without an explicit response the first say action is the response. When it
// is the last non-wait action it is left to the caller to speak; otherwise it
// runs in place and Result.Spoken is set.
func Run(ctx context.Context, p domain.Protocol, runner ActionRunner) Result {
	ctx = context.WithoutCancel(ctx)
	logger := log.Default().With("component", "macro", "protocol", p.Name)

	res := Result{}
	held := -1
	responseSay := -1
	if p.Response != nil && strings.TrimSpace(*p.Response) != "" {
		res.Response = strings.TrimSpace(*p.Response)
	} else {
		for i, a := range p.Actions {
			if a.Type == domain.ActionSay {
				responseSay = i
				res.Response = a.Value
				break
			}
		}
		if responseSay >= 0 && responseSay == lastNonWait(p.Actions) {
			held = responseSay
		}
	}

	logger.Info("Running protocol", "actions", len(p.Actions))

	for i, a := range p.Actions {
		if a.Type == domain.ActionWait {
			d, err := parseWait(a.Value)
			if err != nil {
				logger.Warn("Bad wait value", "value", a.Value, "err", err)
				res.Failed++
				continue
			}
			time.Sleep(d)
			continue
		}

		if i == held {
			continue
		}

		err := runner.RunAction(ctx, a)
		if err != nil {
			logger.Warn("Action failed", "type", a.Type, "value", a.Value, "err", err)
			res.Failed++
		}
		if i == responseSay {
			// A failed say is left for the caller to retry.
			res.Spoken = err == nil
		}
	}

	return res
}

func lastNonWait(actions []domain.Action) int {
	for i := len(actions) - 1; i >= 0; i-- {
		if actions[i].Type != domain.ActionWait {
			return i
		}
	}
	return -1
}

func parseWait(v string) (time.Duration, error) {
	secs, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, err
	}
	if secs < 0 {
		secs = 0
	}
	return time.Duration(secs * float64(time.Second)), nil
}
