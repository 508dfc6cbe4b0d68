package dispatch

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"jarvis/internal/domain"
	"jarvis/internal/intent"
	"jarvis/internal/macro"
	"jarvis/internal/ports"
	"jarvis/internal/respond"
	"jarvis/internal/timer"
)

// Macros resolves trigger phrases to protocols.
type Macros interface {
	CheckTrigger(text string) (domain.Protocol, bool)
}

type Timers interface {
	Start(d time.Duration, label string) (timer.Timer, error)
	Active() []timer.Timer
}

type Memory interface {
	Remember(ctx context.Context, content string) (domain.Fact, error)
}

type PersonalitySource interface {
	Personality() domain.Personality
}

// Providers groups the external resource collaborators. Nil members are
// treated as unavailable.
type Providers struct {
	Calendar  ports.Calendar
	Reminders ports.Reminders
	Home      ports.Home
	Health    ports.Health
	Media     ports.Media
	Weather   ports.Weather
	Launcher  ports.Launcher
	Device    ports.Device
	Workflow  ports.Workflow
}

type Deps struct {
	Providers    Providers
	Macros       Macros
	Actions      macro.ActionRunner
	Responder    ports.Responder
	Connectivity ports.Connectivity
	Timers       Timers
	Memory       Memory
	Personality  PersonalitySource
}

type Config struct {
	HistoryCap      int
	ProviderTimeout time.Duration
	// ResponderTimeout bounds the conversational responder, which is slower than device providers.
	ResponderTimeout time.Duration
	Now              func() time.Time
}

type Result struct {
	Command  domain.Command
	Response string
	// Spoken is set when a protocol already played Response.
	Spoken bool
}

// Dispatcher classifies finalized commands, runs the matching branch and
// always produces exactly one response.
type Dispatcher struct {
	deps    Deps
	cfg     Config
	history *History
	log     *log.Logger
}

func New(deps Deps, cfg Config) *Dispatcher {
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 8 * time.Second
	}
	if cfg.ResponderTimeout <= 0 {
		cfg.ResponderTimeout = 20 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Dispatcher{
		deps:    deps,
		cfg:     cfg,
		history: NewHistory(cfg.HistoryCap),
		log:     log.Default().With("component", "dispatch"),
	}
}

func (d *Dispatcher) History() *History {
	return d.history
}

var offlineCapable = map[domain.IntentTag]bool{
	domain.IntentTime:        true,
	domain.IntentDate:        true,
	domain.IntentTimer:       true,
	domain.IntentMusic:       true,
	domain.IntentBrightness:  true,
	domain.IntentVolume:      true,
	domain.IntentOpenApp:     true,
	domain.IntentNavigate:    true,
	domain.IntentHomeControl: true,
}

func (d *Dispatcher) personality() domain.Personality {
	if d.deps.Personality == nil {
		return domain.PersonalityProfessional
	}
	return d.deps.Personality.Personality()
}

func (d *Dispatcher) online() bool {
	return d.deps.Connectivity == nil || d.deps.Connectivity.Online()
}

// Handle records text in history, executes it and returns the response.
func (d *Dispatcher) Handle(ctx context.Context, text string) Result {
	tag := intent.Classify(text)
	cmd := domain.NewCommand(text, tag, d.cfg.Now())
	d.history.Add(cmd)

	p := d.personality()
	logger := d.log.With("id", cmd.ID, "intent", tag)
	logger.Info("Handling command", "text", text)

	var (
		response string
		ok       bool
		spoken   bool
	)
	if !d.online() && !offlineCapable[tag] {
		logger.Info("Offline, intent needs network")
		response, ok = respond.Offline(p), false
	} else if proto, found := d.matchProtocol(tag, text); found {
		response, spoken = d.runProtocol(ctx, proto, p)
		ok = true
	} else {
		response, ok = d.execute(ctx, tag, text, p)
	}

	cmd.Status = domain.StatusSuccess
	if !ok {
		cmd.Status = domain.StatusFailed
	}
	d.history.SetStatus(cmd.ID, cmd.Status)

	logger.Info("Command complete", "status", cmd.Status)
	return Result{Command: cmd, Response: response, Spoken: spoken}
}

func (d *Dispatcher) execute(ctx context.Context, tag domain.IntentTag, text string, p domain.Personality) (string, bool) {
	lower := intent.Normalize(text)
	pv := d.deps.Providers

	switch tag {
	case domain.IntentTime:
		return respond.Time(p, d.cfg.Now()), true

	case domain.IntentDate:
		return respond.Date(p, d.cfg.Now()), true

	case domain.IntentWeather:
		if pv.Weather == nil {
			return d.unavailable(tag, p)
		}
		return d.provide(ctx, tag, p, pv.Weather.Current)

	case domain.IntentCalendar:
		if pv.Calendar == nil {
			return d.unavailable(tag, p)
		}
		return d.provide(ctx, tag, p, pv.Calendar.TodayEvents)

	case domain.IntentReminder:
		if pv.Reminders == nil {
			return d.unavailable(tag, p)
		}
		title := intent.ReminderTitle(text)
		return d.provide(ctx, tag, p, func(ctx context.Context) (string, error) {
			return pv.Reminders.AddReminder(ctx, title)
		})

	case domain.IntentFitness:
		if pv.Health == nil {
			return d.unavailable(tag, p)
		}
		switch {
		case strings.Contains(lower, "heart"):
			return d.provide(ctx, tag, p, pv.Health.HeartRate)
		case strings.Contains(lower, "step"):
			return d.provide(ctx, tag, p, pv.Health.Steps)
		default:
			return d.provide(ctx, tag, p, pv.Health.Summary)
		}

	case domain.IntentHomeControl:
		return d.home(ctx, text, p)

	case domain.IntentMusic:
		if pv.Media == nil {
			return d.unavailable(tag, p)
		}
		switch {
		case strings.Contains(lower, "pause") || strings.Contains(lower, "stop"):
			return d.provide(ctx, tag, p, pv.Media.Pause)
		case strings.Contains(lower, "skip") || strings.Contains(lower, "next"):
			return d.provide(ctx, tag, p, pv.Media.Next)
		default:
			return d.provide(ctx, tag, p, func(ctx context.Context) (string, error) {
				return pv.Media.Play(ctx, "")
			})
		}

	case domain.IntentOpenApp:
		name := intent.AppName(text)
		if pv.Launcher == nil || name == "" {
			return d.unavailable(tag, p)
		}
		return d.provide(ctx, tag, p, func(ctx context.Context) (string, error) {
			return pv.Launcher.OpenApp(ctx, name)
		})

	case domain.IntentNavigate:
		dest := intent.Destination(text)
		if pv.Launcher == nil || dest == "" {
			return d.unavailable(tag, p)
		}
		return d.provide(ctx, tag, p, func(ctx context.Context) (string, error) {
			return pv.Launcher.Navigate(ctx, dest)
		})

	case domain.IntentBrightness:
		return d.level(ctx, tag, lower, p, brightnessLevel, func(ctx context.Context, v int) error {
			if pv.Device == nil {
				return ports.ErrUnavailable
			}
			return pv.Device.SetBrightness(ctx, v)
		})

	case domain.IntentVolume:
		return d.level(ctx, tag, lower, p, volumeLevel, func(ctx context.Context, v int) error {
			if pv.Device == nil {
				return ports.ErrUnavailable
			}
			return pv.Device.SetVolume(ctx, v)
		})

	case domain.IntentTimer:
		return d.timer(text, p)

	case domain.IntentRememberFact:
		if d.deps.Memory == nil {
			return d.unavailable(tag, p)
		}
		content := intent.FactContent(text)
		if _, err := d.deps.Memory.Remember(ctx, content); err != nil {
			d.log.Warn("Remember failed", "err", err)
			return respond.Failure(tag, p), false
		}
		return respond.Success(tag, p), true

	case domain.IntentBriefing:
		return d.briefing(ctx, p), true

	case domain.IntentPhoto:
		if pv.Workflow == nil {
			return d.unavailable(tag, p)
		}
		return d.provide(ctx, tag, p, pv.Workflow.CapturePhoto)

	case domain.IntentVideo:
		if pv.Workflow == nil {
			return d.unavailable(tag, p)
		}
		return d.provide(ctx, tag, p, pv.Workflow.ShowLastVideo)

	case domain.IntentNote:
		if pv.Workflow == nil {
			return d.unavailable(tag, p)
		}
		return d.provide(ctx, tag, p, pv.Workflow.RecordNote)

	case domain.IntentSendMessage:
		return respond.Failure(tag, p), false

	case domain.IntentRunProtocol:
		d.log.Info("No protocol matched", "text", text)
		return respond.ProtocolMissing(p), false

	default:
		return d.converse(ctx, text, p)
	}
}

func (d *Dispatcher) unavailable(tag domain.IntentTag, p domain.Personality) (string, bool) {
	d.log.Warn("No provider for intent", "intent", tag)
	return respond.Failure(tag, p), false
}

// provide calls a resource provider and maps failure to the canned string.
func (d *Dispatcher) provide(ctx context.Context, tag domain.IntentTag, p domain.Personality, fn func(context.Context) (string, error)) (string, bool) {
	text, err := call(ctx, d.cfg.ProviderTimeout, fn)
	if err != nil {
		d.log.Warn("Provider failed", "intent", tag, "err", err)
		return respond.Failure(tag, p), false
	}
	if strings.TrimSpace(text) == "" {
		text = respond.Success(tag, p)
	}
	return text, true
}

func (d *Dispatcher) home(ctx context.Context, text string, p domain.Personality) (string, bool) {
	tag := domain.IntentHomeControl
	home := d.deps.Providers.Home
	if home == nil {
		return d.unavailable(tag, p)
	}

	lower := intent.Normalize(text)
	if scene := intent.SceneName(text); scene != "" {
		return d.provide(ctx, tag, p, func(ctx context.Context) (string, error) {
			return home.Scene(ctx, scene)
		})
	}
	if strings.Contains(lower, "lock the") {
		return d.provide(ctx, tag, p, home.Lock)
	}

	switch v := intent.LightsCommand(text); v {
	case "":
		return d.provide(ctx, tag, p, home.LightStatus)
	default:
		return d.provide(ctx, tag, p, func(ctx context.Context) (string, error) {
			return home.Lights(ctx, v)
		})
	}
}

func brightnessLevel(lower string) (int, bool) {
	if v, ok := intent.Percent(lower); ok {
		return v, true
	}
	switch {
	case strings.Contains(lower, "brighter"):
		return 100, true
	case strings.Contains(lower, "dimmer"):
		return 30, true
	}
	return 0, false
}

func volumeLevel(lower string) (int, bool) {
	if v, ok := intent.Percent(lower); ok {
		return v, true
	}
	switch {
	case strings.Contains(lower, "unmute"):
		return 50, true
	case strings.Contains(lower, "mute"):
		return 0, true
	case strings.Contains(lower, "louder") || strings.Contains(lower, "turn up"):
		return 80, true
	case strings.Contains(lower, "quieter") || strings.Contains(lower, "turn down"):
		return 30, true
	}
	return 0, false
}

func (d *Dispatcher) level(ctx context.Context, tag domain.IntentTag, lower string, p domain.Personality,
	parse func(string) (int, bool), set func(context.Context, int) error) (string, bool) {
	v, ok := parse(lower)
	if !ok {
		return respond.Failure(tag, p), false
	}
	if err := callErr(ctx, d.cfg.ProviderTimeout, func(ctx context.Context) error { return set(ctx, v) }); err != nil {
		d.log.Warn("Level change failed", "intent", tag, "value", v, "err", err)
		return respond.Failure(tag, p), false
	}
	return fmt.Sprintf("%s Set to %d percent.", respond.Success(tag, p), v), true
}

func (d *Dispatcher) timer(text string, p domain.Personality) (string, bool) {
	tag := domain.IntentTimer
	if d.deps.Timers == nil {
		return d.unavailable(tag, p)
	}
	dur, ok := timer.ParseDuration(text)
	if !ok {
		return respond.Failure(tag, p), false
	}
	t, err := d.deps.Timers.Start(dur, timer.Describe(dur))
	if err != nil {
		d.log.Warn("Timer failed", "err", err)
		return respond.Failure(tag, p), false
	}
	return fmt.Sprintf("Timer set for %s, sir.", t.Label), true
}

// matchProtocol resolves run-protocol commands, and unknown ones whose text
// carries a trigger phrase.
func (d *Dispatcher) matchProtocol(tag domain.IntentTag, text string) (domain.Protocol, bool) {
	if d.deps.Macros == nil {
		return domain.Protocol{}, false
	}
	if tag != domain.IntentRunProtocol && tag != domain.IntentUnknown {
		return domain.Protocol{}, false
	}
	return d.deps.Macros.CheckTrigger(text)
}

func (d *Dispatcher) runProtocol(ctx context.Context, proto domain.Protocol, p domain.Personality) (string, bool) {
	d.log.Info("Running protocol", "name", proto.Name)

	runner := d.deps.Actions
	if runner == nil {
		runner = noopRunner{}
	}
	res := macro.Run(ctx, proto, runner)
	if res.Failed > 0 {
		d.log.Warn("Protocol finished with failed actions", "name", proto.Name, "failed", res.Failed)
	}
	if res.Response == "" {
		return respond.ProtocolComplete(p, proto.Name), false
	}
	return res.Response, res.Spoken
}

func (d *Dispatcher) converse(ctx context.Context, text string, p domain.Personality) (string, bool) {
	if d.deps.Responder == nil {
		return respond.Fallback(p), false
	}
	reply, err := call(ctx, d.cfg.ResponderTimeout, func(ctx context.Context) (string, error) {
		return d.deps.Responder.Reply(ctx, text)
	})
	if err == nil && strings.TrimSpace(reply) == "" {
		err = errors.New("empty reply")
	}
	if err != nil {
		d.log.Warn("Responder failed", "err", err)
		return respond.Fallback(p), false
	}
	return reply, true
}

type noopRunner struct{}

func (noopRunner) RunAction(context.Context, domain.Action) error { return ports.ErrUnavailable }
