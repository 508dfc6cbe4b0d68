package timer

import (
	"fmt"
	log "log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	hoursRe   = regexp.MustCompile(`\b(\d+|an?|one|two|three|four|five|ten|fifteen|twenty|thirty)\s*(hours?|hrs?)`)
	minutesRe = regexp.MustCompile(`\b(\d+|an?|one|two|three|four|five|ten|fifteen|twenty|thirty|forty|fifty)\s*(minutes?|mins?)`)
	secondsRe = regexp.MustCompile(`\b(\d+|an?|one|two|three|four|five|ten|fifteen|twenty|thirty|forty|fifty)\s*(seconds?|secs?)`)
	halfHour  = regexp.MustCompile(`half (an|a) hour`)
)

var numberWords = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"ten": 10, "fifteen": 15, "twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
}

func amount(s string) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return numberWords[s]
}

// ParseDuration extracts a spoken duration such as "5 minutes" or
// "1 hour 30 minutes" from text.
func ParseDuration(text string) (time.Duration, bool) {
	s := strings.ToLower(text)
	var d time.Duration

	if halfHour.MatchString(s) {
		d += 30 * time.Minute
		s = halfHour.ReplaceAllString(s, "")
	}
	if m := hoursRe.FindStringSubmatch(s); m != nil {
		d += time.Duration(amount(m[1])) * time.Hour
	}
	if m := minutesRe.FindStringSubmatch(s); m != nil {
		d += time.Duration(amount(m[1])) * time.Minute
	}
	if m := secondsRe.FindStringSubmatch(s); m != nil {
		d += time.Duration(amount(m[1])) * time.Second
	}

	return d, d > 0
}

// Describe renders d the way it is spoken back.
func Describe(d time.Duration) string {
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	s := int((d % time.Minute) / time.Second)

	var parts []string
	if h > 0 {
		parts = append(parts, plural(h, "hour"))
	}
	if m > 0 {
		parts = append(parts, plural(m, "minute"))
	}
	if s > 0 {
		parts = append(parts, plural(s, "second"))
	}
	switch len(parts) {
	case 0:
		return "0 seconds"
	case 1:
		return parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

type Timer struct {
	ID       string        `json:"id"`
	Label    string        `json:"label"`
	Duration time.Duration `json:"duration"`
	EndsAt   time.Time     `json:"ends_at"`
}

func (t Timer) Remaining(now time.Time) time.Duration {
	if r := t.EndsAt.Sub(now); r > 0 {
		return r
	}
	return 0
}

// Manager runs countdown timers and reports completions on Done.
type Manager struct {
	mu     sync.Mutex
	active map[string]*entry
	done   chan Timer
	log    *log.Logger
}

type entry struct {
	timer Timer
	t     *time.Timer
}

func NewManager() *Manager {
	return &Manager{
		active: make(map[string]*entry),
		done:   make(chan Timer, 8),
		log:    log.Default().With("component", "timer"),
	}
}

// Done delivers timers as they complete.
func (m *Manager) Done() <-chan Timer {
	return m.done
}

func (m *Manager) Start(d time.Duration, label string) (Timer, error) {
	if d <= 0 {
		return Timer{}, fmt.Errorf("invalid timer duration %s", d)
	}

	t := Timer{
		ID:       uuid.NewString(),
		Label:    label,
		Duration: d,
		EndsAt:   time.Now().Add(d),
	}

	m.mu.Lock()
	m.active[t.ID] = &entry{
		timer: t,
		t:     time.AfterFunc(d, func() { m.fire(t.ID) }),
	}
	m.mu.Unlock()

	m.log.Info("Timer started", "id", t.ID, "duration", d, "label", label)
	return t, nil
}

func (m *Manager) fire(id string) {
	m.mu.Lock()
	e, ok := m.active[id]
	delete(m.active, id)
	m.mu.Unlock()

	if !ok {
		return
	}

	m.log.Info("Timer complete", "id", id, "label", e.timer.Label)
	select {
	case m.done <- e.timer:
	default:
		m.log.Warn("Timer completion dropped", "id", id)
	}
}

func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.active[id]
	if !ok {
		return false
	}
	e.t.Stop()
	delete(m.active, id)
	return true
}

// Active lists running timers, soonest first.
func (m *Manager) Active() []Timer {
	m.mu.Lock()
	out := make([]Timer, 0, len(m.active))
	for _, e := range m.active {
		out = append(out, e.timer)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].EndsAt.Before(out[j].EndsAt) })
	return out
}

func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.active {
		e.t.Stop()
		delete(m.active, id)
	}
}
