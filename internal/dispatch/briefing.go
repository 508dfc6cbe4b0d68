package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jarvis/internal/domain"
	"jarvis/internal/respond"
	"jarvis/internal/timer"
)

// briefing assembles greeting, time, weather, calendar and timers.
// Sections whose provider fails are left out.
func (d *Dispatcher) briefing(ctx context.Context, p domain.Personality) string {
	now := d.cfg.Now()
	parts := []string{
		respond.Salutation(now),
		fmt.Sprintf("It's %s on %s.", now.Format("3:04 PM"), now.Format("Monday, January 2")),
	}

	pv := d.deps.Providers
	if pv.Weather != nil {
		if w, err := call(ctx, d.cfg.ProviderTimeout, pv.Weather.Current); err == nil && w != "" {
			parts = append(parts, w)
		} else if err != nil {
			d.log.Debug("Briefing weather skipped", "err", err)
		}
	}
	if pv.Calendar != nil {
		if c, err := call(ctx, d.cfg.ProviderTimeout, pv.Calendar.TodayEvents); err == nil && c != "" {
			parts = append(parts, c)
		} else if err != nil {
			d.log.Debug("Briefing calendar skipped", "err", err)
		}
	}
	if d.deps.Timers != nil {
		if active := d.deps.Timers.Active(); len(active) > 0 {
			parts = append(parts, fmt.Sprintf("You have %d active timer%s, the next finishing in %s.",
				len(active), pluralS(len(active)), timer.Describe(active[0].Remaining(now).Round(time.Second))))
		}
	}

	parts = append(parts, closing(p))
	return strings.Join(parts, " ")
}

func closing(p domain.Personality) string {
	switch p {
	case domain.PersonalitySarcastic:
		return "That's everything. Try to contain your excitement."
	case domain.PersonalityFriendly:
		return "Have a wonderful day!"
	default:
		return "That concludes your briefing, sir."
	}
}

func pluralS(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
