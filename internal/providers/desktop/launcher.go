// Package desktop opens applications, URLs and media files on a Linux desktop
// and captures photos and voice notes.
package desktop

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
)

type commandRunner func(ctx context.Context, name string, args ...string) error

// execStart launches detached; the child outlives the request context.
func execStart(_ context.Context, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

type app struct {
	name     string
	target   string // URL or executable; empty opens the home directory
	keywords []string
}

var apps = []app{
	{"YouTube", "https://www.youtube.com", []string{"youtube"}},
	{"Netflix", "https://www.netflix.com", []string{"netflix"}},
	{"Twitch", "https://www.twitch.tv", []string{"twitch"}},
	{"Reddit", "https://www.reddit.com", []string{"reddit"}},
	{"Gmail", "https://mail.google.com", []string{"gmail", "mail", "email"}},
	{"Google Maps", "https://maps.google.com", []string{"maps", "google maps"}},
	{"Notion", "https://www.notion.so", []string{"notion"}},
	{"Spotify", "spotify", []string{"spotify", "music"}},
	{"Slack", "slack", []string{"slack"}},
	{"Discord", "discord", []string{"discord"}},
	{"Telegram", "telegram-desktop", []string{"telegram"}},
	{"Signal", "signal-desktop", []string{"signal"}},
	{"Firefox", "firefox", []string{"firefox", "browser"}},
	{"Terminal", "x-terminal-emulator", []string{"terminal", "console"}},
	{"Files", "", []string{"files", "file manager"}},
}

// Launcher implements ports.Launcher.
type Launcher struct {
	run  commandRunner
	home string
}

func NewLauncher(home string) *Launcher {
	return &Launcher{run: execStart, home: home}
}

func (l *Launcher) OpenApp(ctx context.Context, name string) (string, error) {
	spoken := strings.ToLower(strings.TrimSpace(name))
	if spoken == "" {
		return "", fmt.Errorf("no application named")
	}

	if a, ok := lookupApp(spoken); ok {
		if err := l.open(ctx, a.target); err != nil {
			return "", fmt.Errorf("open %s: %w", a.name, err)
		}
		return fmt.Sprintf("Opening %s.", a.name), nil
	}

	// Unknown names go through the desktop entry database.
	if err := l.run(ctx, "gtk-launch", strings.ReplaceAll(spoken, " ", "-")); err != nil {
		return fmt.Sprintf("I couldn't find an app called %s.", name), nil
	}
	return fmt.Sprintf("Opening %s.", name), nil
}

func (l *Launcher) Navigate(ctx context.Context, destination string) (string, error) {
	destination = strings.TrimSpace(destination)
	u := "https://www.google.com/maps/dir/?api=1&destination=" + url.QueryEscape(destination)
	if err := l.run(ctx, "xdg-open", u); err != nil {
		return "", fmt.Errorf("open maps: %w", err)
	}
	return fmt.Sprintf("Opening Maps with directions to %s.", destination), nil
}

func (l *Launcher) open(ctx context.Context, target string) error {
	switch {
	case strings.HasPrefix(target, "https://"):
		return l.run(ctx, "xdg-open", target)
	case target == "":
		return l.run(ctx, "xdg-open", l.home)
	default:
		return l.run(ctx, target)
	}
}

func lookupApp(spoken string) (app, bool) {
	// Longest keyword wins so "google maps" beats "maps".
	var (
		best    app
		bestLen int
	)
	for _, a := range apps {
		for _, k := range a.keywords {
			if strings.Contains(spoken, k) && len(k) > bestLen {
				best, bestLen = a, len(k)
			}
		}
	}
	return best, bestLen > 0
}
