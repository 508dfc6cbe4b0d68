// Package google reads the user's calendar and files reminders as Google
// Tasks using a stored OAuth2 token.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/tasks/v1"

	"jarvis/internal/ports"
)

type Config struct {
	ClientID     string
	ClientSecret string
	TokenPath    string // default: ~/.config/jarvis/google_token.json
	CalendarID   string // default: primary
	TaskList     string // default: @default

	// HTTPClient carries proxy settings for token refresh and API calls.
	HTTPClient *http.Client
	Now        func() time.Time
}

// Client implements ports.Calendar and ports.Reminders.
type Client struct {
	cal   *calendar.Service
	tasks *tasks.Service
	cfg   Config
}

var ErrNotAuthorized = errors.New("google account is not connected")

func DefaultTokenPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "jarvis", "google_token.json")
}

// New builds a client from the stored token. A missing token file yields
// ErrNotAuthorized.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required: %w", ports.ErrUnavailable)
	}
	if cfg.TokenPath == "" {
		cfg.TokenPath = DefaultTokenPath()
	}

	token, err := loadToken(cfg.TokenPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotAuthorized
		}
		return nil, fmt.Errorf("load token: %w", err)
	}

	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{calendar.CalendarReadonlyScope, tasks.TasksScope},
		Endpoint:     googleoauth.Endpoint,
	}
	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}
	httpClient := oauthConfig.Client(ctx, token)

	return newWithOptions(ctx, cfg, option.WithHTTPClient(httpClient))
}

func newWithOptions(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Client, error) {
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if cfg.TaskList == "" {
		cfg.TaskList = "@default"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	cal, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	ts, err := tasks.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks service: %w", err)
	}
	return &Client{cal: cal, tasks: ts, cfg: cfg}, nil
}

// TodayEvents summarizes what is left on today's calendar.
func (c *Client) TodayEvents(ctx context.Context) (string, error) {
	now := c.cfg.Now()
	y, m, d := now.Date()
	endOfDay := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())

	events, err := c.cal.Events.List(c.cfg.CalendarID).
		TimeMin(now.Format(time.RFC3339)).
		TimeMax(endOfDay.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("list events: %w", err)
	}

	items := events.Items
	if len(items) == 0 {
		return "Your calendar is clear for the rest of the day.", nil
	}

	first := items[0]
	title := strings.TrimSpace(first.Summary)
	if title == "" {
		title = "an untitled event"
	}
	when := eventTime(first, now.Location())

	if len(items) == 1 {
		return fmt.Sprintf("You have one event today: %s %s.", title, when), nil
	}
	return fmt.Sprintf("You have %d events today. The next one is %s %s.", len(items), title, when), nil
}

func eventTime(e *calendar.Event, loc *time.Location) string {
	if e.Start == nil || e.Start.DateTime == "" {
		return "all day"
	}
	t, err := time.Parse(time.RFC3339, e.Start.DateTime)
	if err != nil {
		return "later today"
	}
	return "at " + t.In(loc).Format("3:04 PM")
}

func (c *Client) AddReminder(ctx context.Context, title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", errors.New("empty reminder")
	}

	_, err := c.tasks.Tasks.Insert(c.cfg.TaskList, &tasks.Task{Title: title}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}
	return fmt.Sprintf("I've added '%s' to your reminders.", title), nil
}

func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}
	return &token, nil
}
