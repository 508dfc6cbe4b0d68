package notify

import (
	"context"
	"fmt"
	"os/exec"
)

// Desktop posts notifications through notify-send.
type Desktop struct {
	app  string
	icon string
	run  func(ctx context.Context, name string, args ...string) error
}

func NewDesktop(app, icon string) *Desktop {
	return &Desktop{
		app:  app,
		icon: icon,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

func (d *Desktop) Notify(ctx context.Context, title, body string) error {
	args := []string{"--app-name", d.app}
	if d.icon != "" {
		args = append(args, "--icon", d.icon)
	}
	args = append(args, title, body)

	if err := d.run(ctx, "notify-send", args...); err != nil {
		return fmt.Errorf("notify-send: %w", err)
	}
	return nil
}
