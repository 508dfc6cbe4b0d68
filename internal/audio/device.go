package audio

import (
	"context"
	"fmt"
	"strconv"
)

// Device drives the default output sink through pactl and the backlight
// through brightnessctl.
type Device struct {
	run commandRunner
}

func NewDevice() *Device {
	return &Device{run: execRunner}
}

func (d *Device) SetVolume(ctx context.Context, percent int) error {
	arg := fmt.Sprintf("%d%%", clampPercent(percent, 100))
	if _, err := d.run(ctx, "pactl", "set-sink-volume", "@DEFAULT_SINK@", arg); err != nil {
		return fmt.Errorf("pactl set-sink-volume: %w", err)
	}

	mute := "0"
	if percent <= 0 {
		mute = "1"
	}
	if _, err := d.run(ctx, "pactl", "set-sink-mute", "@DEFAULT_SINK@", mute); err != nil {
		return fmt.Errorf("pactl set-sink-mute: %w", err)
	}
	return nil
}

func (d *Device) SetBrightness(ctx context.Context, percent int) error {
	// 0% turns some panels off entirely.
	percent = max(clampPercent(percent, 100), 1)
	if _, err := d.run(ctx, "brightnessctl", "set", strconv.Itoa(percent)+"%"); err != nil {
		return fmt.Errorf("brightnessctl: %w", err)
	}
	return nil
}
