package notifier

import (
	"sync/atomic"

	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"
)

// Notifier delivers user-facing alerts. Implementations swallow platform
// failures such as denied permissions; errors are informational only.
type Notifier interface {
	Notify(title, message string) error
	Sound(name string) error
}

// tone maps alert sound names to beep frequencies in Hz.
var tone = map[string]float64{
	"success":      880,
	"notification": 660,
	"warning":      520,
	"error":        330,
}

type Desktop struct {
	enabled atomic.Bool
	log     zerolog.Logger
}

func New(log zerolog.Logger) *Desktop {
	beeep.AppName = "craftwatch"
	d := &Desktop{log: log.With().Str("component", "notifier").Logger()}
	d.enabled.Store(true)
	return d
}

func (d *Desktop) Notify(title, message string) error {
	if !d.enabled.Load() {
		return nil
	}

	if err := beeep.Notify(title, message, ""); err != nil {
		d.log.Warn().Err(err).Str("title", title).Msg("failed to send notification")
		return err
	}
	return nil
}

func (d *Desktop) Sound(name string) error {
	if !d.enabled.Load() {
		return nil
	}

	freq, ok := tone[name]
	if !ok {
		freq = beeep.DefaultFreq
	}
	if err := beeep.Beep(freq, beeep.DefaultDuration); err != nil {
		d.log.Debug().Err(err).Str("sound", name).Msg("failed to play sound")
		return err
	}
	return nil
}

func (d *Desktop) SetEnabled(enabled bool) {
	d.enabled.Store(enabled)
}

// Nop discards every alert.
type Nop struct{}

func (Nop) Notify(string, string) error { return nil }
func (Nop) Sound(string) error { return nil }
