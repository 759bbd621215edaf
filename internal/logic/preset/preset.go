// Package preset drives the memory-position slots. Recall is triggered by
// reading a slot characteristic and watched until the column settles; save
// commits the current height by writing the slot characteristic.
package preset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desk-tools/deskgo/internal/debug"
	"github.com/desk-tools/deskgo/internal/hw/linak"
	"github.com/desk-tools/deskgo/internal/logic/session"
	"github.com/desk-tools/deskgo/internal/logic/telemetry"
)

// ErrInvalidSlot: the slot number is outside 1..4. Raised before any
// transport traffic.
var ErrInvalidSlot = errors.New("invalid preset slot")

// Tuning carries the recall-settlement parameters.
type Tuning struct {
	TriggerDelay  time.Duration // grace after the trigger before watching
	PollInterval  time.Duration // settlement sampling cadence
	SettleSamples int           // consecutive unchanged samples meaning arrived
}

// Coordinator recalls and saves preset positions on one session.
type Coordinator struct {
	sess *session.Session
	tun  Tuning
}

// NewCoordinator returns a preset coordinator over a session.
func NewCoordinator(sess *session.Session, tun Tuning) *Coordinator {
	return &Coordinator{sess: sess, tun: tun}
}

// Recall triggers movement to the stored position of slot (1..4) and blocks
// until the column settles, returning the final height in millimeters. The
// desk firmware runs the movement itself; this side only watches telemetry
// for the height to hold still. Error and cancellation exits issue a
// best-effort stop so the column is not left chasing the preset.
func (c *Coordinator) Recall(ctx context.Context, slot int) (int, error) {
	char, ok := linak.MemoryChar(slot)
	if !ok {
		return 0, fmt.Errorf("%w: %d (want 1-%d)", ErrInvalidSlot, slot, linak.NumPresets)
	}
	debug.Info("Recalling preset %d", slot)

	// Reading the memory characteristic is the trigger.
	if _, err := c.sess.Read(char); err != nil {
		return 0, err
	}

	// Let the controller spin up before sampling, otherwise the first
	// reads see a stationary column and settle immediately.
	if err := telemetry.Wait(ctx, c.tun.TriggerDelay); err != nil {
		c.sess.TryCommand(linak.CmdStop)
		return 0, err
	}

	settle := telemetry.NewStableCounter(c.tun.SettleSamples)
	for {
		h, err := c.sess.ReadHeight()
		if err != nil {
			c.sess.TryCommand(linak.CmdStop)
			return 0, err
		}
		if settle.Observe(h) {
			debug.Info("Preset %d reached: %dmm", slot, h)
			return h, nil
		}
		if err := telemetry.Wait(ctx, c.tun.PollInterval); err != nil {
			c.sess.TryCommand(linak.CmdStop)
			return h, err
		}
	}
}

// Save commits the current height to slot (1..4) and returns the height that
// was stored.
func (c *Coordinator) Save(slot int) (int, error) {
	char, ok := linak.MemoryChar(slot)
	if !ok {
		return 0, fmt.Errorf("%w: %d (want 1-%d)", ErrInvalidSlot, slot, linak.NumPresets)
	}

	h, err := c.sess.ReadHeight()
	if err != nil {
		return 0, err
	}
	if err := c.sess.Write(char, []byte{0x00}); err != nil {
		return 0, err
	}
	debug.Info("Saved preset %d at %dmm", slot, h)
	return h, nil
}
