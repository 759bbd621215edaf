// Package motion implements the closed-loop movement controller: it drives
// the column toward a target height while sampling telemetry, releases the
// drive command shortly before the target to absorb momentum, and infers
// collisions from stalled height readings.
package motion

import (
	"context"
	"fmt"
	"time"

	"github.com/desk-tools/deskgo/internal/debug"
	"github.com/desk-tools/deskgo/internal/hw/linak"
	"github.com/desk-tools/deskgo/internal/logic/session"
	"github.com/desk-tools/deskgo/internal/logic/telemetry"
)

// Tuning carries the empirically tuned movement constants. The stopping
// distances and the stall window are calibrated per hardware model, so they
// live in configuration rather than as constants here.
type Tuning struct {
	ToleranceMM        int           // acceptable final error
	StopDistanceUpMM   int           // release drive this far from target, moving up
	StopDistanceDownMM int           // same moving down; smaller since gravity assists braking
	StallSamples       int           // consecutive unchanged samples meaning collision
	PollInterval       time.Duration // closed-loop sampling cadence
	SettleDelay        time.Duration // pause after stop before the final read
}

// Result reports where a movement ended and whether it was obstructed.
// A collision is an expected operating condition, not an error.
type Result struct {
	FinalHeightMM int
	Collision     bool
}

// Controller drives one desk through one movement at a time.
type Controller struct {
	sess *session.Session
	tun  Tuning
}

// NewController returns a movement controller over a session.
func NewController(sess *session.Session, tun Tuning) *Controller {
	return &Controller{sess: sess, tun: tun}
}

// MoveTo moves the column to targetMM, clamped to the physical range.
// Every exit path, including errors and cancellation, issues exactly one
// stop command so the column is never left drifting.
func (c *Controller) MoveTo(ctx context.Context, targetMM int) (Result, error) {
	target := linak.ClampHeight(targetMM)

	stopped := false
	stop := func() {
		if !stopped {
			stopped = true
			c.sess.TryCommand(linak.CmdStop)
		}
	}
	defer stop()

	current, err := c.sess.ReadHeight()
	if err != nil {
		return Result{}, err
	}

	if abs(target-current) <= c.tun.ToleranceMM {
		debug.Verbose("Already at %dmm (target %dmm)", current, target)
		return Result{FinalHeightMM: current}, nil
	}

	up := target > current
	cmd := linak.CmdDown
	stopDistance := c.tun.StopDistanceDownMM
	direction := "down"
	if up {
		cmd = linak.CmdUp
		stopDistance = c.tun.StopDistanceUpMM
		direction = "up"
	}
	debug.Move(current, target, direction)

	stall := telemetry.NewStableCounter(c.tun.StallSamples)
	stall.Reset(current)
	collision := false

	for c.sess.Connected() {
		current, err = c.sess.ReadHeight()
		if err != nil {
			return Result{}, err
		}

		debug.Height(current, c.sess.Latest().Velocity)

		remaining := target - current
		if !up {
			remaining = current - target
		}
		if remaining <= stopDistance {
			break
		}

		// No height change while driving means the column is blocked; the
		// hardware gives no explicit obstruction signal.
		if stall.Observe(current) {
			collision = true
			debug.Info("Collision detected at %dmm (blocked)", current)
			break
		}

		if err := c.sess.WriteCommand(cmd); err != nil {
			return Result{}, fmt.Errorf("lost connection during movement: %w", err)
		}

		if err := telemetry.Wait(ctx, c.tun.PollInterval); err != nil {
			return Result{FinalHeightMM: current, Collision: collision}, err
		}
	}

	// Stop and let the mechanics settle before trusting the final reading.
	stop()
	if err := telemetry.Wait(ctx, c.tun.SettleDelay); err != nil {
		return Result{FinalHeightMM: current, Collision: collision}, err
	}

	final, err := c.sess.ReadHeight()
	if err != nil {
		return Result{Collision: collision}, err
	}
	debug.Info("Movement done: %dmm (error %dmm, collision=%v)", final, abs(final-target), collision)
	return Result{FinalHeightMM: final, Collision: collision}, nil
}

// MoveBy moves the column by a signed distance in inches (positive = up).
func (c *Controller) MoveBy(ctx context.Context, inches float64) (Result, error) {
	current, err := c.sess.ReadHeight()
	if err != nil {
		return Result{}, err
	}
	delta := linak.InchesToMM(inches)
	return c.MoveTo(ctx, current+delta)
}

// Stop unconditionally issues the stop command. Best-effort: it never fails
// the caller, since it runs from interrupt and error paths.
func (c *Controller) Stop() {
	c.sess.TryCommand(linak.CmdStop)
	debug.Info("Stopped")
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
