// Package session owns the connection lifecycle for one desk: discovery by
// advertised name, connection retries, the wake-up handshake, telemetry
// subscription with poll fallback, and disconnect bookkeeping.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/desk-tools/deskgo/internal/debug"
	"github.com/desk-tools/deskgo/internal/hw/ble"
	"github.com/desk-tools/deskgo/internal/hw/linak"
	"github.com/desk-tools/deskgo/internal/logic/telemetry"
)

// Error taxonomy. Callers match with errors.Is.
var (
	// ErrNotFound: discovery completed without a matching advertised name.
	ErrNotFound = errors.New("desk not found")
	// ErrConnectionFailed: all connection attempts exhausted.
	ErrConnectionFailed = errors.New("desk connection failed")
	// ErrCommunication: a characteristic read/write failed mid-session.
	ErrCommunication = errors.New("desk communication error")
)

// Config carries the connection parameters.
type Config struct {
	Name           string        // advertised name fragment, case-insensitive
	ScanTimeout    time.Duration // bounded discovery window
	ConnectTimeout time.Duration // per-attempt link timeout
	Retries        int           // attempts = Retries + 1
	RetryDelay     time.Duration // fixed delay between attempts
}

// Session is one live link to one desk. It is created disconnected; Connect
// brings it up and Disconnect (idempotent, never fails) tears it down.
type Session struct {
	tr  ble.Transport
	cfg Config

	mu            sync.Mutex
	connected     bool
	disconnecting bool
	device        ble.DeviceInfo

	latest telemetry.Holder
}

// New returns a session driving the desk through the given transport.
func New(tr ble.Transport, cfg Config) *Session {
	s := &Session{tr: tr, cfg: cfg}
	tr.SetDisconnectHandler(s.onDisconnect)
	return s
}

// Connect finds the desk and establishes a link. It fails with ErrNotFound
// when no advertised name matches, and with ErrConnectionFailed once all
// attempts are exhausted. On success the desk has been woken, telemetry
// notifications are active when the device supports them (explicit polling
// otherwise), and the latest sample is seeded with a fresh read.
func (s *Session) Connect(ctx context.Context) error {
	debug.Info("Searching for %q (%v scan)", s.cfg.Name, s.cfg.ScanTimeout)

	dev, found, err := s.tr.Discover(ctx, s.cfg.Name, s.cfg.ScanTimeout)
	if err != nil {
		return fmt.Errorf("%w: scan: %v", ErrConnectionFailed, err)
	}
	if !found {
		return fmt.Errorf("%w: no device matching %q (is it powered on?)", ErrNotFound, s.cfg.Name)
	}
	debug.Info("Found %s (%s)", dev.Name, dev.Address)

	// Retry loop with a deferred failure reason: each failed attempt
	// overwrites lastErr, raised only once every attempt is spent.
	var lastErr error
	for attempt := 0; attempt <= s.cfg.Retries; attempt++ {
		if attempt > 0 {
			debug.Verbose("Retrying connection (attempt %d)", attempt+1)
			if err := telemetry.Wait(ctx, s.cfg.RetryDelay); err != nil {
				return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
			}
		}

		err := s.tr.Connect(ctx, s.cfg.ConnectTimeout)
		if err != nil {
			lastErr = err
			continue
		}

		s.mu.Lock()
		s.connected = true
		s.disconnecting = false
		s.device = dev
		s.mu.Unlock()
		debug.Info("Connected to %s", dev.Name)

		// Wake the controller so it accepts commands.
		s.TryCommand(linak.CmdWake)

		// Subscription failure is non-fatal: the explicit-read path keeps
		// the latest sample fresh on its own.
		if err := s.tr.Subscribe(linak.CharHeight, s.onTelemetry); err != nil {
			debug.Verbose("Telemetry subscription unavailable, polling instead: %v", err)
		}

		// Seed state so Latest is meaningful immediately after Connect.
		// A failed seed read means the session is unusable; tear the link
		// down rather than hand back a live transport with a dead session.
		if _, err := s.ReadHeight(); err != nil {
			s.Disconnect()
			return err
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("no attempts made")
	}
	return fmt.Errorf("%w: %v", ErrConnectionFailed, lastErr)
}

// Disconnect tears down the link. Idempotent and never fails: it runs from
// error-recovery and cancellation paths.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.disconnecting = true
	wasConnected := s.connected
	s.mu.Unlock()

	if wasConnected {
		_ = s.tr.Unsubscribe(linak.CharHeight)
	}
	if err := s.tr.Disconnect(); err != nil {
		debug.Verbose("disconnect: %v", err)
	}

	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	debug.Info("Disconnected")
}

// Connected reports whether the link is live.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Device returns the discovered device identity.
func (s *Session) Device() ble.DeviceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// Latest returns the most recent telemetry sample from either the
// notification path or an explicit read.
func (s *Session) Latest() telemetry.Sample {
	return s.latest.Latest()
}

// ReadHeight performs an explicit telemetry read, refreshes the latest
// sample and returns the height in millimeters.
func (s *Session) ReadHeight() (int, error) {
	if !s.Connected() {
		return 0, fmt.Errorf("%w: not connected", ErrCommunication)
	}
	data, err := s.tr.Read(linak.CharHeight)
	if err != nil {
		return 0, fmt.Errorf("%w: read height: %v", ErrCommunication, err)
	}
	h, v := linak.DecodeTelemetry(data)
	s.latest.Update(telemetry.Sample{HeightMM: h, Velocity: v})
	return h, nil
}

// Read reads an arbitrary characteristic on the live session.
func (s *Session) Read(char string) ([]byte, error) {
	if !s.Connected() {
		return nil, fmt.Errorf("%w: not connected", ErrCommunication)
	}
	data, err := s.tr.Read(char)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrCommunication, char, err)
	}
	return data, nil
}

// Write writes an arbitrary characteristic on the live session.
func (s *Session) Write(char string, data []byte) error {
	if !s.Connected() {
		return fmt.Errorf("%w: not connected", ErrCommunication)
	}
	if err := s.tr.Write(char, data); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrCommunication, char, err)
	}
	return nil
}

// WriteCommand sends a command opcode to the control characteristic.
func (s *Session) WriteCommand(cmd []byte) error {
	return s.Write(linak.CharCommand, cmd)
}

// TryCommand sends a command opcode, reporting success instead of failing.
// Used on paths that must never raise (stop, wake, teardown).
func (s *Session) TryCommand(cmd []byte) bool {
	if !s.Connected() {
		return false
	}
	if err := s.tr.Write(linak.CharCommand, cmd); err != nil {
		debug.Verbose("command write failed: %v", err)
		return false
	}
	return true
}

// onTelemetry is the notification callback. It races with explicit reads;
// the holder keeps the pair update atomic.
func (s *Session) onTelemetry(data []byte) {
	h, v := linak.DecodeTelemetry(data)
	s.latest.Update(telemetry.Sample{HeightMM: h, Velocity: v})
}

// onDisconnect handles a transport-level disconnect notification. Expected
// teardowns are quiet; anything else is logged and surfaces as
// ErrCommunication on the next operation.
func (s *Session) onDisconnect() {
	s.mu.Lock()
	was := s.connected
	s.connected = false
	intentional := s.disconnecting
	s.mu.Unlock()

	if was && !intentional {
		debug.Info("Disconnected unexpectedly")
	}
}
