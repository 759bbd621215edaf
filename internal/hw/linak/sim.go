package linak

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desk-tools/deskgo/internal/hw/ble"
)

// simStepMM is how far the simulated column travels between two height
// reads while a drive command or preset recall is active.
const simStepMM = 5

// simVelocity is the raw velocity reported while the simulated column moves.
const simVelocity = 100

// Sim is an in-memory desk implementing ble.Transport, used for development
// on PC and for testing without hardware. It models directional drive
// commands, autonomous preset recall and preset save.
type Sim struct {
	mu           sync.Mutex
	connected    bool
	heightMM     int
	driveUp      bool
	driveDown    bool
	autoTarget   int // -1 when no recall in progress
	presets      [NumPresets]int
	onDisconnect func()
}

// NewSim returns a simulated desk resting at a typical sitting height with
// plausible preset positions.
func NewSim() *Sim {
	return &Sim{
		heightMM:   720,
		autoTarget: -1,
		presets:    [NumPresets]int{720, 1100, 800, 950},
	}
}

func (s *Sim) Discover(ctx context.Context, nameFragment string, timeout time.Duration) (ble.DeviceInfo, bool, error) {
	if err := ctx.Err(); err != nil {
		return ble.DeviceInfo{}, false, err
	}
	return ble.DeviceInfo{Name: "Desk 4982", Address: "F0:11:22:33:44:55"}, true, nil
}

func (s *Sim) Connect(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

func (s *Sim) Disconnect() error {
	s.mu.Lock()
	s.connected = false
	s.driveUp = false
	s.driveDown = false
	s.autoTarget = -1
	s.mu.Unlock()
	return nil
}

func (s *Sim) SetDisconnectHandler(fn func()) {
	s.mu.Lock()
	s.onDisconnect = fn
	s.mu.Unlock()
}

func (s *Sim) Read(char string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil, fmt.Errorf("not connected")
	}

	if char == CharHeight {
		s.advance()
		v := int16(0)
		if s.driveUp || (s.autoTarget >= 0 && s.autoTarget > s.heightMM) {
			v = simVelocity
		} else if s.driveDown || (s.autoTarget >= 0 && s.autoTarget < s.heightMM) {
			v = -simVelocity
		}
		return EncodeTelemetry(s.heightMM, v), nil
	}

	for slot := 1; slot <= NumPresets; slot++ {
		if c, _ := MemoryChar(slot); c == char {
			// Reading a memory slot triggers autonomous movement.
			s.driveUp = false
			s.driveDown = false
			s.autoTarget = s.presets[slot-1]
			return EncodeTelemetry(s.presets[slot-1], 0), nil
		}
	}
	return nil, fmt.Errorf("unknown characteristic %s", char)
}

func (s *Sim) Write(char string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return fmt.Errorf("not connected")
	}

	if char == CharCommand {
		switch {
		case bytes.Equal(data, CmdUp):
			s.driveUp, s.driveDown = true, false
			s.autoTarget = -1
		case bytes.Equal(data, CmdDown):
			s.driveUp, s.driveDown = false, true
			s.autoTarget = -1
		case bytes.Equal(data, CmdStop):
			s.driveUp, s.driveDown = false, false
			s.autoTarget = -1
		case bytes.Equal(data, CmdWake):
			// no-op
		default:
			return fmt.Errorf("unknown command % X", data)
		}
		return nil
	}

	for slot := 1; slot <= NumPresets; slot++ {
		if c, _ := MemoryChar(slot); c == char {
			// Any write commits the current position to the slot.
			s.presets[slot-1] = s.heightMM
			return nil
		}
	}
	return fmt.Errorf("unknown characteristic %s", char)
}

// Subscribe is unsupported: the simulation only serves the explicit-read
// path, which also exercises the controller's poll fallback.
func (s *Sim) Subscribe(char string, fn ble.NotifyFunc) error {
	return fmt.Errorf("sim transport: notifications not supported")
}

func (s *Sim) Unsubscribe(char string) error {
	return nil
}

// advance moves the column one step per height read. Caller holds s.mu.
func (s *Sim) advance() {
	switch {
	case s.autoTarget >= 0:
		diff := s.autoTarget - s.heightMM
		if diff > simStepMM {
			s.heightMM += simStepMM
		} else if diff < -simStepMM {
			s.heightMM -= simStepMM
		} else {
			s.heightMM = s.autoTarget
			s.autoTarget = -1
		}
	case s.driveUp:
		s.heightMM = ClampHeight(s.heightMM + simStepMM)
	case s.driveDown:
		s.heightMM = ClampHeight(s.heightMM - simStepMM)
	}
}
