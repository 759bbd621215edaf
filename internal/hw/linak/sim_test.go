package linak

import (
	"context"
	"testing"
	"time"
)

func connectedSim(t *testing.T) *Sim {
	t.Helper()
	s := NewSim()
	ctx := context.Background()
	if _, found, err := s.Discover(ctx, "desk", time.Second); err != nil || !found {
		t.Fatalf("Discover: found=%v err=%v", found, err)
	}
	if err := s.Connect(ctx, time.Second); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return s
}

func readHeight(t *testing.T, s *Sim) int {
	t.Helper()
	data, err := s.Read(CharHeight)
	if err != nil {
		t.Fatalf("Read height: %v", err)
	}
	h, _ := DecodeTelemetry(data)
	return h
}

func TestSim_ReadWhenDisconnected(t *testing.T) {
	s := NewSim()
	if _, err := s.Read(CharHeight); err == nil {
		t.Error("expected error reading while disconnected")
	}
	if err := s.Write(CharCommand, CmdUp); err == nil {
		t.Error("expected error writing while disconnected")
	}
}

func TestSim_DriveUpAndStop(t *testing.T) {
	s := connectedSim(t)
	start := readHeight(t, s)

	if err := s.Write(CharCommand, CmdUp); err != nil {
		t.Fatalf("Write up: %v", err)
	}
	h1 := readHeight(t, s)
	h2 := readHeight(t, s)
	if h2 <= h1 || h1 <= start {
		t.Errorf("drive up did not raise height: %d, %d, %d", start, h1, h2)
	}

	if err := s.Write(CharCommand, CmdStop); err != nil {
		t.Fatalf("Write stop: %v", err)
	}
	h3 := readHeight(t, s)
	h4 := readHeight(t, s)
	if h3 != h2 || h4 != h2 {
		t.Errorf("height changed after stop: %d then %d, %d", h2, h3, h4)
	}
}

func TestSim_DriveClampsAtRange(t *testing.T) {
	s := connectedSim(t)
	if err := s.Write(CharCommand, CmdDown); err != nil {
		t.Fatalf("Write down: %v", err)
	}
	var h int
	for i := 0; i < 1000; i++ {
		h = readHeight(t, s)
	}
	if h != MinHeightMM {
		t.Errorf("height after long drive down = %d, want %d", h, MinHeightMM)
	}
}

func TestSim_PresetSaveRecall(t *testing.T) {
	s := connectedSim(t)

	// Drive somewhere, then save slot 2 there.
	if err := s.Write(CharCommand, CmdUp); err != nil {
		t.Fatalf("Write up: %v", err)
	}
	for i := 0; i < 10; i++ {
		readHeight(t, s)
	}
	if err := s.Write(CharCommand, CmdStop); err != nil {
		t.Fatalf("Write stop: %v", err)
	}
	saved := readHeight(t, s)

	char2, _ := MemoryChar(2)
	if err := s.Write(char2, []byte{0x00}); err != nil {
		t.Fatalf("Write preset: %v", err)
	}

	// Drive away, then recall.
	if err := s.Write(CharCommand, CmdDown); err != nil {
		t.Fatalf("Write down: %v", err)
	}
	for i := 0; i < 5; i++ {
		readHeight(t, s)
	}
	if err := s.Write(CharCommand, CmdStop); err != nil {
		t.Fatalf("Write stop: %v", err)
	}

	if _, err := s.Read(char2); err != nil {
		t.Fatalf("Read preset trigger: %v", err)
	}
	var h int
	for i := 0; i < 100; i++ {
		h = readHeight(t, s)
	}
	if h != saved {
		t.Errorf("recall settled at %d, want saved height %d", h, saved)
	}
}

func TestSim_WakeIsNoop(t *testing.T) {
	s := connectedSim(t)
	before := readHeight(t, s)
	if err := s.Write(CharCommand, CmdWake); err != nil {
		t.Fatalf("Write wake: %v", err)
	}
	if h := readHeight(t, s); h != before {
		t.Errorf("wake moved the column: %d -> %d", before, h)
	}
}

func TestSim_UnknownCharacteristic(t *testing.T) {
	s := connectedSim(t)
	if _, err := s.Read("00000000-0000-0000-0000-000000000000"); err == nil {
		t.Error("expected error for unknown characteristic read")
	}
	if err := s.Write("00000000-0000-0000-0000-000000000000", []byte{1}); err == nil {
		t.Error("expected error for unknown characteristic write")
	}
}

func TestSim_SubscribeUnsupported(t *testing.T) {
	s := connectedSim(t)
	if err := s.Subscribe(CharHeight, func([]byte) {}); err == nil {
		t.Error("expected Subscribe to report unsupported")
	}
}
