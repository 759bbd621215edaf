package main

import (
	"testing"

	"github.com/desk-tools/deskgo/internal/config"
)

// ---------- parseTarget ----------

func TestParseTarget_Millimeters(t *testing.T) {
	cases := []struct {
		input string
		want  int
	}{
		{"730", 730},
		{"620", 620},
		{"1270", 1270},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := parseTarget(tc.input)
			if err != nil {
				t.Fatalf("parseTarget(%q) error: %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("parseTarget(%q) = %d, want %d", tc.input, got, tc.want)
			}
		})
	}
}

func TestParseTarget_Inches(t *testing.T) {
	// 28.5in = 723.9mm, truncated to 723.
	got, err := parseTarget("28.5in")
	if err != nil {
		t.Fatalf("parseTarget error: %v", err)
	}
	if got != 723 {
		t.Errorf("parseTarget(\"28.5in\") = %d, want 723", got)
	}
}

func TestParseTarget_Invalid(t *testing.T) {
	cases := []string{"", "abc", "-100", "0", "in", "-2in", "28.5cm"}
	for _, input := range cases {
		if _, err := parseTarget(input); err == nil {
			t.Errorf("parseTarget(%q) should fail, got nil", input)
		}
	}
}

// ---------- parseSlot ----------

func TestParseSlot_Valid(t *testing.T) {
	slot, err := parseSlot([]string{"3"})
	if err != nil {
		t.Fatalf("parseSlot error: %v", err)
	}
	if slot != 3 {
		t.Errorf("parseSlot = %d, want 3", slot)
	}
}

func TestParseSlot_Invalid(t *testing.T) {
	cases := [][]string{
		{},
		{"1", "2"},
		{"abc"},
	}
	for _, args := range cases {
		if _, err := parseSlot(args); err == nil {
			t.Errorf("parseSlot(%v) should fail, got nil", args)
		}
	}
}

func TestParseSlot_RangeCheckedLater(t *testing.T) {
	// Out-of-range slots parse fine here; the coordinator validates them.
	if _, err := parseSlot([]string{"9"}); err != nil {
		t.Errorf("parseSlot(9) should parse, got: %v", err)
	}
}

// ---------- formatHeight ----------

func TestFormatHeight_Stationary(t *testing.T) {
	got := formatHeight(730, 0)
	want := "730mm (28.7in)"
	if got != want {
		t.Errorf("formatHeight = %q, want %q", got, want)
	}
}

func TestFormatHeight_Moving(t *testing.T) {
	got := formatHeight(900, -150)
	want := "900mm (35.4in), moving at -150"
	if got != want {
		t.Errorf("formatHeight = %q, want %q", got, want)
	}
}

// ---------- applyOverrides ----------

func newTestConfig() *config.Config {
	return &config.Config{
		Desk: config.DeskConfig{
			Name:              "Desk",
			ScanTimeoutSec:    10,
			ConnectTimeoutSec: 10,
			ConnectRetries:    2,
			RetryDelayMs:      1000,
		},
		Defaults: config.DefaultsConfig{DebugLevel: 1, SimBLE: false},
	}
}

func TestApplyOverrides_NonZero(t *testing.T) {
	cfg := newTestConfig()
	applyOverrides(cfg, "Idasen", true, 4)
	if cfg.Desk.Name != "Idasen" {
		t.Errorf("Name = %q, want %q", cfg.Desk.Name, "Idasen")
	}
	if !cfg.Defaults.SimBLE {
		t.Error("SimBLE not applied")
	}
	if cfg.Defaults.DebugLevel != 4 {
		t.Errorf("DebugLevel = %d, want 4", cfg.Defaults.DebugLevel)
	}
}

func TestApplyOverrides_ZeroLeavesUnchanged(t *testing.T) {
	cfg := newTestConfig()
	applyOverrides(cfg, "", false, -1)
	if cfg.Desk.Name != "Desk" {
		t.Errorf("Name changed: %q", cfg.Desk.Name)
	}
	if cfg.Defaults.SimBLE {
		t.Error("SimBLE changed")
	}
	if cfg.Defaults.DebugLevel != 1 {
		t.Errorf("DebugLevel changed: %d", cfg.Defaults.DebugLevel)
	}
}

func TestApplyOverrides_DebugZeroIsValidOverride(t *testing.T) {
	cfg := newTestConfig()
	applyOverrides(cfg, "", false, 0)
	if cfg.Defaults.DebugLevel != 0 {
		t.Errorf("DebugLevel = %d, want 0 (explicit silence)", cfg.Defaults.DebugLevel)
	}
}
