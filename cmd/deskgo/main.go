package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/desk-tools/deskgo/internal/config"
	"github.com/desk-tools/deskgo/internal/debug"
	"github.com/desk-tools/deskgo/internal/hw/ble"
	"github.com/desk-tools/deskgo/internal/hw/linak"
	"github.com/desk-tools/deskgo/internal/logic/motion"
	"github.com/desk-tools/deskgo/internal/logic/preset"
	"github.com/desk-tools/deskgo/internal/logic/session"
)

const usage = `Usage: deskgo [flags] <command>

Commands:
  scan             list nearby BLE devices, desks first
  height           print the current desk height
  up <inches>      raise the desk by a distance in inches
  down <inches>    lower the desk by a distance in inches
  goto <target>    move to an absolute height ("730" for mm, "28.5in" for inches)
  preset <slot>    recall a stored position (slot 1-4)
  save <slot>      store the current position in a slot (1-4)
  stop             stop any movement in progress

Exit codes: 0 ok, 1 error, 2 movement obstructed.
`

func main() {
	// CLI flags
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	name := flag.String("name", "", "override advertised desk name fragment")
	sim := flag.Bool("sim", false, "use the simulated desk instead of the BLE adapter")
	debugLevel := flag.Int("debug", -1, "override debug level (0-4)")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	applyOverrides(cfg, *name, *sim, *debugLevel)

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Simulated desk", cfg.Defaults.SimBLE)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(ctx, cfg, args))
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, cfg *config.Config, args []string) int {
	command, rest := args[0], args[1:]

	// Scan needs no session, just the adapter.
	if command == "scan" {
		if err := runScan(ctx, cfg); err != nil {
			log.Printf("scan failed: %v", err)
			return 1
		}
		return 0
	}

	tr, err := newTransport(cfg)
	if err != nil {
		log.Printf("init BLE failed: %v", err)
		return 1
	}

	sess := session.New(tr, session.Config{
		Name:           cfg.Desk.Name,
		ScanTimeout:    cfg.ScanTimeout(),
		ConnectTimeout: cfg.ConnectTimeout(),
		Retries:        cfg.Desk.ConnectRetries,
		RetryDelay:     cfg.RetryDelay(),
	})
	if err := sess.Connect(ctx); err != nil {
		log.Printf("%v", err)
		return 1
	}
	defer sess.Disconnect()

	ctrl := motion.NewController(sess, motion.Tuning{
		ToleranceMM:        cfg.Movement.ToleranceMm,
		StopDistanceUpMM:   cfg.Movement.StopDistanceUpMm,
		StopDistanceDownMM: cfg.Movement.StopDistanceDownMm,
		StallSamples:       cfg.Movement.StallSamples,
		PollInterval:       cfg.MovePollInterval(),
		SettleDelay:        cfg.SettleDelay(),
	})
	presets := preset.NewCoordinator(sess, preset.Tuning{
		TriggerDelay:  cfg.PresetTriggerDelay(),
		PollInterval:  cfg.PresetPollInterval(),
		SettleSamples: cfg.Preset.SettleSamples,
	})

	// Interrupt during a command resolves to stop + disconnect: the stop
	// runs on the movement's own exit path, the disconnect via defer.
	switch command {
	case "height":
		h, err := sess.ReadHeight()
		if err != nil {
			log.Printf("%v", err)
			return 1
		}
		v := sess.Latest().Velocity
		fmt.Println(formatHeight(h, v))
		return 0

	case "up", "down":
		if len(rest) != 1 {
			log.Printf("%s needs a distance in inches", command)
			return 1
		}
		inches, err := strconv.ParseFloat(rest[0], 64)
		if err != nil || inches <= 0 {
			log.Printf("invalid distance %q", rest[0])
			return 1
		}
		if command == "down" {
			inches = -inches
		}
		return report(ctrl.MoveBy(ctx, inches))

	case "goto":
		if len(rest) != 1 {
			log.Print("goto needs a target height")
			return 1
		}
		target, err := parseTarget(rest[0])
		if err != nil {
			log.Printf("%v", err)
			return 1
		}
		return report(ctrl.MoveTo(ctx, target))

	case "preset":
		slot, err := parseSlot(rest)
		if err != nil {
			log.Printf("%v", err)
			return 1
		}
		h, err := presets.Recall(ctx, slot)
		if err != nil {
			log.Printf("%v", err)
			return 1
		}
		fmt.Println(formatHeight(h, 0))
		return 0

	case "save":
		slot, err := parseSlot(rest)
		if err != nil {
			log.Printf("%v", err)
			return 1
		}
		h, err := presets.Save(slot)
		if err != nil {
			log.Printf("%v", err)
			return 1
		}
		fmt.Printf("Saved slot %d at %s\n", slot, formatHeight(h, 0))
		return 0

	case "stop":
		ctrl.Stop()
		return 0

	default:
		log.Printf("unknown command %q", command)
		flag.Usage()
		return 1
	}
}

// runScan lists nearby devices, desks first.
func runScan(ctx context.Context, cfg *config.Config) error {
	devices, err := ble.Scan(ctx, cfg.ScanTimeout(), linak.ServiceControl)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No devices found.")
		return nil
	}
	for _, d := range devices {
		marker := " "
		if d.IsDesk() {
			marker = "*"
		}
		name := d.Name
		if name == "" {
			name = "(no name)"
		}
		fmt.Printf("%s %-24s %s  RSSI %d\n", marker, name, d.Address, d.RSSI)
	}
	fmt.Println("\n* looks like a desk")
	return nil
}

// report prints a movement result and maps it to an exit code:
// 0 done, 1 failed, 2 obstructed.
func report(res motion.Result, err error) int {
	if err != nil {
		log.Printf("%v", err)
		return 1
	}
	fmt.Println(formatHeight(res.FinalHeightMM, 0))
	if res.Collision {
		fmt.Println("Movement obstructed.")
		return 2
	}
	return 0
}

// newTransport selects the desk transport based on configuration.
func newTransport(cfg *config.Config) (ble.Transport, error) {
	if cfg.Defaults.SimBLE {
		return linak.NewSim(), nil
	}
	return ble.NewAdapter()
}

// applyOverrides mutates cfg with CLI overrides. Zero values (empty name,
// false sim, negative debug level) mean "use config default".
func applyOverrides(cfg *config.Config, name string, sim bool, debugLevel int) {
	if name != "" {
		cfg.Desk.Name = name
	}
	if sim {
		cfg.Defaults.SimBLE = true
	}
	if debugLevel >= 0 {
		cfg.Defaults.DebugLevel = debugLevel
	}
}

// parseTarget parses an absolute height: plain integers are millimeters,
// a trailing "in" means inches ("28.5in").
func parseTarget(s string) (int, error) {
	if rest, ok := strings.CutSuffix(s, "in"); ok {
		inches, err := strconv.ParseFloat(rest, 64)
		if err != nil || inches <= 0 {
			return 0, fmt.Errorf("invalid height %q", s)
		}
		return linak.InchesToMM(inches), nil
	}
	mm, err := strconv.Atoi(s)
	if err != nil || mm <= 0 {
		return 0, fmt.Errorf("invalid height %q (want mm, or inches like \"28.5in\")", s)
	}
	return mm, nil
}

// parseSlot parses a preset slot argument.
func parseSlot(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("need a slot number (1-%d)", linak.NumPresets)
	}
	slot, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid slot %q", args[0])
	}
	return slot, nil
}

// formatHeight renders a height in both units, with velocity when moving.
func formatHeight(mm int, velocity int16) string {
	s := fmt.Sprintf("%dmm (%.1fin)", mm, linak.MMToInches(mm))
	if velocity != 0 {
		s += fmt.Sprintf(", moving at %d", velocity)
	}
	return s
}
