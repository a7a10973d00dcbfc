// Command accelctl is a bring-up and diagnostic tool for accelerator
// devices. It drives the lifecycle core with no-op subsystems; production
// deployments embed the accel library and bind their real subsystem hooks.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/charmbracelet/x/ansi"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	accel "github.com/tinyrange/accel"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "accelctl: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Device description YAML (required)")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -config <device.yaml> <command> [args...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  status          Print power state and reset status\n")
		fmt.Fprintf(os.Stderr, "  suspend         Suspend the device\n")
		fmt.Fprintf(os.Stderr, "  resume          Suspend and resume the device (probe leaves it active)\n")
		fmt.Fprintf(os.Stderr, "  reset           Schedule crash recovery and wait for it\n")
		fmt.Fprintf(os.Stderr, "  unplug          Permanently tear the device down\n")
		fmt.Fprintf(os.Stderr, "  flash <image>   Install a firmware image into the configured path\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *verbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(
			os.Stderr,
			&slog.HandlerOptions{Level: slog.LevelDebug},
		)))
	}

	args := flag.Args()
	if *configPath == "" || len(args) < 1 {
		flag.Usage()
		return fmt.Errorf("config and command required")
	}

	cfg, err := accel.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	// flash only touches the filesystem; no device bring-up needed.
	if args[0] == "flash" {
		if len(args) != 2 {
			return fmt.Errorf("flash requires an image path")
		}
		return flashFirmware(cfg, args[1])
	}

	dev, err := accel.New(cfg, accel.Subsystems{}, accel.WithSynchronousReset())
	if err != nil {
		return err
	}
	defer dev.Close()

	switch args[0] {
	case "status":
		printStatus(dev)
		return nil
	case "suspend":
		return dev.Suspend()
	case "resume":
		// Probe leaves the device active; exercise a full cycle so the
		// command is useful for bring-up.
		if err := dev.Suspend(); err != nil {
			return err
		}
		return dev.Resume()
	case "reset":
		dev.ScheduleReset()
		printStatus(dev)
		return nil
	case "unplug":
		dev.Unplug()
		return nil
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printStatus(dev accel.Device) {
	state := dev.State().String()
	if term.IsTerminal(int(os.Stdout.Fd())) {
		style := ansi.Style{}.Bold()
		switch dev.State() {
		case accel.Active:
			style = style.ForegroundColor(ansi.Green)
		case accel.Suspended:
			style = style.ForegroundColor(ansi.Yellow)
		default:
			style = style.ForegroundColor(ansi.Red)
		}
		state = style.Styled(state)
	}
	fmt.Printf("%s: %s", dev.Name(), state)
	if dev.IsResetPending() {
		fmt.Printf(" (reset pending)")
	}
	fmt.Println()
}

// flashFirmware copies the image into the firmware path the device
// description points at.
func flashFirmware(cfg *accel.Config, imagePath string) error {
	if cfg.Firmware == "" {
		return fmt.Errorf("device %q has no firmware path configured", cfg.Name)
	}

	src, err := os.Open(imagePath)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Firmware), 0o755); err != nil {
		return fmt.Errorf("create firmware dir: %w", err)
	}
	dst, err := os.Create(cfg.Firmware)
	if err != nil {
		return fmt.Errorf("create firmware image: %w", err)
	}
	defer dst.Close()

	bar := progressbar.DefaultBytes(info.Size(), fmt.Sprintf("flash %s", cfg.Name))
	defer bar.Close()

	if _, err := io.Copy(io.MultiWriter(dst, bar), src); err != nil {
		return fmt.Errorf("write firmware image: %w", err)
	}
	return nil
}
