// Command flashmon is the firmware flasher and serial telemetry monitor.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"flashmon/config"
	"flashmon/link"
	"flashmon/session"
	"flashmon/ui"
)

var (
	configPath = flag.String("config", config.DefaultPath, "Config file path")
	device     = flag.String("port", "", "Serial device path (overrides config)")
	baud       = flag.Int("baud", 0, "Baud rate (overrides config)")
	firmware   = flag.String("firmware", "", "Firmware file to flash (overrides config)")
	window     = flag.Int("window", 0, "Plot window size in samples (overrides config)")
	listPorts  = flag.Bool("list-ports", false, "List detected serial ports and exit")
	logPath    = flag.String("log", "flashmon.log", "Debug log file")
	verbose    = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	if *listPorts {
		for _, name := range link.ListPorts() {
			fmt.Println(name)
		}
		return
	}

	setupLogging()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *device != "" {
		cfg.Port = *device
	}
	if *baud > 0 {
		cfg.Baud = *baud
	}
	if *firmware != "" {
		cfg.FirmwarePath = *firmware
	}
	if *window > 0 {
		cfg.MaxPoints = *window
	}

	sess := session.New(cfg)

	program := tea.NewProgram(ui.New(sess, cfg), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sess.Disconnect()

	if err := cfg.Save(*configPath); err != nil {
		log.Warn().Err(err).Msg("failed to save config")
	}
}

// setupLogging routes structured logs to a file; the terminal belongs to
// the TUI.
func setupLogging() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Logger = zerolog.Nop()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: f, NoColor: true})
}
