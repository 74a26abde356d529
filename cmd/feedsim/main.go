// Command feedsim emits synthetic telemetry frames over a serial port (or
// stdout with -device -) for exercising the monitor without real hardware.
package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"time"

	"flashmon/link"
	"flashmon/telemetry"
)

var (
	device   = flag.String("device", "-", "Serial device path, or - for stdout")
	baud     = flag.Int("baud", 115200, "Baud rate")
	interval = flag.Duration("interval", 100*time.Millisecond, "Frame interval")
	channels = flag.Int("channels", 5, "Number of telemetry channels")
	legacy   = flag.Bool("legacy", false, "Emit unlabeled positional frames")
	count    = flag.Int("count", 0, "Number of frames to send (0 = until interrupted)")
)

func main() {
	flag.Parse()

	var w io.Writer = os.Stdout
	if *device != "-" {
		cfg := link.DefaultConfig(*device)
		cfg.Baud = *baud
		port, err := link.Open(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer port.Close()
		w = port
		fmt.Printf("Opened %s at %d baud\n", *device, *baud)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	// Device metadata, once at startup like the real firmware
	fmt.Fprintf(w, "%sfw_version:0.9.1-sim\n", telemetry.TagInfo)
	fmt.Fprintf(w, "%sbattery:%d\n", telemetry.TagInfo, 50+rand.Intn(50))

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	sent := 0
	for {
		select {
		case <-interrupt:
			return
		case <-ticker.C:
		}

		if _, err := io.WriteString(w, frameLine()+"\n"); err != nil {
			fmt.Fprintf(os.Stderr, "write error: %v\n", err)
			os.Exit(1)
		}

		sent++
		if *count > 0 && sent >= *count {
			return
		}
	}
}

func frameLine() string {
	var sb strings.Builder
	sb.WriteString(telemetry.TagTelemetry)
	for i := 0; i < *channels; i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		if !*legacy {
			fmt.Fprintf(&sb, "adc%d:", i)
		}
		fmt.Fprintf(&sb, "%d", rand.Intn(4097))
	}
	return sb.String()
}
