// Package flasher runs the external firmware programmer CLI and streams its
// combined output back as timestamped log lines.
package flasher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/shlex"
	"github.com/rs/zerolog/log"
)

// DefaultCommand is the programmer invocation template. The {port} and
// {file} placeholders are substituted per flash.
const DefaultCommand = "STM32_Programmer_CLI -c port={port} -d {file}"

var (
	// ErrBusy is returned when a flash is already in progress.
	ErrBusy = errors.New("flasher: flash already in progress")
	// ErrNoFirmware is returned when no firmware file is configured.
	ErrNoFirmware = errors.New("flasher: no firmware file selected")
)

// Options describes one flash operation.
type Options struct {
	// Command is the shell-style invocation template; DefaultCommand when
	// empty. Tokenized with shlex, so quoted paths work.
	Command string

	// Port is substituted for {port}.
	Port string

	// FirmwarePath is substituted for {file}.
	FirmwarePath string
}

// LogFunc receives one line of programmer output with its capture time.
type LogFunc func(ts time.Time, line string)

// Flasher invokes the programmer CLI as a subprocess. One flash runs at a
// time; the serial link must be disconnected first since the programmer
// claims the same port.
type Flasher struct {
	mu    sync.Mutex
	busy  bool
	logFn LogFunc
}

// New creates a Flasher that reports output through logFn (may be nil).
func New(logFn LogFunc) *Flasher {
	return &Flasher{logFn: logFn}
}

// Busy reports whether a flash is in progress.
func (f *Flasher) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

// Run executes one flash and blocks until the programmer exits or ctx is
// cancelled. Stdout and stderr are merged and streamed line by line.
func (f *Flasher) Run(ctx context.Context, opts Options) error {
	if opts.FirmwarePath == "" {
		return ErrNoFirmware
	}

	f.mu.Lock()
	if f.busy {
		f.mu.Unlock()
		return ErrBusy
	}
	f.busy = true
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.busy = false
		f.mu.Unlock()
	}()

	argv, err := buildArgv(opts)
	if err != nil {
		return err
	}

	log.Info().Str("port", opts.Port).Str("firmware", opts.FirmwarePath).
		Msg("starting firmware flash")
	f.emit(fmt.Sprintf("Flash started: %s", opts.FirmwarePath))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		return fmt.Errorf("failed to start programmer: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(pr)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			f.emit(line)
		}
	}()

	waitErr := cmd.Wait()
	pw.Close()
	<-done
	pr.Close()

	if waitErr != nil {
		log.Error().Err(waitErr).Msg("firmware flash failed")
		f.emit(fmt.Sprintf("Flash failed: %v", waitErr))
		return fmt.Errorf("programmer exited with error: %w", waitErr)
	}

	log.Info().Msg("firmware flash complete")
	f.emit("Flash complete")
	return nil
}

func (f *Flasher) emit(line string) {
	if f.logFn != nil {
		f.logFn(time.Now(), line)
	}
}

// buildArgv tokenizes the command template and substitutes placeholders.
func buildArgv(opts Options) ([]string, error) {
	command := opts.Command
	if command == "" {
		command = DefaultCommand
	}

	tokens, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("invalid flash command %q: %w", command, err)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty flash command")
	}

	argv := make([]string, len(tokens))
	for i, tok := range tokens {
		tok = strings.ReplaceAll(tok, "{port}", opts.Port)
		tok = strings.ReplaceAll(tok, "{file}", opts.FirmwarePath)
		argv[i] = tok
	}
	return argv, nil
}
