// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/sharedesk/cmd/sharedesk/cli"
	"github.com/bureau-foundation/sharedesk/lib/clock"
	"github.com/bureau-foundation/sharedesk/lib/config"
	"github.com/bureau-foundation/sharedesk/lib/cryptobox"
	"github.com/bureau-foundation/sharedesk/lib/desktop"
	"github.com/bureau-foundation/sharedesk/lib/framecodec"
	"github.com/bureau-foundation/sharedesk/share"
	"github.com/bureau-foundation/sharedesk/share/console"
	"github.com/bureau-foundation/sharedesk/share/statusapi"
)

// sessionFlags are the flags of the operator and client commands.
// Only flags the user set override the configuration file.
type sessionFlags struct {
	configPath string
	shared     string
	status     string
	logging    cli.LogFlags

	// Operator.
	display   string
	noConsole bool

	// Client.
	target         string
	remoteControl  bool
	captureCommand string
	captureFile    string
	input          string
	codec          string
	grayscale      bool
	maxDimension   int

	flagSet *pflag.FlagSet
}

func (f *sessionFlags) addCommon(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.configPath, "config", "", "configuration file (YAML or JSONC; default $SHAREDESK_CONFIG)")
	flagSet.StringVar(&f.shared, "shared", "", "shared folder holding encryption.key, screen.enc, and the command mailbox")
	flagSet.StringVar(&f.status, "status", "", "serve the local status API on this address (e.g. 127.0.0.1:7040)")
	f.logging.AddFlags(flagSet)
	f.flagSet = flagSet
}

func operatorCommand(flags *sessionFlags) *cli.Command {
	return &cli.Command{
		Name:    "operator",
		Summary: "Watch the shared screen and send input",
		Description: `Watch the client's screen and send it mouse clicks and keystrokes.

Each new frame is written to the --display PNG file. On a terminal the
operator console shows session status and forwards keystrokes to the
client; ctrl+q quits and ctrl+t pauses forwarding. Clicks are sent
through the status API (POST /commands).`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("operator", pflag.ContinueOnError)
			flags.addCommon(flagSet)
			flagSet.StringVar(&flags.display, "display", "", "PNG file rewritten with every new frame")
			flagSet.BoolVar(&flags.noConsole, "no-console", false, "do not start the terminal console")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			return runSession(config.RoleOperator, flags)
		},
	}
}

func clientCommand(flags *sessionFlags) *cli.Command {
	return &cli.Command{
		Name:    "client",
		Summary: "Share this screen",
		Description: `Capture this screen or one window into the shared folder.

With --remote-control the client also executes the operator's clicks
and keystrokes through xdotool. Without it the command mailbox is never
read.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("client", pflag.ContinueOnError)
			flags.addCommon(flagSet)
			flagSet.StringVar(&flags.target, "target", "", `what to share: "screen" or "window:<id>"`)
			flagSet.BoolVar(&flags.remoteControl, "remote-control", false, "execute commands from the operator")
			flagSet.StringVar(&flags.captureCommand, "capture-command", "", "command writing a PNG or JPEG capture to stdout ({window} is replaced)")
			flagSet.StringVar(&flags.captureFile, "capture-file", "", "read frames from an image file another program keeps rewriting")
			flagSet.StringVar(&flags.input, "input", "", "input driver: xdotool or log")
			flagSet.StringVar(&flags.codec, "codec", "", "frame codec: jpeg, zstd, or lz4")
			flagSet.BoolVar(&flags.grayscale, "grayscale", false, "send grayscale frames")
			flagSet.IntVar(&flags.maxDimension, "max-dimension", 0, "downscale frames whose longer side exceeds this")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			return runSession(config.RoleClient, flags)
		},
	}
}

// loadConfig reads the configuration file, if any, and applies the
// flags the user set. The result is normalized and validated.
func loadConfig(role string, flags *sessionFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case flags.configPath != "":
		cfg, err = config.LoadFile(flags.configPath)
	case os.Getenv("SHAREDESK_CONFIG") != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", share.ErrStartupConfig, err)
	}

	cfg.Role = role
	changed := func(name string) bool {
		return flags.flagSet != nil && flags.flagSet.Changed(name)
	}
	if changed("shared") {
		cfg.SharedFolder = flags.shared
	}
	if changed("status") {
		cfg.Status.Listen = flags.status
	}
	if changed("display") {
		cfg.Display.Output = flags.display
	}
	if changed("target") {
		cfg.Target = flags.target
	}
	if changed("remote-control") {
		cfg.RemoteControl = flags.remoteControl
	}
	if changed("capture-command") {
		cfg.Capture.Command = flags.captureCommand
	}
	if changed("capture-file") {
		cfg.Capture.File = flags.captureFile
	}
	if changed("input") {
		cfg.Input.Driver = flags.input
	}
	if changed("codec") {
		cfg.Frame.Codec = flags.codec
	}
	if changed("grayscale") {
		cfg.Frame.Grayscale = flags.grayscale
	}
	if changed("max-dimension") {
		cfg.Frame.MaxDimension = flags.maxDimension
	}
	cfg.Normalize()

	if role == config.RoleOperator && cfg.Display.Output == "" {
		cfg.Display.Output = filepath.Join(os.TempDir(), "sharedesk-screen.png")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", share.ErrStartupConfig, err)
	}
	return cfg, nil
}

// collaborators builds the session configuration for cfg: the frame
// source, compressor, and input sink of a client, or the display of an
// operator.
func collaborators(cfg *config.Config, logger *slog.Logger) (share.Config, error) {
	role, err := share.ParseRole(cfg.Role)
	if err != nil {
		return share.Config{}, err
	}
	sessionConfig := share.Config{
		Role: role,
		Intervals: share.Intervals{
			Capture:  cfg.Intervals.Capture.Std(),
			Watch:    cfg.Intervals.Watch.Std(),
			Dispatch: cfg.Intervals.Dispatch.Std(),
			Receive:  cfg.Intervals.Receive.Std(),
		},
	}

	if role == share.RoleOperator {
		sessionConfig.Display = share.MultiDisplay{desktop.PNGDisplay{Path: cfg.Display.Output}}
		return sessionConfig, nil
	}

	target, err := desktop.ParseTarget(cfg.Target)
	if err != nil {
		return share.Config{}, err
	}
	codec, err := framecodec.ParseCodec(cfg.Frame.Codec)
	if err != nil {
		return share.Config{}, err
	}
	compressor, err := framecodec.NewCompressor(framecodec.Options{
		Budget:       cfg.Frame.Budget,
		StartQuality: cfg.Frame.StartQuality,
		QualityStep:  cfg.Frame.QualityStep,
		FloorQuality: cfg.Frame.FloorQuality,
		MaxDimension: cfg.Frame.MaxDimension,
		Grayscale:    cfg.Frame.Grayscale,
		Codec:        codec,
	})
	if err != nil {
		return share.Config{}, err
	}

	xdotool := desktop.NewXDoTool(desktop.XDoToolOptions{ClickSettle: cfg.Input.ClickSettle.Std()})
	var source share.FrameSource = desktop.FileSource{Path: cfg.Capture.File}
	if cfg.Capture.File == "" {
		source, err = desktop.NewCommandSource(cfg.Capture.Command, xdotool, nil)
		if err != nil {
			return share.Config{}, err
		}
	}

	sessionConfig.Target = target
	sessionConfig.RemoteControl = cfg.RemoteControl
	sessionConfig.Source = source
	sessionConfig.Compressor = compressor
	sessionConfig.FocusSettle = cfg.Input.FocusSettle.Std()
	switch cfg.Input.Driver {
	case "log":
		sessionConfig.Input = desktop.LogSink{Logger: logger.With("component", "input")}
	default:
		sessionConfig.Input = xdotool
	}
	return sessionConfig, nil
}

// useConsole reports whether the operator console can take over the
// terminal.
func useConsole(role string, flags *sessionFlags) bool {
	if role != config.RoleOperator || flags.noConsole {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func runSession(role string, flags *sessionFlags) error {
	cfg, err := loadConfig(role, flags)
	if err != nil {
		return err
	}

	interactive := useConsole(role, flags)
	handler, closer, err := flags.logging.NewHandler()
	if err != nil {
		return err
	}
	defer closer.Close()

	var consoleHandler *console.LogHandler
	if interactive {
		// Warnings go to the console; everything else only reaches the
		// log file, since stderr belongs to the console.
		consoleHandler = console.NewLogHandler(slog.LevelWarn)
		if flags.logging.File != "" {
			handler = cli.FanoutHandler{handler, consoleHandler}
		} else {
			handler = consoleHandler
		}
	}
	logger := slog.New(handler)

	// Everything that can be rejected is checked before the shared
	// folder or its key are created.
	sessionConfig, err := collaborators(cfg, logger)
	if err != nil {
		return fmt.Errorf("%w: %w", share.ErrStartupConfig, err)
	}
	if err := sessionConfig.Validate(); err != nil {
		return err
	}

	if err := cfg.EnsureSharedFolder(); err != nil {
		return fmt.Errorf("%w: %w", share.ErrStartupConfig, err)
	}
	key, created, err := cryptobox.LoadOrCreate(cfg.SharedFolder)
	if err != nil {
		return fmt.Errorf("%w: %w", share.ErrStartupConfig, err)
	}
	defer key.Close()
	if created {
		logger.Info("created encryption key", "path", filepath.Join(cfg.SharedFolder, cryptobox.KeyFileName))
	}

	session, err := share.NewSession(share.SessionContext{
		Key:     key,
		Storage: share.NewStorage(cfg.SharedFolder, cfg.StorageTimeout.Std(), clock.Real()),
		Clock:   clock.Real(),
		Logger:  logger,
		Policy:  share.ErrorPolicy{Threshold: cfg.ErrorThreshold, Backoff: share.DoublingBackoff},
	}, sessionConfig)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Status.Listen != "" {
		listener, err := net.Listen("tcp", cfg.Status.Listen)
		if err != nil {
			return fmt.Errorf("status API: %w", err)
		}
		logger.Info("status API listening", "address", listener.Addr().String())
		go func() {
			if err := statusapi.Serve(ctx, listener, session, logger); err != nil {
				logger.Error("status API stopped", "error", err)
			}
		}()
	}

	if !interactive {
		return sessionResult(session.Run(ctx), os.Stderr)
	}
	return sessionResult(runWithConsole(ctx, session, consoleHandler), os.Stderr)
}

// sessionEndedCode is the exit status of a session that stopped itself
// because its target closed or a loop kept failing.
const sessionEndedCode = 3

// sessionResult maps a session's end to the process result. A session
// that stopped itself reports why on stderr and exits with
// sessionEndedCode, so a supervisor can tell it from a bad invocation.
func sessionResult(err error, stderr io.Writer) error {
	if err == nil || !share.IsFatal(err) {
		return err
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return &cli.ExitError{Code: sessionEndedCode}
}

// runWithConsole runs the session behind the operator console. Quitting
// the console stops the session; a fatal session error is shown in the
// console and then returned.
func runWithConsole(ctx context.Context, session *share.Session, handler *console.LogHandler) error {
	done := make(chan error, 1)
	result := make(chan error, 1)
	go func() {
		err := session.Run(ctx)
		result <- err
		done <- err
	}()

	consoleErr := console.Run(ctx, session, done, handler)
	session.Stop()
	sessionErr := <-result

	if sessionErr != nil {
		return sessionErr
	}
	if consoleErr != nil && !errors.Is(consoleErr, context.Canceled) {
		return fmt.Errorf("console: %w", consoleErr)
	}
	return nil
}
