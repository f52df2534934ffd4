package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	ilog "github.com/gwillem/iaroc/internal/log"
	"github.com/gwillem/iaroc/pkg/control"
	"github.com/gwillem/iaroc/pkg/estop"
	"github.com/gwillem/iaroc/pkg/robot"
)

type RunCommand struct {
	Config   string        `long:"config" short:"c" default:"iaroc.json" description:"Configuration file"`
	Headless bool          `long:"headless" description:"Run without the dashboard and log to stderr"`
	LogLevel string        `long:"log-level" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Headless log level"`
	Dwell    time.Duration `long:"dwell" description:"Override the bump recovery dwell (e.g. 1500ms)"`
	Sonar    string        `long:"calibration" description:"Range finder calibration file (overrides the configuration)"`
}

func (c *RunCommand) Execute(args []string) error {
	// Load config
	cfg, err := robot.LoadConfigFrom(c.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, "No configuration found. Run 'iaroc setup' first.")
		os.Exit(1)
	}

	if c.Sonar != "" {
		if err := cfg.MergeCalibration(c.Sonar); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading calibration: %v\n", err)
			os.Exit(1)
		}
	}

	if cfg.Create.Port == "" {
		fmt.Fprintln(os.Stderr, "Create base not configured. Run 'iaroc setup' first.")
		os.Exit(1)
	}
	if !cfg.Sonar.IsCalibrated() {
		fmt.Fprintln(os.Stderr, "Range finders not wired. Run 'iaroc setup' first.")
		os.Exit(1)
	}

	if !c.Headless {
		fmt.Printf("Loaded configuration from %s\n", c.Config)
	}

	dwell := cfg.Dwell()
	if c.Dwell > 0 {
		dwell = c.Dwell
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bot, err := robot.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open robot: %v", err)
	}

	ctrlCfg := control.Config{
		Platform: bot,
		Dwell:    dwell,
		Speed:    cfg.Speed,
	}
	var logger *slog.Logger
	if c.Headless {
		ilog.Init(c.LogLevel)
		logger = ilog.L()
		ctrlCfg.Sink = ilog.Sink{Logger: logger}
	}

	// Create controller
	ctrl, err := control.NewController(ctrlCfg)
	if err != nil {
		bot.Close()
		log.Fatalf("Failed to create controller: %v", err)
	}
	defer ctrl.ShutDown()

	if cfg.StopPin > 0 {
		button := estop.NewButton(uint(cfg.StopPin), ctrl)
		defer button.Close()
		go button.Run()
	}

	if c.Headless {
		// The controller has already logged the failure.
		if err := runHeadless(ctx, ctrl, logger); err != nil {
			os.Exit(1)
		}
		return nil
	}

	// Start controller in background
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := ctrl.Run(ctx); err != nil {
			log.Printf("Controller error: %v", err)
		}
	}()

	// Run TUI
	p := tea.NewProgram(newDashboardModel(ctrl, cfg), tea.WithAltScreen())
	_, err = p.Run()

	// Let the loop send its final stop before the platform is closed.
	ctrl.RequestStop()
	<-done

	if err != nil {
		log.Fatalf("Error running program: %v", err)
	}
	return nil
}

// runHeadless runs the controller until it stops or a signal arrives. Failures
// reach the log through the controller's sink only.
func runHeadless(ctx context.Context, ctrl *control.Controller, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("controller starting", "dwell", ctrl.Dwell(), "speed", ctrl.Speed())
	err := ctrl.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("controller exited after a failure")
		return err
	}
	logger.Info("controller stopped")
	return nil
}
