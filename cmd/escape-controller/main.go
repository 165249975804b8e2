// Command escape-controller runs a physical escape room: it watches the prop
// inputs, advances the game phases, drives the relay patterns and audio cues,
// and serves the operator panel.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/verhoeven/escape-controller/internal/audio"
	"github.com/verhoeven/escape-controller/internal/broadcast"
	"github.com/verhoeven/escape-controller/internal/config"
	"github.com/verhoeven/escape-controller/internal/game"
	"github.com/verhoeven/escape-controller/internal/hw"
	"github.com/verhoeven/escape-controller/internal/monitor"
	"github.com/verhoeven/escape-controller/internal/web"
)

func main() {
	configPath := flag.String("config", "", "YAML config path (empty: search . and /etc/escape-controller)")
	httpAddr := flag.String("http", "", "HTTP listen address (overrides config)")
	broker := flag.String("broker", "", "MQTT broker for the sound machine (overrides config)")
	chip := flag.String("chip", hw.DefaultChip, "GPIO character device")
	printState := flag.Bool("print-state", false, "Read the inputs once, print them, and exit")
	debug := flag.Bool("debug", false, "Verbose development logging")

	flag.Parse()

	logger, err := buildLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar()

	if err := run(*configPath, *httpAddr, *broker, *chip, *printState, log); err != nil {
		log.Fatalw("fatal", "error", err)
	}
}

func buildLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(configPath, httpAddr, broker, chip string, printState bool, log *zap.SugaredLogger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}
	if broker != "" {
		cfg.Audio.Broker = broker
	}

	if printState {
		return printInputs(chip, cfg)
	}

	metrics := monitor.New()
	bus := broadcast.New(cfg.Events.QueueSize, log, metrics)

	player := audio.NewRealPlayer(cfg.Audio.Broker, log)
	defer player.Close()

	relays, err := hw.NewRealRelays(chip, cfg.RelaySpecs())
	if err != nil {
		return fmt.Errorf("init relays: %w", err)
	}
	defer func() {
		if err := relays.Close(); err != nil {
			log.Warnw("close relays", "error", err)
		}
	}()

	machine := game.NewMachine(game.MachineConfig{
		Patterns: cfg.GamePatterns(),
		Roles:    cfg.GameRoles(),
		Cues:     cfg.GameCues(),
	}, relays, player, bus, metrics, log, time.Now)

	// Edges arrive on the kernel event goroutine; the machine's lock makes
	// that safe.
	inputs, err := hw.NewRealInputs(chip, cfg.InputSpecs(), machine.HandleInputChange)
	if err != nil {
		return fmt.Errorf("init inputs: %w", err)
	}
	defer func() {
		if err := inputs.Close(); err != nil {
			log.Warnw("close inputs", "error", err)
		}
	}()

	initial, err := inputs.ReadAll()
	if err != nil {
		return fmt.Errorf("read inputs: %w", err)
	}
	machine.SeedInputs(initial)
	machine.SetPhase(game.PhaseIdle, "boot_to_idle")

	hints := make([]web.Hint, 0, len(cfg.Hints))
	for _, h := range cfg.Hints {
		hints = append(hints, web.Hint{Name: h.Name, File: h.File})
	}

	srv := web.New(cfg.HTTP.Addr, web.Deps{
		Machine:  machine,
		Bus:      bus,
		Audio:    player,
		Hints:    hints,
		Poweroff: systemPoweroff,
		Metrics:  metrics.Handler(),
		Log:      log,
	})
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("http server error", "error", err)
		}
	}()

	log.Infow("controller up",
		"http", cfg.HTTP.Addr,
		"broker", cfg.Audio.Broker,
		"inputs", len(cfg.Inputs),
		"relays", len(cfg.Relays),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	signalName := "UNKNOWN"
	if sig == syscall.SIGINT {
		signalName = "SIGINT"
	} else if sig == syscall.SIGTERM {
		signalName = "SIGTERM"
	}
	log.Infow("shutting down", "signal", signalName)

	bus.Publish(broadcast.NewSystem(broadcast.ActionShutdown, signalName, time.Now()))
	if err := player.SilenceAll(); err != nil {
		log.Warnw("silence on shutdown", "error", err)
	}

	// Streaming observers hold their connections open; give them a bounded
	// window and let process exit reap the rest.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warnw("http shutdown", "error", err)
	}

	return nil
}

func printInputs(chip string, cfg *config.Config) error {
	inputs, err := hw.NewRealInputs(chip, cfg.InputSpecs(), func(string, bool) {})
	if err != nil {
		return fmt.Errorf("init inputs: %w", err)
	}
	defer inputs.Close()

	states, err := inputs.ReadAll()
	if err != nil {
		return fmt.Errorf("read inputs: %w", err)
	}

	labels := make([]string, 0, len(states))
	for label := range states {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Printf("%s: %s\n", label, game.StateFor(states[label]))
	}
	return nil
}

// systemPoweroff shuts the host down. sudo keeps the controller itself
// unprivileged.
func systemPoweroff() error {
	return exec.Command("sudo", "/usr/sbin/poweroff").Start()
}
