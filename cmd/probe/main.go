package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/lifeboat/internal/probe"
	"github.com/okian/lifeboat/pkg/logger"
)

// Default configuration constants.
const (
	defaultPassengers   = 1000
	defaultInvalidRatio = 0.2
	defaultRepeat       = 2
	defaultWorkers      = 2 // multiplier for runtime.NumCPU()
	defaultTimeout      = 10 * time.Second
	defaultRunTimeout   = 10 * time.Minute
)

func main() {
	var (
		baseURL      = flag.String("url", "http://localhost:9080", "Base URL of the service")
		passengers   = flag.Int("passengers", defaultPassengers, "Number of passengers to generate")
		invalidRatio = flag.Float64("invalid", defaultInvalidRatio, "Share of passengers with one broken field")
		repeat       = flag.Int("repeat", defaultRepeat, "Times each valid passenger is scored")
		workers      = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout      = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose      = flag.Bool("verbose", false, "Log every failed check")
		help         = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		probe.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	config := &probe.Config{
		BaseURL:      *baseURL,
		Passengers:   *passengers,
		InvalidRatio: *invalidRatio,
		Repeat:       *repeat,
		Workers:      *workers,
		Timeout:      *timeout,
		Verbose:      *verbose,
	}

	if _, err := probe.Run(ctx, config); err != nil {
		logger.Get().Error(ctx, "probe failed", logger.Error(err))
		stop()
		cancel()
		os.Exit(1)
	}
}
