package probe

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/lifeboat/pkg/logger"
)

// Runner configuration constants.
const (
	workerChannelMultiplier = 2
	percentageMultiplier    = 100
)

// Run executes a complete probe and returns its statistics. It returns
// ErrVerificationFailed when any case failed a check.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	log := logger.Named("probe")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting lifeboat probe",
		logger.String("baseURL", config.BaseURL),
		logger.Int("passengers", config.Passengers),
		logger.Float64("invalidRatio", config.InvalidRatio),
		logger.Int("repeat", config.Repeat),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()))

	client := newHTTPClient(config.BaseURL, config.Timeout)

	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	cases := generateCases(config.Passengers, config.InvalidRatio)
	stats.Cases = len(cases)
	for _, c := range cases {
		if c.Valid() {
			stats.Valid++
		} else {
			stats.Invalid++
		}
	}

	if err := runCases(ctx, config, client, cases, stats); err != nil {
		return stats, err
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if stats.Failed > 0 {
		return stats, fmt.Errorf("%d of %d cases failed: %w", stats.Failed, stats.Cases, ErrVerificationFailed)
	}
	log.Info(ctx, "probe completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	resp, err := client.Get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if resp.status != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.status)
	}
	return nil
}

// runCases fans cases out to a worker pool and tallies the outcomes.
func runCases(ctx context.Context, config *Config, client *HTTPClient, cases []Case, stats *Stats) error {
	var requests, passed, failed, survived int64

	workers := minInt(config.Workers, len(cases))
	if workers < 1 {
		workers = 1
	}
	caseChan := make(chan Case, workers*workerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range caseChan {
				n, alive, err := runCase(ctx, client, c, config.Repeat)
				atomic.AddInt64(&requests, int64(n))
				if err != nil {
					atomic.AddInt64(&failed, 1)
					if config.Verbose {
						logger.Get().Warn(ctx, "case failed",
							logger.String("request_id", c.ID),
							logger.String("want_field", c.WantField),
							logger.Error(err))
					}
					continue
				}
				atomic.AddInt64(&passed, 1)
				if alive {
					atomic.AddInt64(&survived, 1)
				}
			}
		}()
	}

	go func() {
		defer close(caseChan)
		for _, c := range cases {
			select {
			case <-ctx.Done():
				return
			case caseChan <- c:
			}
		}
	}()

	wg.Wait()

	stats.Requests = int(requests)
	stats.Passed = int(passed)
	stats.Failed = int(failed)
	stats.Survived = int(survived)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("probe interrupted: %w", err)
	}
	return nil
}

// runCase sends c, repeating valid cases, and reports the number of requests
// made and whether the passenger was predicted to survive.
func runCase(ctx context.Context, client *HTTPClient, c Case, repeat int) (int, bool, error) {
	resp, err := client.Post(ctx, "/predict", c.ID, c.Passenger)
	if err != nil {
		return 1, false, err
	}
	if !c.Valid() {
		return 1, false, verifyRejection(resp, c.WantField)
	}

	first, err := verifyPrediction(resp)
	if err != nil {
		return 1, false, err
	}
	n := 1
	for i := 1; i < repeat; i++ {
		n++
		resp, err := client.Post(ctx, "/predict", c.ID, c.Passenger)
		if err != nil {
			return n, false, err
		}
		again, err := verifyPrediction(resp)
		if err != nil {
			return n, false, err
		}
		if err := verifyRepeat(first, again); err != nil {
			return n, false, err
		}
	}
	return n, first.Survived, nil
}

// displayFinalStats logs the final probe statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var passRate, requestsPerSecond float64
	if stats.Cases > 0 {
		passRate = float64(stats.Passed) / float64(stats.Cases) * percentageMultiplier
	}
	if stats.Duration > 0 {
		requestsPerSecond = float64(stats.Requests) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("cases", stats.Cases),
		logger.Int("valid", stats.Valid),
		logger.Int("invalid", stats.Invalid),
		logger.Int("requests", stats.Requests),
		logger.Int("passed", stats.Passed),
		logger.Int("failed", stats.Failed),
		logger.Int("survived", stats.Survived),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("passRate", passRate),
		logger.Float64("requestsPerSecond", requestsPerSecond))
}
