package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/erain9/stocksim/config"
	"github.com/erain9/stocksim/pkg/app"
	"github.com/erain9/stocksim/pkg/backend/memory"
	"github.com/erain9/stocksim/pkg/core"
	"github.com/erain9/stocksim/pkg/simulator"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var symbols = []string{"AAPL", "MSFT", "XYZ"}

type result struct {
	latency time.Duration
	trades  int
	err     error
}

func main() {
	configFile := flag.String("config", "", "Path to config file (YAML); the backend defaults to memory")
	workers := flag.Int("workers", 8, "Number of concurrent order submitters")
	orders := flag.Int("orders", 10000, "Total number of orders to submit")
	rps := flag.Int("rate", 5000, "Maximum orders per second")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *configFile == "" {
		cfg.Backend.Driver = config.DriverMemory
	}
	app.SetupLogging(cfg)

	shutdown, err := app.SetupTelemetry(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}
	defer shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	holdings := make(map[string]int64, len(symbols))
	for _, s := range symbols {
		holdings[s] = int64(*orders) * 100
	}
	cfg.Engine.InitialBalance = fmt.Sprint(int64(*orders) * 100_000)
	cfg.Engine.InitialHoldings = holdings

	var sim *simulator.Simulator
	if cfg.Backend.Driver == config.DriverMemory {
		balance, _ := cfg.Balance()
		sim, err = simulator.New(ctx, memory.NewMemoryBackend(), nil, simulator.Options{
			InitialBalance:  balance,
			InitialHoldings: holdings,
		})
	} else {
		sim, err = app.NewSimulator(ctx, cfg)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start simulator")
	}

	limiter := rate.NewLimiter(rate.Limit(*rps), *workers)
	jobs := make(chan int)
	results := make(chan result, *workers)

	var wg sync.WaitGroup
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
			for range jobs {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				results <- submitRandomOrder(ctx, sim, r)
			}
		}(w)
	}

	go func() {
		defer close(jobs)
		for i := 0; i < *orders; i++ {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	log.Info().Int("workers", *workers).Int("orders", *orders).Int("rate", *rps).Msg("Starting load test")

	start := time.Now()
	hist := hdrhistogram.New(1, int64(time.Minute/time.Microsecond), 3)
	var (
		submitted, rejected, trades int
		firstErr                    error
	)
	for res := range results {
		submitted++
		trades += res.trades
		if res.err != nil {
			rejected++
			if firstErr == nil && !isExpectedRejection(res.err) {
				firstErr = res.err
			}
		}
		if err := hist.RecordValue(res.latency.Microseconds()); err != nil {
			log.Warn().Err(err).Msg("Latency out of histogram range")
		}
	}
	elapsed := time.Since(start)

	if err := sim.Close(context.WithoutCancel(ctx)); err != nil {
		log.Error().Err(err).Msg("Failed to close simulator")
	}

	fmt.Printf("Load test completed in %v\n", elapsed)
	fmt.Printf("Orders submitted: %d (%.0f/s)\n", submitted, float64(submitted)/elapsed.Seconds())
	fmt.Printf("Orders rejected:  %d\n", rejected)
	fmt.Printf("Trades executed:  %d\n", trades)
	fmt.Printf("Latency (us): p50=%d p90=%d p99=%d p99.9=%d max=%d mean=%.1f\n",
		hist.ValueAtQuantile(50),
		hist.ValueAtQuantile(90),
		hist.ValueAtQuantile(99),
		hist.ValueAtQuantile(99.9),
		hist.Max(),
		hist.Mean(),
	)

	if firstErr != nil {
		log.Error().Err(firstErr).Msg("Unexpected error during load test")
		os.Exit(1)
	}
}

// submitRandomOrder sends one order clustered around a fixed price so that
// a good share of the flow crosses.
func submitRandomOrder(ctx context.Context, sim *simulator.Simulator, r *rand.Rand) result {
	symbol := symbols[r.Intn(len(symbols))]
	quantity := int64(1 + r.Intn(20))
	price := fpdecimal.FromInt(int64(95 + r.Intn(11)))

	start := time.Now()
	var (
		trades []core.Trade
		err    error
	)
	if r.Intn(2) == 0 {
		trades, err = sim.Buy(ctx, symbol, quantity, price)
	} else {
		trades, err = sim.Sell(ctx, symbol, quantity, price)
	}
	return result{latency: time.Since(start), trades: len(trades), err: err}
}

func isExpectedRejection(err error) bool {
	return errors.Is(err, core.ErrInsufficientFunds) || errors.Is(err, core.ErrInsufficientHoldings)
}
