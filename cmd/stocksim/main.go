package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/erain9/stocksim/config"
	"github.com/erain9/stocksim/pkg/app"
	"github.com/erain9/stocksim/pkg/core"
	"github.com/erain9/stocksim/pkg/logging"
	"github.com/erain9/stocksim/pkg/simulator"
	"github.com/fatih/color"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/rs/zerolog/log"
)

var configFile = flag.String("config", "", "Path to config file (YAML)")

var (
	titleColor = color.New(color.FgCyan, color.Bold)
	okColor    = color.New(color.FgGreen)
	errColor   = color.New(color.FgRed)
	tradeColor = color.New(color.FgYellow, color.Bold)
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	app.SetupLogging(cfg)

	shutdown, err := app.SetupTelemetry(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithSession(ctx, "")

	sim, err := app.NewSimulator(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start simulator")
	}

	runMenu(ctx, os.Stdin, os.Stdout, sim)

	if err := sim.Close(context.WithoutCancel(ctx)); err != nil {
		log.Error().Err(err).Msg("Failed to close simulator")
		os.Exit(1)
	}
}

// runMenu drives the interactive menu until the user exits, the input ends
// or ctx is canceled.
func runMenu(ctx context.Context, in io.Reader, out io.Writer, sim *simulator.Simulator) {
	p := &prompter{scanner: bufio.NewScanner(in), out: out}

	for ctx.Err() == nil {
		titleColor.Fprintln(out, "\nStock Market Simulator")
		fmt.Fprintln(out, "1. View Portfolio")
		fmt.Fprintln(out, "2. Buy Stock")
		fmt.Fprintln(out, "3. Sell Stock")
		fmt.Fprintln(out, "4. Exit")

		choice, ok := p.ask("Enter choice: ")
		if !ok {
			return
		}

		switch choice {
		case "1":
			fmt.Fprintln(out)
			fmt.Fprint(out, sim.Portfolio())
		case "2":
			placeOrder(ctx, p, sim, core.Buy)
		case "3":
			placeOrder(ctx, p, sim, core.Sell)
		case "4":
			fmt.Fprintln(out, "Exiting Stock Market Simulator...")
			return
		default:
			errColor.Fprintln(out, "Invalid choice! Please try again.")
		}
	}
}

func placeOrder(ctx context.Context, p *prompter, sim *simulator.Simulator, side core.Side) {
	symbol, ok := p.ask("Enter stock symbol: ")
	if !ok {
		return
	}
	symbol = core.NormalizeSymbol(symbol)

	qtyText, ok := p.ask("Enter quantity: ")
	if !ok {
		return
	}
	quantity, err := strconv.ParseInt(qtyText, 10, 64)
	if err != nil {
		errColor.Fprintf(p.out, "Invalid quantity %q\n", qtyText)
		return
	}

	priceText, ok := p.ask("Enter price per share: ")
	if !ok {
		return
	}
	price, err := fpdecimal.FromString(priceText)
	if err != nil {
		errColor.Fprintf(p.out, "Invalid price %q\n", priceText)
		return
	}

	var trades []core.Trade
	if side == core.Buy {
		trades, err = sim.Buy(ctx, symbol, quantity, price)
	} else {
		trades, err = sim.Sell(ctx, symbol, quantity, price)
	}

	switch {
	case errors.Is(err, core.ErrInsufficientFunds):
		errColor.Fprintln(p.out, "Insufficient balance!")
		return
	case errors.Is(err, core.ErrInsufficientHoldings):
		errColor.Fprintln(p.out, "Insufficient shares!")
		return
	case errors.Is(err, core.ErrInvalidOrder):
		errColor.Fprintf(p.out, "Invalid order: %v\n", err)
		return
	case err != nil && trades == nil:
		errColor.Fprintf(p.out, "Order failed: %v\n", err)
		return
	}

	verb := "Buy"
	if side == core.Sell {
		verb = "Sell"
	}
	okColor.Fprintf(p.out, "%s order placed: %d shares of %s at $%s/share\n", verb, quantity, symbol, price)

	for _, t := range trades {
		tradeColor.Fprintf(p.out, "Order Matched! %d shares of %s at $%s/share\n", t.Quantity, t.Symbol, t.Price)
	}

	if err != nil {
		errColor.Fprintf(p.out, "Warning: %v\n", err)
	}
}

type prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// ask prints a prompt and reads one trimmed line; false means input ended
func (p *prompter) ask(prompt string) (string, bool) {
	fmt.Fprint(p.out, prompt)
	if !p.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.scanner.Text()), true
}
