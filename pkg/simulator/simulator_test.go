package simulator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/erain9/stocksim/pkg/backend/file"
	"github.com/erain9/stocksim/pkg/backend/memory"
	"github.com/erain9/stocksim/pkg/core"
	"github.com/erain9/stocksim/pkg/messaging"
	"github.com/erain9/stocksim/pkg/otel"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type failingBackend struct {
	*memory.MemoryBackend
	loadErr error
	saveErr error
}

func (f *failingBackend) Load(ctx context.Context) (*core.Snapshot, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.MemoryBackend.Load(ctx)
}

func (f *failingBackend) Save(ctx context.Context, s *core.Snapshot) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.MemoryBackend.Save(ctx, s)
}

func TestNewFreshSession(t *testing.T) {
	sim, err := New(context.Background(), memory.NewMemoryBackend(), nil, DefaultOptions())
	require.NoError(t, err)

	p := sim.Portfolio()
	assert.True(t, p.Balance.Equal(DefaultInitialBalance))
	assert.Empty(t, p.Holdings)
	assert.Empty(t, p.BuyOrders)
	assert.Empty(t, p.SellOrders)
}

func TestNewWithOptions(t *testing.T) {
	sim, err := New(context.Background(), memory.NewMemoryBackend(), nil, Options{
		InitialBalance:  fpdecimal.FromInt(500),
		InitialHoldings: map[string]int64{"xyz": 10, "ABC": 2},
	})
	require.NoError(t, err)

	p := sim.Portfolio()
	assert.True(t, p.Balance.Equal(fpdecimal.FromInt(500)))
	assert.Equal(t, []Holding{{Symbol: "ABC", Quantity: 2}, {Symbol: "XYZ", Quantity: 10}}, p.Holdings)
}

func TestNewZeroBalance(t *testing.T) {
	ctx := context.Background()
	sim, err := New(ctx, memory.NewMemoryBackend(), nil, Options{
		InitialHoldings: map[string]int64{"XYZ": 1},
	})
	require.NoError(t, err)
	assert.True(t, sim.Portfolio().Balance.Equal(fpdecimal.Zero))

	_, err = sim.Buy(ctx, "XYZ", 1, fpdecimal.FromInt(1))
	assert.ErrorIs(t, err, core.ErrInsufficientFunds)

	_, err = sim.Sell(ctx, "XYZ", 1, fpdecimal.FromInt(1))
	assert.NoError(t, err)
}

func TestNewLoadError(t *testing.T) {
	backend := &failingBackend{MemoryBackend: memory.NewMemoryBackend(), loadErr: errors.New("disk on fire")}
	_, err := New(context.Background(), backend, nil, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestNewRequiresBackend(t *testing.T) {
	_, err := New(context.Background(), nil, nil, Options{})
	assert.Error(t, err)
}

func TestBuySellMatchSavesAndPublishes(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewMemoryBackend()
	sender := messaging.NewMockMessageSender()

	sim, err := New(ctx, backend, sender, Options{
		InitialBalance:  fpdecimal.FromInt(10000),
		InitialHoldings: map[string]int64{"XYZ": 10},
	})
	require.NoError(t, err)

	trades, err := sim.Sell(ctx, "xyz", 10, fpdecimal.FromInt(50))
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.Equal(t, 1, backend.Saves())

	trades, err = sim.Buy(ctx, "XYZ", 10, fpdecimal.FromInt(55))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "52.500", trades[0].Price.String())
	assert.Equal(t, 2, backend.Saves())

	msgs := sender.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, trades[0].ID, msgs[0].TradeID)
	assert.Equal(t, "XYZ", msgs[0].Symbol)
	assert.Equal(t, int64(10), msgs[0].Quantity)

	p := sim.Portfolio()
	assert.Equal(t, []Holding{{Symbol: "XYZ", Quantity: 10}}, p.Holdings)
	assert.True(t, p.Balance.Equal(fpdecimal.FromInt(10000)), "balance %s", p.Balance)
	assert.Empty(t, p.BuyOrders)
	assert.Empty(t, p.SellOrders)

	saved, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, p.Balance.String(), saved.Balance)
}

func TestRejectedOrderIsNotSaved(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewMemoryBackend()
	sim, err := New(ctx, backend, nil, Options{InitialBalance: fpdecimal.FromInt(100)})
	require.NoError(t, err)

	_, err = sim.Buy(ctx, "XYZ", 10, fpdecimal.FromInt(50))
	assert.ErrorIs(t, err, core.ErrInsufficientFunds)

	_, err = sim.Sell(ctx, "XYZ", 1, fpdecimal.FromInt(50))
	assert.ErrorIs(t, err, core.ErrInsufficientHoldings)

	_, err = sim.Buy(ctx, "", 1, fpdecimal.FromInt(1))
	assert.ErrorIs(t, err, core.ErrInvalidOrder)

	assert.Equal(t, 0, backend.Saves())
}

func TestPublishFailureDoesNotFailOrder(t *testing.T) {
	ctx := context.Background()
	sender := messaging.NewMockMessageSender()
	sender.Err = errors.New("broker unavailable")

	sim, err := New(ctx, memory.NewMemoryBackend(), sender, Options{
		InitialHoldings: map[string]int64{"XYZ": 1},
	})
	require.NoError(t, err)

	_, err = sim.Sell(ctx, "XYZ", 1, fpdecimal.FromInt(10))
	require.NoError(t, err)
	trades, err := sim.Buy(ctx, "XYZ", 1, fpdecimal.FromInt(10))
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestSaveFailureIsReported(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{MemoryBackend: memory.NewMemoryBackend(), saveErr: errors.New("read-only")}
	sim, err := New(ctx, backend, nil, DefaultOptions())
	require.NoError(t, err)

	_, err = sim.Buy(ctx, "XYZ", 1, fpdecimal.FromInt(10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only")

	// the order itself was accepted
	assert.Len(t, sim.Portfolio().BuyOrders, 1)
}

func TestSessionSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "stock_market.json")

	sim, err := New(ctx, file.NewFileBackend(path), nil, Options{
		InitialHoldings: map[string]int64{"XYZ": 5},
	})
	require.NoError(t, err)

	_, err = sim.Buy(ctx, "ABC", 4, fpdecimal.FromInt(25))
	require.NoError(t, err)
	_, err = sim.Sell(ctx, "XYZ", 2, fpdecimal.FromInt(70))
	require.NoError(t, err)

	before := sim.Portfolio()
	require.NoError(t, sim.Close(ctx))

	_, err = sim.Buy(ctx, "ABC", 1, fpdecimal.FromInt(1))
	assert.Error(t, err, "closed session must reject orders")

	restarted, err := New(ctx, file.NewFileBackend(path), nil, Options{InitialBalance: fpdecimal.FromInt(1)})
	require.NoError(t, err)

	after := restarted.Portfolio()
	assert.Equal(t, before.Balance.String(), after.Balance.String())
	assert.Equal(t, before.Holdings, after.Holdings)
	assert.Equal(t, before.BuyOrders, after.BuyOrders)
	assert.Equal(t, before.SellOrders, after.SellOrders)
}

func TestCloseClosesSender(t *testing.T) {
	sender := messaging.NewMockMessageSender()
	sim, err := New(context.Background(), memory.NewMemoryBackend(), sender, Options{})
	require.NoError(t, err)

	require.NoError(t, sim.Close(context.Background()))
	assert.True(t, sender.Closed())
	require.NoError(t, sim.Close(context.Background()))
}

func TestPortfolioString(t *testing.T) {
	p := Portfolio{
		Balance:  fpdecimal.FromInt(9000),
		Escrowed: fpdecimal.FromInt(1000),
		Holdings: []Holding{{Symbol: "XYZ", Quantity: 10}},
		BuyOrders: []core.OrderRecord{
			{Symbol: "ABC", Quantity: 10, Price: "100.000"},
		},
	}

	out := p.String()
	assert.Contains(t, out, "- XYZ: 10 shares")
	assert.Contains(t, out, "Available Balance: $9000.000")
	assert.Contains(t, out, "BUY  10 ABC @ $100.000")
	assert.Contains(t, out, "Escrowed Balance: $1000.000")
}

func TestSaveSpanNamesBackend(t *testing.T) {
	otel.ResetForTesting()
	defer otel.ResetForTesting()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.InitForTesting(tp.Tracer("test"))

	ctx := context.Background()
	sim, err := New(ctx, memory.NewMemoryBackend(), nil, DefaultOptions())
	require.NoError(t, err)
	_, err = sim.Buy(ctx, "XYZ", 1, fpdecimal.FromInt(10))
	require.NoError(t, err)

	var saves int
	for _, span := range recorder.Ended() {
		if span.Name() != otel.SpanSaveSnapshot {
			continue
		}
		saves++
		assert.Contains(t, span.Attributes(), attribute.String(otel.AttributeBackend, "memory"))
	}
	assert.Equal(t, 1, saves)
}

func TestBackendName(t *testing.T) {
	assert.Equal(t, "memory", backendName(memory.NewMemoryBackend()))
	assert.Equal(t, "file", backendName(file.NewFileBackend(filepath.Join(t.TempDir(), "s.json"))))

	type bareBackend struct{ core.Backend }
	assert.Equal(t, "simulator.bareBackend", backendName(bareBackend{}))
}
