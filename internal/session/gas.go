package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/greyhatharold/oracular/internal/chain"
	"github.com/greyhatharold/oracular/internal/event"
	"github.com/greyhatharold/oracular/internal/price"
)

// GasQuote is the current gas price in the three denominations the
// dashboard displays. USD is best-effort and reports 0.00 when no price
// feed is wired or the feed is down.
type GasQuote struct {
	Wei  *big.Int
	Gwei float64
	USD  float64
}

// GasPrice fetches the current gas price. A price-feed failure never fails
// the call; it is published as a non-fatal error event.
func (m *Manager) GasPrice(ctx context.Context) (*GasQuote, error) {
	client := m.prov.Client()
	wei, err := client.GasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching gas price: %w", err)
	}

	q := &GasQuote{
		Wei:  wei,
		Gwei: round2(chain.WeiToGwei(wei)),
	}

	m.mu.Lock()
	network := m.network
	m.mu.Unlock()

	if m.feed != nil && network != nil {
		native, ferr := m.feed.NativePrice(network.Name)
		if ferr != nil {
			// An HTML answer means the auth token bought us a login page;
			// drop it so the next request goes unauthenticated.
			if errors.Is(ferr, price.ErrResponseFormat) {
				m.feed.SetAuthToken("")
			}
			m.publishError(ferr)
		} else {
			eth, _ := new(big.Float).Quo(
				new(big.Float).SetInt(wei),
				new(big.Float).SetFloat64(1e18),
			).Float64()
			// Per-gas-unit USD is tiny; keep full precision and let the
			// display layer scale and round.
			q.USD = eth * native
		}
	}
	return q, nil
}

// startGasPollLocked begins periodic gas polling; the caller holds m.mu.
// A non-positive interval disables polling.
func (m *Manager) startGasPollLocked() {
	if m.pollCancel != nil || m.pollInterval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.pollCancel = cancel
	go m.pollGas(ctx)
}

// stopGasPollLocked stops polling; the caller holds m.mu.
func (m *Manager) stopGasPollLocked() {
	if m.pollCancel != nil {
		m.pollCancel()
		m.pollCancel = nil
	}
}

// pollGas publishes a gasPriceUpdate on every tick. Failures are published
// and swallowed: background work never interrupts the user's action.
func (m *Manager) pollGas(ctx context.Context) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	m.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pollOnce(ctx)
		}
	}
}

func (m *Manager) pollOnce(ctx context.Context) {
	q, err := m.GasPrice(ctx)
	if err != nil {
		m.publishError(err)
		return
	}
	m.bus.Publish(event.Event{Type: event.GasPriceUpdate, Payload: q})
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
