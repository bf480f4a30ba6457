package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/greyhatharold/oracular/internal/contract"
)

type subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *subscription) stop() {
	s.cancel()
	<-s.done
}

// SubscribeToEvents starts watching a contract event and invokes fn with
// each normalized occurrence. Subscriptions are keyed by address and event
// name; subscribing again under the same key replaces the previous watcher.
// The returned function stops the watcher; calling it after replacement or
// cleanup is a no-op.
func (g *Gateway) SubscribeToEvents(address, eventName string, fn func(OracleEvent)) (func(), error) {
	if _, err := g.binding(address); err != nil {
		return nil, err
	}
	ev := contract.Find(contract.OracleABI, "event", eventName)
	if ev == nil {
		return nil, fmt.Errorf("unknown oracle event: %s", eventName)
	}

	key := lower(address) + "_" + eventName

	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{cancel: cancel, done: make(chan struct{})}

	g.mu.Lock()
	if prev, ok := g.subs[key]; ok {
		g.mu.Unlock()
		prev.stop()
		g.mu.Lock()
	}
	g.subs[key] = sub
	g.mu.Unlock()

	go g.watch(ctx, sub, address, ev, fn)

	return func() {
		g.mu.Lock()
		current := g.subs[key] == sub
		if current {
			delete(g.subs, key)
		}
		g.mu.Unlock()
		if current {
			sub.stop()
		}
	}, nil
}

// watch polls the log filter from the head at subscription time. Poll
// failures are published and the watcher keeps going; a dropped tick is
// recovered on the next one because the cursor only advances on success.
func (g *Gateway) watch(ctx context.Context, sub *subscription, address string, ev *contract.ABIEntry, fn func(OracleEvent)) {
	defer close(sub.done)

	topic := contract.EventTopic(ev)

	from, err := g.backend.BlockNumber(ctx)
	if err != nil {
		g.publishError(fmt.Errorf("starting event watch: %w", err))
		from = 0
	} else {
		from++
	}

	ticker := time.NewTicker(g.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		head, err := g.backend.BlockNumber(ctx)
		if err != nil || head < from {
			continue
		}
		logs, err := g.backend.Logs(ctx, address, []string{topic}, from, head)
		if err != nil {
			g.publishError(fmt.Errorf("polling %s logs: %w", ev.Name, err))
			continue
		}
		for _, l := range logs {
			fn(g.normalizeLog(ev, l))
		}
		from = head + 1
	}
}
