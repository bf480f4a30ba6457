package cmd

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/greyhatharold/oracular/internal/event"
	"github.com/greyhatharold/oracular/internal/gateway"
	"github.com/greyhatharold/oracular/internal/session"
	"github.com/greyhatharold/oracular/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch [address]",
	Short: "Stream live oracle events",
	Long: `Watch an oracle contract for events in real-time.

Streams ValueUpdated, RequestSubmitted and RequestFulfilled events into a
live TUI table, with the current gas price in the status bar. No WebSocket
required — works with all public HTTP RPCs.

Keyboard controls:
  ↑↓ / j k   navigate rows
  o           open selected tx in explorer
  c           copy selected tx hash
  q           quit

Examples:
  oracular watch
  oracular watch 0xabc... --network base`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := connectedApp(ctx)
		if err != nil {
			return err
		}
		address, err := resolveOracle(a, args)
		if err != nil {
			return err
		}
		return runWatch(ctx, a, address)
	},
}

func runWatch(ctx context.Context, a *app, address string) error {
	network := a.manager.Network()
	chainName := "unknown"
	explorer := ""
	if network != nil {
		chainName = network.DisplayName
		explorer = network.ExplorerURL
	}

	m := ui.WatchModel{
		Contract: address,
		Chain:    chainName,
	}
	prog := tea.NewProgram(m, tea.WithInput(os.Stdin), tea.WithOutput(os.Stdout))

	offBus := a.bus.Subscribe(func(ev event.Event) {
		switch ev.Type {
		case event.GasPriceUpdate:
			if q, ok := ev.Payload.(*session.GasQuote); ok {
				prog.Send(ui.GasTickMsg{Gwei: q.Gwei, USD: q.USD * 21000})
			}
		case event.Error:
			if msg, ok := ev.Payload.(string); ok {
				prog.Send(ui.WatchStatusMsg{Connected: true, Account: a.manager.Account(), ErrMsg: msg})
			}
		case event.Disconnect:
			prog.Send(ui.WatchStatusMsg{Connected: false})
		}
	})
	defer offBus()

	send := func(oe gateway.OracleEvent) {
		msg := ui.OracleEventMsg{
			Event:    oe.Name,
			FullHash: oe.TxHash,
			BlockNum: oe.BlockNumber,
			When:     oe.ReceivedAt,
		}
		switch {
		case oe.ValueUpdated != nil:
			msg.Detail = oe.ValueUpdated.Value + " from " + ui.TruncateAddr(oe.ValueUpdated.Source)
		case oe.RequestSubmitted != nil:
			msg.Detail = ui.TruncateAddr(oe.RequestSubmitted.RequestID) + " by " + ui.TruncateAddr(oe.RequestSubmitted.Requester)
		case oe.RequestFulfilled != nil:
			msg.Detail = ui.TruncateAddr(oe.RequestFulfilled.RequestID) + " → " + oe.RequestFulfilled.Value
		}
		if explorer != "" && oe.TxHash != "" {
			msg.ExplorerURL = explorer + "/tx/" + oe.TxHash
		}
		prog.Send(msg)
	}

	for _, name := range []string{"ValueUpdated", "RequestSubmitted", "RequestFulfilled"} {
		off, err := a.gateway.SubscribeToEvents(address, name, send)
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", name, err)
		}
		defer off()
	}

	prog.Send(ui.WatchStatusMsg{Connected: true, Account: a.manager.Account()})

	_, err := prog.Run()
	return err
}
