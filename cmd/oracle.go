package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/greyhatharold/oracular/internal/gateway"
	"github.com/greyhatharold/oracular/internal/ui"
)

var oracleCmd = &cobra.Command{
	Use:   "oracle",
	Short: "Query and interact with oracle contracts",
}

// connectedApp wires the stack, restores or opens a session, and binds the
// gateway to the active chain.
func connectedApp(ctx context.Context) (*app, error) {
	a, err := wireApp()
	if err != nil {
		return nil, err
	}
	if err := a.manager.Initialize(ctx); err != nil {
		return nil, err
	}
	ok, err := a.manager.Connect(ctx, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no active session — run `oracular connect` first")
	}
	a.gateway.Initialize(ctx)
	return a, nil
}

// resolveOracle picks the contract address: explicit argument, or the only
// bound contract on the chain.
func resolveOracle(a *app, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	bound := a.gateway.Addresses()
	if len(bound) == 0 {
		return "", fmt.Errorf("no oracle contracts on this chain")
	}
	return bound[0], nil
}

var oracleStateCmd = &cobra.Command{
	Use:   "state [address]",
	Short: "Show an oracle's current state",
	Long: `Read an oracle contract's state: latest value, update cadence and
response requirements. Served from a short-lived cache when fresh.

Examples:
  oracular oracle state
  oracular oracle state 0xabc... --network sepolia`,
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

		sp := ui.NewSpinner("reading oracle state…")
		sp.Start()
		state, err := a.gateway.OracleState(ctx, address)
		sp.Stop()
		if err != nil {
			return err
		}

		lastUpdate := "never"
		if !state.LastUpdate.IsZero() {
			lastUpdate = state.LastUpdate.Format(time.RFC3339)
		}
		fmt.Println(ui.KeyValueBlock("Oracle · "+ui.TruncateAddr(address), [][2]string{
			{"Latest value", state.LatestValue},
			{"Last update", lastUpdate},
			{"Update count", strconv.FormatUint(state.UpdateCount, 10)},
			{"Min responses", strconv.FormatUint(state.MinResponses, 10)},
			{"Update interval", state.UpdateInterval.String()},
			{"Deviation threshold", fmt.Sprintf("%.2f%%", state.DeviationThreshold*100)},
		}))
		return nil
	},
}

var (
	submitQueryID string
	submitSources uint64
)

var oracleSubmitCmd = &cobra.Command{
	Use:   "submit [address]",
	Short: "Submit a data request",
	Long: `Submit a data request transaction to an oracle contract and wait for
it to confirm. Transient submission failures are retried automatically.

Examples:
  oracular oracle submit --query 0x6c75... --sources 3
  oracular oracle submit 0xabc... --query 0x6c75... --sources 5`,
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

		sp := ui.NewSpinner("submitting data request…")
		sp.Start()
		result, err := a.gateway.SubmitDataRequest(ctx, address, gateway.RequestParams{
			QueryID:     submitQueryID,
			SourceCount: submitSources,
		})
		sp.Stop()
		if err != nil {
			return err
		}

		fmt.Println(ui.Success("Request confirmed"))
		fmt.Println(ui.Meta("  tx:         ") + ui.Addr(result.Hash))
		if result.RequestID != "" {
			fmt.Println(ui.Meta("  request id: ") + ui.Addr(result.RequestID))
		}
		fmt.Println(ui.Meta("  gas used:   ") + fmt.Sprintf("%d", result.Receipt.GasUsed))
		return nil
	},
}

var oracleStatusCmd = &cobra.Command{
	Use:   "status <request-id> [address]",
	Short: "Check a submitted request",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := connectedApp(ctx)
		if err != nil {
			return err
		}
		address, err := resolveOracle(a, args[1:])
		if err != nil {
			return err
		}

		status, err := a.gateway.RequestStatus(ctx, address, args[0])
		if err != nil {
			return err
		}

		if !status.Completed {
			fmt.Println(ui.Warn("Request pending"))
			return nil
		}
		if status.Err != "" {
			fmt.Println(ui.Err("Request failed: " + status.Err))
			return nil
		}
		fmt.Println(ui.Success("Request fulfilled"))
		fmt.Println(ui.Meta("  value: ") + ui.Val(status.Value))
		fmt.Println(ui.Meta("  at:    ") + status.Timestamp.Format(time.RFC3339))
		return nil
	},
}

var (
	historyFrom uint64
	historyTo   uint64
)

var oracleHistoryCmd = &cobra.Command{
	Use:   "history [address]",
	Short: "Show historical oracle updates",
	Long: `Query ValueUpdated events in a block range.

Examples:
  oracular oracle history --from 18000000 --to 18001000
  oracular oracle history 0xabc... --from 18000000 --to 18001000`,
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

		sp := ui.NewSpinner("querying events…")
		sp.Start()
		points, err := a.gateway.HistoricalData(ctx, address, historyFrom, historyTo)
		sp.Stop()
		if err != nil {
			return err
		}
		if len(points) == 0 {
			fmt.Println(ui.Meta("no updates in range"))
			return nil
		}

		t := ui.NewTable([]ui.Column{
			{Title: "When", Width: 20},
			{Title: "Value", Width: 24},
			{Title: "Source", Width: 14},
			{Title: "Tx", Width: 14},
		})
		for _, p := range points {
			t.AddRow(ui.Row{
				p.Timestamp.Format("2006-01-02 15:04:05"),
				p.Value,
				ui.TruncateAddr(p.Source),
				ui.TruncateAddr(p.TxHash),
			})
		}
		fmt.Println(t.Render())
		fmt.Println(ui.Meta(fmt.Sprintf("%d update(s)", len(points))))
		return nil
	},
}

var oracleCostCmd = &cobra.Command{
	Use:   "cost [address]",
	Short: "Estimate the cost of a data request",
	Args:  cobra.MaximumNArgs(1),
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

		sp := ui.NewSpinner("estimating cost…")
		sp.Start()
		estimate, err := a.gateway.CostEstimate(ctx, address, gateway.RequestParams{
			QueryID:     submitQueryID,
			SourceCount: submitSources,
		})
		sp.Stop()
		if err != nil {
			return err
		}

		currency := a.manager.Network().NativeCurrency
		fmt.Println(ui.KeyValueBlock("Request cost · "+ui.TruncateAddr(address), [][2]string{
			{"Base fee", estimate.BaseFee + " " + currency},
			{"Complexity fee", estimate.ComplexityFee + " " + currency},
			{"Gas", estimate.GasCost + " " + currency},
			{"Total", estimate.TotalCost + " " + currency},
		}))
		return nil
	},
}

func init() {
	oracleSubmitCmd.Flags().StringVar(&submitQueryID, "query", "", "query identifier (bytes32 hex)")
	oracleSubmitCmd.Flags().Uint64Var(&submitSources, "sources", 3, "number of data sources to aggregate")
	_ = oracleSubmitCmd.MarkFlagRequired("query")

	oracleCostCmd.Flags().StringVar(&submitQueryID, "query", "0x00", "query identifier (bytes32 hex)")
	oracleCostCmd.Flags().Uint64Var(&submitSources, "sources", 3, "number of data sources to aggregate")

	oracleHistoryCmd.Flags().Uint64Var(&historyFrom, "from", 0, "start block")
	oracleHistoryCmd.Flags().Uint64Var(&historyTo, "to", 0, "end block")
	_ = oracleHistoryCmd.MarkFlagRequired("from")
	_ = oracleHistoryCmd.MarkFlagRequired("to")

	oracleCmd.AddCommand(oracleStateCmd, oracleSubmitCmd, oracleStatusCmd, oracleHistoryCmd, oracleCostCmd)
}
