package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/greyhatharold/oracular/internal/ui"
)

var gasCmd = &cobra.Command{
	Use:   "gas",
	Short: "Show the current gas price",
	Long: `Fetch the current gas price on the active chain.

Shows wei, gwei and a best-effort USD conversion from the configured
price feed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := wireApp()
		if err != nil {
			return err
		}
		ctx := context.Background()

		if err := a.manager.Initialize(ctx); err != nil {
			return err
		}
		if ok, err := a.manager.Connect(ctx, false); err != nil || !ok {
			if err != nil {
				return err
			}
			return fmt.Errorf("no active session — run `oracular connect` first")
		}

		sp := ui.NewSpinner("fetching gas price…")
		sp.Start()
		quote, err := a.manager.GasPrice(ctx)
		sp.Stop()
		if err != nil {
			return err
		}

		networkName := strings.ToUpper(a.manager.Network().NativeCurrency)
		pairs := [][2]string{
			{"Gwei", fmt.Sprintf("%.2f", quote.Gwei)},
			{"Wei", quote.Wei.String()},
		}
		if quote.USD > 0 {
			pairs = append(pairs, [2]string{"USD per 21k gas", fmt.Sprintf("$%.2f", quote.USD*21000)})
		}
		fmt.Println(ui.KeyValueBlock("Gas · "+networkName, pairs))
		return nil
	},
}
