package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/greyhatharold/oracular/internal/config"
	"github.com/greyhatharold/oracular/internal/ui"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Manage networks",
}

var networkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all supported chains",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := wireApp()
		if err != nil {
			return err
		}

		t := ui.NewTable([]ui.Column{
			{Title: "#", Width: 3},
			{Title: "Name", Width: 12},
			{Title: "Display", Width: 20},
			{Title: "Chain ID", Width: 10},
			{Title: "Currency", Width: 10},
			{Title: "Confirmations", Width: 14},
		})
		for i, c := range a.reg.All() {
			t.AddRow(ui.Row{
				fmt.Sprintf("%d", i+1),
				c.Name,
				c.DisplayName,
				fmt.Sprintf("%d", c.ChainID),
				c.NativeCurrency,
				fmt.Sprintf("%d", c.Confirmations),
			})
		}
		fmt.Println(t.Render())
		fmt.Println(ui.Meta(fmt.Sprintf("%d chains total", len(a.reg.All()))))
		return nil
	},
}

var networkUseCmd = &cobra.Command{
	Use:   "use <chain>",
	Short: "Set the default network",
	Long: `Set the default chain and persist it to config.

Examples:
  oracular network use base
  oracular network use sepolia`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := wireApp()
		if err != nil {
			return err
		}
		chainName := args[0]
		if _, err := a.reg.GetByName(chainName); err != nil {
			return fmt.Errorf("unknown chain %q — run `oracular network list` to see all chains", chainName)
		}

		cfg.DefaultNetwork = chainName
		if err := config.Save(cfg); err != nil {
			return err
		}
		fmt.Println(ui.Success("Default network set to " + ui.ChainName(chainName)))
		return nil
	},
}

var networkSwitchCmd = &cobra.Command{
	Use:   "switch <chain>",
	Short: "Switch the connected session to another chain",
	Long: `Switch the active session to another chain.

Requires a connected session. Chains the provider does not know yet are
added from static configuration automatically.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := wireApp()
		if err != nil {
			return err
		}
		ctx := context.Background()

		target, err := a.reg.GetByName(args[0])
		if err != nil {
			return fmt.Errorf("unknown chain %q — run `oracular network list` to see all chains", args[0])
		}

		if err := a.manager.Initialize(ctx); err != nil {
			return err
		}
		if ok, err := a.manager.Connect(ctx, false); err != nil || !ok {
			if err != nil {
				return err
			}
			return fmt.Errorf("no active session — run `oracular connect` first")
		}

		if err := a.manager.SwitchNetwork(ctx, target.ChainID); err != nil {
			return err
		}
		fmt.Println(ui.Success("Switched to " + ui.ChainName(target.DisplayName)))
		return nil
	},
}

func init() {
	networkCmd.AddCommand(networkListCmd, networkUseCmd, networkSwitchCmd)
}
