package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/greyhatharold/oracular/internal/session"
	"github.com/greyhatharold/oracular/internal/ui"
)

var connectForceNew bool

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect the local wallet",
	Long: `Connect the local wallet and persist the session.

The signing key comes from the ` + privateKeyEnv + ` environment variable and
is held in the OS keychain. A previously connected session is restored
automatically; use --force-new to discard it and connect fresh.

Examples:
  oracular connect
  oracular connect --network sepolia
  oracular connect --force-new`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := wireApp()
		if err != nil {
			return err
		}
		ctx := context.Background()

		if err := a.manager.Initialize(ctx); err != nil {
			return err
		}

		ok, err := a.manager.Connect(ctx, connectForceNew)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println(ui.Err("Connection failed — set " + privateKeyEnv + " with a signing key"))
			return nil
		}

		network := a.manager.Network()
		networkName := "unknown"
		if network != nil {
			networkName = network.DisplayName
		}
		fmt.Println(ui.Success("Connected " + ui.TruncateAddr(a.manager.Account())))
		fmt.Println(ui.Meta("  network: ") + ui.ChainName(networkName))
		return nil
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Disconnect and clear the persisted session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := wireApp()
		if err != nil {
			return err
		}
		ctx := context.Background()

		if err := a.manager.Initialize(ctx); err != nil {
			return err
		}
		a.manager.Disconnect()
		fmt.Println(ui.Success("Disconnected"))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := wireApp()
		if err != nil {
			return err
		}
		ctx := context.Background()

		if err := a.manager.Initialize(ctx); err != nil {
			return err
		}

		state := a.manager.State()
		pairs := [][2]string{
			{"State", state.String()},
		}
		if state == session.Connected {
			networkName := "unsupported"
			if network := a.manager.Network(); network != nil {
				networkName = network.DisplayName
			}
			pairs = append(pairs,
				[2]string{"Account", a.manager.Account()},
				[2]string{"Network", networkName},
				[2]string{"Chain ID", fmt.Sprintf("%d", a.manager.ChainID())},
			)
		}
		fmt.Println(ui.KeyValueBlock("Session", pairs))
		return nil
	},
}

func init() {
	connectCmd.Flags().BoolVar(&connectForceNew, "force-new", false, "discard the persisted session before connecting")
}
