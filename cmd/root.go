package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/greyhatharold/oracular/internal/config"
)

// Version is the current release. Overridable via build ldflags:
//
//	go build -ldflags "-X github.com/greyhatharold/oracular/cmd.Version=1.2.3" .
var Version = "1.0.0"

var (
	cfg         *config.Config
	flagNetwork string
	verbose     bool
)

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:   "oracular",
	Short: "Oracle network dashboard",
	Long: `oracular — terminal dashboard for oracle contracts.

  Connect a local wallet, switch networks, watch gas prices, query and
  submit oracle data requests, and stream contract events live.

The active network comes from --network, falling back to the configured
default. Persist a default with: oracular network use <chain>`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		var err error
		cfg, err = config.Load(viper.New())
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagNetwork, "network", "", "chain to use (default: configured network)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		connectCmd,
		disconnectCmd,
		statusCmd,
		networkCmd,
		gasCmd,
		oracleCmd,
		watchCmd,
	)
}
