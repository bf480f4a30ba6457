package cmd

import (
	"fmt"
	"os"

	"github.com/greyhatharold/oracular/internal/chain"
	"github.com/greyhatharold/oracular/internal/event"
	"github.com/greyhatharold/oracular/internal/gateway"
	"github.com/greyhatharold/oracular/internal/price"
	"github.com/greyhatharold/oracular/internal/provider"
	"github.com/greyhatharold/oracular/internal/session"
	"github.com/greyhatharold/oracular/internal/wallet"
)

// privateKeyEnv names the env var holding the signing key. Keys given this
// way are moved into the OS keychain on first use.
const privateKeyEnv = "ORACULAR_PRIVATE_KEY"

type app struct {
	reg     *chain.Registry
	bus     *event.Bus
	prov    *provider.NodeProvider
	manager *session.Manager
	gateway *gateway.Gateway
}

// wireApp assembles the full dashboard stack for one invocation.
func wireApp() (*app, error) {
	reg := chain.NewRegistry()

	chainName := flagNetwork
	if chainName == "" {
		chainName = cfg.DefaultNetwork
	}
	start, err := reg.GetByName(chainName)
	if err != nil {
		return nil, fmt.Errorf("unknown chain %q — run `oracular network list` to see all chains", chainName)
	}
	applyRPCOverrides(reg)

	ks := wallet.DefaultKeystore()
	var accounts []*wallet.Account
	if hexKey := os.Getenv(privateKeyEnv); hexKey != "" {
		account, err := wallet.AccountFromKey(ks, "default", hexKey)
		if err != nil {
			return nil, fmt.Errorf("importing %s: %w", privateKeyEnv, err)
		}
		accounts = append(accounts, account)
	}

	bus := event.NewBus()
	prov := provider.NewNodeProvider(reg, ks, start, accounts)

	storePath := cfg.SessionPath
	if storePath == "" {
		storePath = session.DefaultStorePath()
	}

	feed := price.NewFetcher(cfg.PriceCurrency)
	if cfg.PriceAPIToken != "" {
		feed.SetAuthToken(cfg.PriceAPIToken)
	}

	manager := session.NewManager(prov, reg, bus,
		session.WithStore(session.NewJSONStore(storePath)),
		session.WithPriceFeed(feed),
		session.WithPollInterval(cfg.GasPollInterval),
	)

	gw := gateway.New(manager, reg, bus)

	return &app{
		reg:     reg,
		bus:     bus,
		prov:    prov,
		manager: manager,
		gateway: gw,
	}, nil
}

// applyRPCOverrides puts any user-configured endpoint first in its chain's
// RPC list.
func applyRPCOverrides(reg *chain.Registry) {
	for name, url := range cfg.RPCOverrides {
		if url == "" {
			continue
		}
		if c, err := reg.GetByName(name); err == nil {
			c.RPCs = append([]string{url}, c.RPCs...)
		}
	}
}
