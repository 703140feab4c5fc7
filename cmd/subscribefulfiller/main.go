// Command subscribefulfiller runs the lower-latency WebSocket subscribe
// scanner against one coordinator contract. It shares its config surface
// and wiring shape with cmd/pollfulfiller, substituting the subscribe-mode
// scanner for the poll scanner.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	ethlog "github.com/ethereum/go-ethereum/log"
	"gopkg.in/urfave/cli.v1"

	"github.com/klaytn/vrf-fulfiller/alertsink"
	"github.com/klaytn/vrf-fulfiller/chain"
	"github.com/klaytn/vrf-fulfiller/config"
	"github.com/klaytn/vrf-fulfiller/engine"
	"github.com/klaytn/vrf-fulfiller/vrf"
	"github.com/klaytn/vrf-fulfiller/vrfabi"
)

var logger = ethlog.New("module", "cmd/subscribefulfiller")

var dotenvFlag = cli.StringFlag{
	Name:  "dotenv",
	Usage: "path to a .env configuration file",
	Value: ".env",
}

func main() {
	app := cli.NewApp()
	app.Name = "subscribefulfiller"
	app.Usage = "WebSocket-subscribe VRF fulfillment service"
	app.Flags = []cli.Flag{dotenvFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String(dotenvFlag.Name), config.NewRegistry())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.WSSEndpoint == "" {
		return fmt.Errorf("config: WSS_ENDPOINT is required for subscribe mode")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	coord, err := vrfabi.Load(cfg.UseVRFV25)
	if err != nil {
		return fmt.Errorf("vrfabi: %w", err)
	}
	decoder := vrfabi.NewDecoder(coord)

	wsClient, err := chain.Dial(ctx, cfg.WSSEndpoint, cfg.SuppressPatterns...)
	if err != nil {
		return fmt.Errorf("dial wss: %w", err)
	}

	endpoints := cfg.Endpoints()
	if len(endpoints) == 0 {
		return fmt.Errorf("config: no RPC endpoints configured for chain %d", cfg.ChainID)
	}

	senders := make([]vrf.Sender, 0, len(endpoints))
	for _, ep := range endpoints {
		cl, err := chain.Dial(ctx, ep, cfg.SuppressPatterns...)
		if err != nil {
			return fmt.Errorf("dial %s: %w", ep, err)
		}
		senders = append(senders, cl)
	}

	builder := vrf.NewBuilder(cfg.ChainID, cfg.ChainConfig().LegacyGas, cfg.VRFAddress, coord, cfg.PrivateKey)
	dispatcher := vrf.NewDispatcher(senders)
	dedup := vrf.NewFulfilledIDs(0)

	startNonce, err := wsClient.GetTransactionCount(ctx, cfg.Address())
	if err != nil {
		return fmt.Errorf("fetching starting nonce: %w", err)
	}
	ledger := vrf.NewNonceLedger(startNonce)

	alerts := alertsink.New(cfg.AlertHookURL)
	fulfillments := alertsink.New(cfg.FulfillmentHookURL)

	nonceSource := wsClient.BoundNonceSource(cfg.Address())
	pool := engine.NewWorkerPool(ledger, nonceSource, builder, dispatcher, wsClient, alerts, fulfillments, cfg.MaxGasGwei)

	scanner := engine.NewSubscribeScanner(
		wsClient, decoder, dedup, pool, alerts,
		cfg.VRFAddress, decoder.Topics(), cfg.DelayBlocks,
		cfg.UseVRFV25, cfg.SuppressPatterns,
	)

	supervisor := engine.NewSupervisor(scanner, pool, alerts, cfg.ChainID, builder.Address(), cfg.VRFAddress, cfg.DelayBlocks)
	return supervisor.Run(ctx)
}
