// Command pollfulfiller runs the sliding-window poll scanner against one
// coordinator contract, dispatching fulfillRandomWords calls for pending
// randomness requests. It is derived from cmd/kcn/main.go's cli.v1 app
// shape, trimmed to the --dotenv and --catchup flags this service needs.
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

var logger = ethlog.New("module", "cmd/pollfulfiller")

var (
	dotenvFlag = cli.StringFlag{
		Name:  "dotenv",
		Usage: "path to a .env configuration file",
		Value: ".env",
	}
	catchupFlag = cli.BoolFlag{
		Name:  "catchup",
		Usage: "widen the bootstrap lookback window to recover from an extended outage",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "pollfulfiller"
	app.Usage = "poll-based VRF fulfillment service"
	app.Flags = []cli.Flag{dotenvFlag, catchupFlag}
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

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	coord, err := vrfabi.Load(cfg.UseVRFV25)
	if err != nil {
		return fmt.Errorf("vrfabi: %w", err)
	}
	decoder := vrfabi.NewDecoder(coord)

	endpoints := cfg.Endpoints()
	if len(endpoints) == 0 {
		return fmt.Errorf("config: no RPC endpoints configured for chain %d", cfg.ChainID)
	}

	clients := make([]*chain.Client, 0, len(endpoints))
	senders := make([]vrf.Sender, 0, len(endpoints))
	for _, ep := range endpoints {
		cl, err := chain.Dial(ctx, ep, cfg.SuppressPatterns...)
		if err != nil {
			return fmt.Errorf("dial %s: %w", ep, err)
		}
		clients = append(clients, cl)
		senders = append(senders, cl)
	}
	primary := clients[0]

	builder := vrf.NewBuilder(cfg.ChainID, cfg.ChainConfig().LegacyGas, cfg.VRFAddress, coord, cfg.PrivateKey)
	dispatcher := vrf.NewDispatcher(senders)
	dedup := vrf.NewFulfilledIDs(0)

	startNonce, err := primary.GetTransactionCount(ctx, cfg.Address())
	if err != nil {
		return fmt.Errorf("fetching starting nonce: %w", err)
	}
	ledger := vrf.NewNonceLedger(startNonce)

	alerts := alertsink.New(cfg.AlertHookURL)
	fulfillments := alertsink.New(cfg.FulfillmentHookURL)

	nonceSource := primary.BoundNonceSource(cfg.Address())
	pool := engine.NewWorkerPool(ledger, nonceSource, builder, dispatcher, primary, alerts, fulfillments, cfg.MaxGasGwei)

	scanner := engine.NewPollScanner(
		primary, decoder, dedup, pool, alerts,
		cfg.VRFAddress, decoder.Topics(), cfg.DelayBlocks, cfg.PollDelay(), c.Bool(catchupFlag.Name),
		cfg.UseVRFV25, cfg.SuppressPatterns,
	)

	supervisor := engine.NewSupervisor(scanner, pool, alerts, cfg.ChainID, builder.Address(), cfg.VRFAddress, cfg.DelayBlocks)
	return supervisor.Run(ctx)
}
