package engine

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/klaytn/vrf-fulfiller/alertsink"
)

// Scanner is either a PollScanner or a SubscribeScanner: whichever drives
// this instance's event intake.
type Scanner interface {
	Run(ctx context.Context) error
}

// Pool is the subset of WorkerPool the supervisor drives directly.
type Pool interface {
	Start(ctx context.Context)
	Stop()
}

// Supervisor owns the scanner and worker pool for one instance, reports a
// startup banner, and restarts the scanner on any error instead of letting
// the process die.
type Supervisor struct {
	scanner Scanner
	pool    Pool
	alerts  *alertsink.Sink

	chainID         int64
	fulfillerAddr   common.Address
	coordinatorAddr common.Address
	delayBlocks     uint64
}

// NewSupervisor builds a Supervisor.
func NewSupervisor(scanner Scanner, pool Pool, alerts *alertsink.Sink, chainID int64, fulfiller, coordinator common.Address, delayBlocks uint64) *Supervisor {
	return &Supervisor{
		scanner:         scanner,
		pool:            pool,
		alerts:          alerts,
		chainID:         chainID,
		fulfillerAddr:   fulfiller,
		coordinatorAddr: coordinator,
		delayBlocks:     delayBlocks,
	}
}

func (s *Supervisor) mode() string {
	if s.delayBlocks > 0 {
		return "backup"
	}
	return "primary"
}

// banner returns the human-readable startup banner reporting chain id,
// fulfiller address, coordinator address, and delay_blocks.
func (s *Supervisor) banner() string {
	return fmt.Sprintf(
		"vrf fulfiller starting: chain=%d mode=%s fulfiller=%s coordinator=%s delay_blocks=%d",
		s.chainID, s.mode(), s.fulfillerAddr.Hex(), s.coordinatorAddr.Hex(), s.delayBlocks,
	)
}

// Run prints the startup banner, starts the worker pool, and runs the
// scanner until ctx is cancelled. Shutdown is wait-forever: the process is
// terminated externally, and a panic inside the scanner is converted into
// a logged alert and a restart rather than a crash.
func (s *Supervisor) Run(ctx context.Context) error {
	s.alerts.Send(ctx, s.banner(), nil)
	logger.Info("supervisor starting", "chain_id", s.chainID, "mode", s.mode())

	s.pool.Start(ctx)
	defer s.pool.Stop()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.runScannerGuarded(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.alerts.Send(ctx, "scanner exited, restarting", map[string]interface{}{"err": err.Error()})
			continue
		}
	}
}

// runScannerGuarded runs the scanner and recovers a panic into an error, so
// a single bad log or transient bug in the scan loop cannot bring down the
// whole process.
func (s *Supervisor) runScannerGuarded(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("vrf: scanner panic: %v", r)
		}
	}()
	return s.scanner.Run(ctx)
}
