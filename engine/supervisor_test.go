package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/klaytn/vrf-fulfiller/alertsink"
)

type fakeScanner struct {
	calls   int
	panicOn int
	err     error
	onCall  func()
}

func (f *fakeScanner) Run(ctx context.Context) error {
	f.calls++
	if f.onCall != nil {
		f.onCall()
	}
	if f.panicOn > 0 && f.calls == f.panicOn {
		panic("boom")
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return f.err
}

type fakePool struct {
	started, stopped bool
}

func (p *fakePool) Start(ctx context.Context) { p.started = true }
func (p *fakePool) Stop()                     { p.stopped = true }

func TestSupervisorBannerIncludesModeAndAddresses(t *testing.T) {
	s := NewSupervisor(&fakeScanner{}, &fakePool{}, alertsink.New(""), 8453,
		common.HexToAddress("0x01"), common.HexToAddress("0x02"), 20)
	banner := s.banner()
	require.Contains(t, banner, "backup")
	require.Contains(t, banner, "8453")
}

func TestSupervisorPrimaryModeBanner(t *testing.T) {
	s := NewSupervisor(&fakeScanner{}, &fakePool{}, alertsink.New(""), 8453,
		common.HexToAddress("0x01"), common.HexToAddress("0x02"), 0)
	require.Contains(t, s.banner(), "primary")
}

func TestSupervisorRunStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	scanner := &fakeScanner{err: errors.New("transient")}
	pool := &fakePool{}
	s := NewSupervisor(scanner, pool, alertsink.New(""), 8453, common.Address{}, common.Address{}, 0)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	err := <-done
	require.Error(t, err)
	require.True(t, pool.started)
	require.True(t, pool.stopped)
}

func TestSupervisorRecoversScannerPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// The scanner cancels ctx on its first call and then panics, so Run must
	// recover that panic and return on the cancelled ctx.
	scanner := &fakeScanner{panicOn: 1, onCall: cancel}
	pool := &fakePool{}
	s := NewSupervisor(scanner, pool, alertsink.New(""), 8453, common.Address{}, common.Address{}, 0)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	<-done
	require.GreaterOrEqual(t, scanner.calls, 1)
}
