package adb

import (
	"context"
	"log/slog"
	"time"

	"github.com/badkiko/y2m/internal/model"
)

// DeviceLister supplies the devices carrying bridge connection parameters.
type DeviceLister interface {
	DevicesWithADB(ctx context.Context) ([]model.Device, error)
}

// Pool periodically (re)establishes the bridge connection for every device
// with stored host/port. It shares no mutable state with other tasks beyond
// the persistent store.
type Pool struct {
	store    DeviceLister
	runner   *Runner
	interval time.Duration
	sweepCh  chan struct{}
	logger   *slog.Logger
}

func NewPool(store DeviceLister, runner *Runner, interval time.Duration, logger *slog.Logger) *Pool {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Pool{store: store, runner: runner, interval: interval, sweepCh: make(chan struct{}, 1), logger: logger}
}

// TriggerSweep requests an immediate sweep without waiting for the interval.
func (p *Pool) TriggerSweep() {
	select {
	case p.sweepCh <- struct{}{}:
	default:
	}
}

// Run loops until the context is cancelled.
func (p *Pool) Run(ctx context.Context) {
	for {
		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-p.sweepCh:
			timer.Stop()
		case <-timer.C:
		}
		p.sweepOnce(ctx)
	}
}

func (p *Pool) sweepOnce(ctx context.Context) {
	devices, err := p.store.DevicesWithADB(ctx)
	if err != nil {
		p.logger.Error("autoconnect sweep failed to list devices", "err", err)
		return
	}
	for _, device := range devices {
		if ctx.Err() != nil {
			return
		}
		result, err := p.runner.Connect(ctx, *device.ADBHost, *device.ADBPort)
		if err != nil {
			p.logger.Warn("adb connect failed to start", "device", device.ID, "err", err)
			continue
		}
		if result.ExitCode != 0 || result.TimedOut {
			p.logger.Warn("adb connect failed",
				"device", device.ID, "host", *device.ADBHost, "port", *device.ADBPort,
				"detail", result.FailureMessage())
			continue
		}
		p.logger.Debug("adb connected", "device", device.ID, "host", *device.ADBHost, "port", *device.ADBPort)
	}
}
