// Package reaper runs the two background sweeps the relay needs
// without any client driving them: eviction of robots that stop
// sending frames, and eviction of control leases whose owner has
// gone idle. Grounded on the teacher's safety.TimeoutWatchdog —
// same ticker-plus-context shape, generalized from a single
// command-timeout check to the registry-wide stale/idle sweeps §4.7
// and §4.3's idle-eviction transition require.
package reaper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fordward/relay/internal/robot"
)

// Broadcaster is the subset of the server's hub-facing API the reaper
// needs to announce what it evicts.
type Broadcaster interface {
	BroadcastRobotOffline(robotID, reason string)
	BroadcastLeaseEvent(robotID string, evt robot.LeaseEvent)
}

// Reaper periodically sweeps the registry for stale robot sessions and
// idle control leases.
type Reaper struct {
	registry     *robot.Registry
	broadcaster  Broadcaster
	logger       *zap.Logger
	robotTimeout time.Duration
	idleTimeout  time.Duration
	staleEvery   time.Duration
	idleEvery    time.Duration
}

func New(reg *robot.Registry, b Broadcaster, logger *zap.Logger, robotTimeout, idleTimeout, staleEvery, idleEvery time.Duration) *Reaper {
	return &Reaper{
		registry:     reg,
		broadcaster:  b,
		logger:       logger,
		robotTimeout: robotTimeout,
		idleTimeout:  idleTimeout,
		staleEvery:   staleEvery,
		idleEvery:    idleEvery,
	}
}

// Run blocks, driving both sweeps until ctx is cancelled. Call it in
// its own goroutine.
func (r *Reaper) Run(ctx context.Context) {
	staleTicker := time.NewTicker(r.staleEvery)
	idleTicker := time.NewTicker(r.idleEvery)
	defer staleTicker.Stop()
	defer idleTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-staleTicker.C:
			r.sweepStale(now)
		case now := <-idleTicker.C:
			r.sweepIdle(now)
		}
	}
}

// sweepStale evicts robots whose LastSeenAt has exceeded robotTimeout
// — they sent no frame in that time and are presumed disconnected even
// if their socket never errored.
func (r *Reaper) sweepStale(now time.Time) {
	for _, record := range r.registry.Records() {
		if !record.IsStale(r.robotTimeout, now) {
			continue
		}
		if !r.registry.RemoveRobot(record.ID, record) {
			continue
		}
		record.Close()
		r.logger.Info("reaped stale robot session", zap.String("robot_id", record.ID))
		r.broadcaster.BroadcastRobotOffline(record.ID, "timeout")
	}
}

// sweepIdle evicts control leases whose owner has sent no motion
// command for idleTimeout, per §4.3's idle-eviction transition.
func (r *Reaper) sweepIdle(now time.Time) {
	for _, record := range r.registry.Records() {
		evt, ok := record.CheckIdleEviction(r.idleTimeout, now)
		if !ok {
			continue
		}
		r.broadcaster.BroadcastLeaseEvent(record.ID, evt)
	}
}
