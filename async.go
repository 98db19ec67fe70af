// async.go
package rover

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

// asyncCore runs blocking calls on a bounded worker pool on behalf of
// the three async facets below. Offloading a call blocks the caller's
// goroutine only until either the call finishes or ctx is cancelled;
// cancelling ctx unblocks the caller immediately but does not cancel
// the in-flight blocking call, which runs to completion and has its
// result discarded. Grounded on the teacher's SafeSoArmController in
// manager.go (a mutex-guarded wrapper serializing access to one shared
// controller), generalized from a single RPC-shaped call to a general
// blocking-call offload with a concurrency cap.
type asyncCore struct {
	pool  *semaphore.Weighted
	fatal chan error
}

// offload runs fn on the pool, returning its error. If ctx is cancelled
// before a pool slot frees up, offload returns ctx.Err() without
// running fn at all (no blocking call was started, so nothing needs to
// keep running). Once fn has started, cancelling ctx returns ctx.Err()
// to the caller at once; fn keeps its pool slot, runs to completion,
// and its result is discarded. A panic inside fn is recovered,
// reported to the caller as an error, and also pushed onto the pool's
// fatal channel for whatever is supervising the pool via Wait.
func (c *asyncCore) offload(ctx context.Context, fn func() error) error {
	if err := c.pool.Acquire(ctx, 1); err != nil {
		return ctx.Err()
	}

	done := make(chan error, 1)
	go func() {
		defer c.pool.Release(1)
		defer func() {
			if r := recover(); r != nil {
				err := errors.Errorf("async worker panic: %v", r)
				select {
				case c.fatal <- err:
				default:
				}
				done <- err
			}
		}()
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// The call completes regardless; its result is discarded.
		return ctx.Err()
	}
}

// AsyncDriver wraps the facets produced by Rover.Split behind one
// shared pool. Multiple AsyncDrivers built over the same Rover share
// its mutual-exclusion gate; this pool only bounds how many offloaded
// calls may run concurrently across all three facets.
type AsyncDriver struct {
	core   *asyncCore
	Mover  AsyncMover
	Looker AsyncLooker
	Sensor AsyncSensor
}

// NewAsyncDriver wraps the facets produced by Rover.Split. maxInFlight
// bounds how many blocking calls may run concurrently on the pool;
// callers should pick one matching their host's core count.
func NewAsyncDriver(mover Mover, looker Looker, sensor Sensor, maxInFlight int64) *AsyncDriver {
	core := &asyncCore{pool: semaphore.NewWeighted(maxInFlight), fatal: make(chan error, 1)}
	return &AsyncDriver{
		core:   core,
		Mover:  &asyncMover{core: core, m: mover},
		Looker: &asyncLooker{core: core, l: looker},
		Sensor: &asyncSensor{core: core, s: sensor},
	}
}

// Wait blocks until ctx is done (returning nil; this is a normal
// shutdown) or a pool worker panics (returning the panic converted to
// an error). Meant to run alongside the RPC accept loop under a shared
// errgroup.Group so a wedged pool worker surfaces through Server.Serve
// instead of being silently dropped.
func (d *AsyncDriver) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-d.core.fatal:
		return err
	}
}

// AsyncMover is the cooperative-caller-facing Mover.
type AsyncMover interface {
	Stop(ctx context.Context) error
	MoveForward(ctx context.Context, speed uint8) error
	MoveBackward(ctx context.Context, speed uint8) error
	SpinRight(ctx context.Context, speed uint8) error
	SpinLeft(ctx context.Context, speed uint8) error
	GetMoveDirection(ctx context.Context) (MoveDirection, error)
	Reset(ctx context.Context) error
}

type asyncMover struct {
	core *asyncCore
	m    Mover
}

func (a *asyncMover) Stop(ctx context.Context) error {
	return a.core.offload(ctx, a.m.Stop)
}

func (a *asyncMover) MoveForward(ctx context.Context, speed uint8) error {
	return a.core.offload(ctx, func() error { return a.m.MoveForward(speed) })
}

func (a *asyncMover) MoveBackward(ctx context.Context, speed uint8) error {
	return a.core.offload(ctx, func() error { return a.m.MoveBackward(speed) })
}

func (a *asyncMover) SpinRight(ctx context.Context, speed uint8) error {
	return a.core.offload(ctx, func() error { return a.m.SpinRight(speed) })
}

func (a *asyncMover) SpinLeft(ctx context.Context, speed uint8) error {
	return a.core.offload(ctx, func() error { return a.m.SpinLeft(speed) })
}

func (a *asyncMover) GetMoveDirection(ctx context.Context) (MoveDirection, error) {
	var dir MoveDirection
	err := a.core.offload(ctx, func() error {
		dir = a.m.GetMoveDirection()
		return nil
	})
	return dir, err
}

func (a *asyncMover) Reset(ctx context.Context) error {
	return a.core.offload(ctx, a.m.Reset)
}

// AsyncLooker is the cooperative-caller-facing Looker.
type AsyncLooker interface {
	LookAt(ctx context.Context, horizontalDeg, verticalDeg float64) (LookDirection, error)
	GetLookDirection(ctx context.Context) (LookDirection, error)
	Reset(ctx context.Context) error
}

type asyncLooker struct {
	core *asyncCore
	l    Looker
}

func (a *asyncLooker) LookAt(ctx context.Context, h, v float64) (LookDirection, error) {
	var dir LookDirection
	err := a.core.offload(ctx, func() error {
		var innerErr error
		dir, innerErr = a.l.LookAt(h, v)
		return innerErr
	})
	return dir, err
}

func (a *asyncLooker) GetLookDirection(ctx context.Context) (LookDirection, error) {
	var dir LookDirection
	err := a.core.offload(ctx, func() error {
		dir = a.l.GetLookDirection()
		return nil
	})
	return dir, err
}

func (a *asyncLooker) Reset(ctx context.Context) error {
	return a.core.offload(ctx, a.l.Reset)
}

// AsyncSensor is the cooperative-caller-facing Sensor.
type AsyncSensor interface {
	GetObstacles(ctx context.Context) ([2]bool, error)
	GetLines(ctx context.Context) ([2]bool, error)
	ScanDistance(ctx context.Context) (float32, error)
	Reset(ctx context.Context) error
}

type asyncSensor struct {
	core *asyncCore
	s    Sensor
}

func (a *asyncSensor) GetObstacles(ctx context.Context) ([2]bool, error) {
	var out [2]bool
	err := a.core.offload(ctx, func() error {
		var innerErr error
		out, innerErr = a.s.GetObstacles()
		return innerErr
	})
	return out, err
}

func (a *asyncSensor) GetLines(ctx context.Context) ([2]bool, error) {
	var out [2]bool
	err := a.core.offload(ctx, func() error {
		var innerErr error
		out, innerErr = a.s.GetLines()
		return innerErr
	})
	return out, err
}

func (a *asyncSensor) ScanDistance(ctx context.Context) (float32, error) {
	var out float32
	err := a.core.offload(ctx, func() error {
		var innerErr error
		out, innerErr = a.s.ScanDistance()
		return innerErr
	})
	return out, err
}

func (a *asyncSensor) Reset(ctx context.Context) error {
	return a.core.offload(ctx, a.s.Reset)
}
