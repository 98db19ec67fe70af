// server.go
package rpc

import (
	"bufio"
	"context"
	"net"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	rover "rpi-rover"
)

// Supervised is implemented by background work that should be
// cancelled and reported alongside the accept loop under Serve's
// errgroup.Group — in practice, an AsyncDriver's worker pool.
type Supervised interface {
	Wait(ctx context.Context) error
}

// Server accepts one TCP connection at a time, decodes framed
// messages, dispatches to whichever of Mover/Looker/Sensor is
// registered, and writes responses back in strict request order.
// Capabilities are fixed at construction for the process lifetime; a
// nil capability answers every request addressed to it with
// "Unsupported operation" without touching hardware.
type Server struct {
	mover  rover.AsyncMover
	looker rover.AsyncLooker
	sensor rover.AsyncSensor
	logger *zap.Logger
	pool   Supervised

	mu       sync.Mutex // only one connection is served at a time
	listener net.Listener
}

// NewServer registers the capabilities to dispatch to. Any of them may
// be nil. pool is optional (pass none, or nil explicitly); when given,
// Serve supervises it alongside the accept loop under one
// errgroup.Group, so a pool-worker panic surfaces through Serve's
// return instead of going unnoticed.
func NewServer(mover rover.AsyncMover, looker rover.AsyncLooker, sensor rover.AsyncSensor, logger *zap.Logger, pool ...Supervised) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	var p Supervised
	if len(pool) > 0 {
		p = pool[0]
	}
	return &Server{mover: mover, looker: looker, sensor: sensor, logger: logger, pool: p}
}

// Serve listens on addr and serves connections one at a time until ctx
// is cancelled, the listener errors, or the supervised pool reports a
// fatal error. The accept loop, the listener-close-on-cancel watcher,
// and the pool (if any) all run under one errgroup.Group, so the first
// of them to fail cancels the group's derived context and its error is
// returned from Serve.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		ln.Close()
		return nil
	})
	if s.pool != nil {
		g.Go(func() error { return s.pool.Wait(gctx) })
	}
	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-gctx.Done():
					return nil
				default:
					return err
				}
			}
			s.serveOne(gctx, conn)
		}
	})
	return g.Wait()
}

// serveOne handles exactly one connection end to end, holding mu for
// its entire lifetime so a second connection cannot interleave; this
// server never fans in multiple simultaneous clients.
func (s *Server) serveOne(ctx context.Context, conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer conn.Close()

	s.logger.Info("client connected", zap.String("remote", conn.RemoteAddr().String()))
	s.resetAll(ctx, "connect")
	defer s.resetAll(context.Background(), "disconnect")

	reader := bufio.NewReader(conn)
	for {
		req, err := ReadMessage(reader)
		if err != nil {
			s.logger.Info("client disconnected", zap.Error(err))
			return
		}
		resp := s.dispatch(ctx, req)
		if resp == nil {
			continue
		}
		if err := WriteMessage(conn, resp); err != nil {
			s.logger.Warn("write response failed, dropping connection", zap.Error(err))
			return
		}
	}
}

func (s *Server) resetAll(ctx context.Context, why string) {
	if s.mover != nil {
		if err := s.mover.Reset(ctx); err != nil {
			s.logger.Warn("mover reset failed", zap.String("why", why), zap.Error(err))
		}
	}
	if s.looker != nil {
		if err := s.looker.Reset(ctx); err != nil {
			s.logger.Warn("looker reset failed", zap.String("why", why), zap.Error(err))
		}
	}
	if s.sensor != nil {
		if err := s.sensor.Reset(ctx); err != nil {
			s.logger.Warn("sensor reset failed", zap.String("why", why), zap.Error(err))
		}
	}
}

const unsupportedMsg = "Unsupported operation."

// dispatch runs one request to completion and returns its reply. Every
// branch is synchronous with respect to the caller, so replies are
// naturally written in request order without any extra bookkeeping.
func (s *Server) dispatch(ctx context.Context, req Message) Message {
	switch m := req.(type) {
	case MoveRequest:
		if s.mover == nil {
			return Failure(unsupportedMsg)
		}
		return Status(s.dispatchMove(ctx, m))

	case LookRequest:
		if s.looker == nil {
			return Failure(unsupportedMsg)
		}
		_, err := s.looker.LookAt(ctx, float64(m.H), float64(m.V))
		return Status(err)

	case LookDirectionRequest:
		if s.looker == nil {
			return Failure(unsupportedMsg)
		}
		dir, err := s.looker.GetLookDirection(ctx)
		if err != nil {
			return Failure(err.Error())
		}
		return LookDirectionResponse{H: float32(dir.HorizontalDeg), V: float32(dir.VerticalDeg)}

	case SenseRequest:
		if s.sensor == nil {
			return Failure(unsupportedMsg)
		}
		return s.dispatchSense(ctx, m.What)

	default:
		return Failure(unsupportedMsg)
	}
}

func (s *Server) dispatchMove(ctx context.Context, m MoveRequest) error {
	switch m.Kind {
	case MoveForward:
		return s.mover.MoveForward(ctx, m.Speed)
	case MoveBackward:
		return s.mover.MoveBackward(ctx, m.Speed)
	case MoveSpinCW:
		return s.mover.SpinRight(ctx, m.Speed)
	case MoveSpinCCW:
		return s.mover.SpinLeft(ctx, m.Speed)
	default:
		return errUnsupportedMove
	}
}

func (s *Server) dispatchSense(ctx context.Context, what SenseKind) Message {
	switch what {
	case SenseObstacle:
		vals, err := s.sensor.GetObstacles(ctx)
		if err != nil {
			return Failure(err.Error())
		}
		return SenseResponse{Kind: SenseObstacle, Bools: vals}
	case SenseLine:
		vals, err := s.sensor.GetLines(ctx)
		if err != nil {
			return Failure(err.Error())
		}
		return SenseResponse{Kind: SenseLine, Bools: vals}
	case SenseDistance:
		d, err := s.sensor.ScanDistance(ctx)
		if err != nil {
			return Failure(err.Error())
		}
		return SenseResponse{Kind: SenseDistance, DistanceMM: d}
	default:
		return Failure(unsupportedMsg)
	}
}

// Status turns err into the StatusResponse the dispatch table expects
// for commands with no value payload of their own.
func Status(err error) StatusResponse {
	if err != nil {
		return Failure(err.Error())
	}
	return Success()
}

var errUnsupportedMove = errUnsupported("move kind")

type errUnsupported string

func (e errUnsupported) Error() string { return "unsupported " + string(e) }
