// client.go
package rpc

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync"

	rover "rpi-rover"
)

// clientCore owns the TCP stream and serializes outstanding requests
// on it; no pipelining. Reconnect replaces the stream in place so
// every facet built on the same core picks up the new connection
// automatically.
type clientCore struct {
	mu     sync.Mutex
	addr   string
	conn   net.Conn
	reader *bufio.Reader
}

func dial(addr string) (net.Conn, *bufio.Reader, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	return conn, bufio.NewReader(conn), nil
}

func (c *clientCore) reconnect(addr string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
	conn, reader, err := dial(addr)
	if err != nil {
		return err
	}
	c.addr = addr
	c.conn = conn
	c.reader = reader
	return nil
}

// roundTrip writes req and returns the next inbound message. Disconnects
// and codec failures are mapped to the package's typed errors.
func (c *clientCore) roundTrip(req Message) (Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, &rover.DisconnectedError{}
	}
	if err := WriteMessage(c.conn, req); err != nil {
		return nil, &rover.SerializationError{Err: err}
	}
	resp, err := ReadMessage(c.reader)
	if err != nil {
		if err == io.EOF {
			return nil, &rover.DisconnectedError{}
		}
		return nil, &rover.SerializationError{Err: err}
	}
	return resp, nil
}

func (c *clientCore) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func statusErr(m Message) error {
	s, ok := m.(StatusResponse)
	if !ok {
		return &rover.ProtocolError{Msg: "expected StatusResponse"}
	}
	if !s.OK {
		return &rover.ProtocolError{Msg: s.Message}
	}
	return nil
}

// Client presents the same Mover/Looker/Sensor capability contracts as
// a local AsyncDriver, but round-trips each call over a framed TCP
// connection to a Server. All three facets share one connection and
// one outstanding-request queue.
type Client struct {
	core   *clientCore
	Mover  rover.AsyncMover
	Looker rover.AsyncLooker
	Sensor rover.AsyncSensor
}

// NewClient dials addr and returns a ready Client.
func NewClient(addr string) (*Client, error) {
	conn, reader, err := dial(addr)
	if err != nil {
		return nil, err
	}
	core := &clientCore{addr: addr, conn: conn, reader: reader}
	return &Client{
		core:   core,
		Mover:  &clientMover{core: core},
		Looker: &clientLooker{core: core},
		Sensor: &clientSensor{core: core},
	}, nil
}

// Reconnect closes any existing stream and dials addr anew, replacing
// the client's connection in place.
func (c *Client) Reconnect(addr string) error {
	return c.core.reconnect(addr)
}

// Close shuts down the underlying connection.
func (c *Client) Close() error {
	return c.core.close()
}

type clientMover struct {
	core *clientCore
}

func (c *clientMover) moveCall(kind MoveType, speed uint8) error {
	resp, err := c.core.roundTrip(MoveRequest{Kind: kind, Speed: speed})
	if err != nil {
		return err
	}
	return statusErr(resp)
}

func (c *clientMover) Stop(ctx context.Context) error { return c.moveCall(MoveForward, 0) }

func (c *clientMover) MoveForward(ctx context.Context, speed uint8) error {
	return c.moveCall(MoveForward, speed)
}

func (c *clientMover) MoveBackward(ctx context.Context, speed uint8) error {
	return c.moveCall(MoveBackward, speed)
}

func (c *clientMover) SpinRight(ctx context.Context, speed uint8) error {
	return c.moveCall(MoveSpinCW, speed)
}

func (c *clientMover) SpinLeft(ctx context.Context, speed uint8) error {
	return c.moveCall(MoveSpinCCW, speed)
}

// GetMoveDirection has no wire request of its own; the dispatch table
// only names a LookDirectionRequest counterpart, so the protocol
// simply doesn't expose it remotely.
func (c *clientMover) GetMoveDirection(ctx context.Context) (rover.MoveDirection, error) {
	return rover.MoveDirection{}, &rover.ProtocolError{Msg: "get_move_direction has no RPC equivalent"}
}

func (c *clientMover) Reset(ctx context.Context) error { return c.Stop(ctx) }

type clientLooker struct {
	core *clientCore
}

func (c *clientLooker) LookAt(ctx context.Context, h, v float64) (rover.LookDirection, error) {
	resp, err := c.core.roundTrip(LookRequest{H: float32(h), V: float32(v)})
	if err != nil {
		return rover.LookDirection{}, err
	}
	if err := statusErr(resp); err != nil {
		return rover.LookDirection{}, err
	}
	return rover.LookDirection{HorizontalDeg: h, VerticalDeg: v}, nil
}

func (c *clientLooker) GetLookDirection(ctx context.Context) (rover.LookDirection, error) {
	resp, err := c.core.roundTrip(LookDirectionRequest{})
	if err != nil {
		return rover.LookDirection{}, err
	}
	ld, ok := resp.(LookDirectionResponse)
	if !ok {
		return rover.LookDirection{}, &rover.ProtocolError{Msg: "expected LookDirectionResponse"}
	}
	return rover.LookDirection{HorizontalDeg: float64(ld.H), VerticalDeg: float64(ld.V)}, nil
}

func (c *clientLooker) Reset(ctx context.Context) error {
	_, err := c.LookAt(ctx, 0, 0)
	return err
}

type clientSensor struct {
	core *clientCore
}

func (c *clientSensor) senseCall(kind SenseKind) (SenseResponse, error) {
	resp, err := c.core.roundTrip(SenseRequest{What: kind})
	if err != nil {
		return SenseResponse{}, err
	}
	if s, ok := resp.(StatusResponse); ok {
		return SenseResponse{}, &rover.ProtocolError{Msg: s.Message}
	}
	sr, ok := resp.(SenseResponse)
	if !ok {
		return SenseResponse{}, &rover.ProtocolError{Msg: "expected SenseResponse"}
	}
	return sr, nil
}

func (c *clientSensor) GetObstacles(ctx context.Context) ([2]bool, error) {
	sr, err := c.senseCall(SenseObstacle)
	return sr.Bools, err
}

func (c *clientSensor) GetLines(ctx context.Context) ([2]bool, error) {
	sr, err := c.senseCall(SenseLine)
	return sr.Bools, err
}

func (c *clientSensor) ScanDistance(ctx context.Context) (float32, error) {
	sr, err := c.senseCall(SenseDistance)
	return sr.DistanceMM, err
}

// Reset has no dedicated wire request; a remote sensor has no actuator
// state to clear, matching the local sensorImpl's own no-op Reset.
func (c *clientSensor) Reset(ctx context.Context) error { return nil }
