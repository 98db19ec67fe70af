// server_test.go
package rpc

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	rover "rpi-rover"
)

type recordingMover struct {
	mu        sync.Mutex
	calls     []string
	resets    int
}

func (m *recordingMover) record(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, s)
}

func (m *recordingMover) Stop(ctx context.Context) error { m.record("stop"); return nil }
func (m *recordingMover) MoveForward(ctx context.Context, speed uint8) error {
	m.record("forward")
	return nil
}
func (m *recordingMover) MoveBackward(ctx context.Context, speed uint8) error {
	m.record("backward")
	return nil
}
func (m *recordingMover) SpinRight(ctx context.Context, speed uint8) error {
	m.record("spin_right")
	return nil
}
func (m *recordingMover) SpinLeft(ctx context.Context, speed uint8) error {
	m.record("spin_left")
	return nil
}
func (m *recordingMover) GetMoveDirection(ctx context.Context) (rover.MoveDirection, error) {
	return rover.MoveDirection{}, nil
}
func (m *recordingMover) Reset(ctx context.Context) error {
	m.mu.Lock()
	m.resets++
	m.mu.Unlock()
	return nil
}

type fixedSensor struct {
	distance float32
}

func (s *fixedSensor) GetObstacles(ctx context.Context) ([2]bool, error) { return [2]bool{}, nil }
func (s *fixedSensor) GetLines(ctx context.Context) ([2]bool, error)     { return [2]bool{}, nil }
func (s *fixedSensor) ScanDistance(ctx context.Context) (float32, error) { return s.distance, nil }
func (s *fixedSensor) Reset(ctx context.Context) error                  { return nil }

func startTestServer(t *testing.T, mover rover.AsyncMover, looker rover.AsyncLooker, sensor rover.AsyncSensor) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := NewServer(mover, looker, sensor, nil)
	server.listener = ln
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go server.serveOne(ctx, conn)
		}
	}()

	return ln.Addr().String(), func() {
		cancel()
		ln.Close()
	}
}

func TestServerOrdering(t *testing.T) {
	mover := &recordingMover{}
	addr, stop := startTestServer(t, mover, nil, nil)
	defer stop()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	reader := bufio.NewReader(conn)

	requests := []MoveRequest{
		{Kind: MoveForward, Speed: 100},
		{Kind: MoveSpinCW, Speed: 50},
		{Kind: MoveBackward, Speed: 10},
	}
	for _, r := range requests {
		if err := WriteMessage(conn, r); err != nil {
			t.Fatalf("write: %v", err)
		}
		resp, err := ReadMessage(reader)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		s, ok := resp.(StatusResponse)
		if !ok || !s.OK {
			t.Fatalf("expected success, got %+v", resp)
		}
	}

	mover.mu.Lock()
	defer mover.mu.Unlock()
	want := []string{"forward", "spin_right", "backward"}
	if len(mover.calls) != len(want) {
		t.Fatalf("expected %d calls, got %v", len(want), mover.calls)
	}
	for i, w := range want {
		if mover.calls[i] != w {
			t.Errorf("call %d: got %q want %q", i, mover.calls[i], w)
		}
	}
}

func TestServerResetsOnConnectAndDisconnect(t *testing.T) {
	mover := &recordingMover{}
	addr, stop := startTestServer(t, mover, nil, nil)
	defer stop()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	reader := bufio.NewReader(conn)
	_ = reader

	time.Sleep(20 * time.Millisecond) // allow connect-time reset to run
	mover.mu.Lock()
	resetsAfterConnect := mover.resets
	mover.mu.Unlock()
	if resetsAfterConnect != 1 {
		t.Errorf("expected 1 reset on connect, got %d", resetsAfterConnect)
	}

	conn.Close()
	time.Sleep(20 * time.Millisecond) // allow disconnect-time reset to run
	mover.mu.Lock()
	resetsAfterDisconnect := mover.resets
	mover.mu.Unlock()
	if resetsAfterDisconnect != 2 {
		t.Errorf("expected 2 resets after disconnect, got %d", resetsAfterDisconnect)
	}
}

func TestServerUnsupportedCapability(t *testing.T) {
	addr, stop := startTestServer(t, nil, nil, nil)
	defer stop()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	reader := bufio.NewReader(conn)

	if err := WriteMessage(conn, SenseRequest{What: SenseLine}); err != nil {
		t.Fatalf("write: %v", err)
	}
	resp, err := ReadMessage(reader)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	s, ok := resp.(StatusResponse)
	if !ok || s.OK || s.Message != unsupportedMsg {
		t.Errorf("expected Unsupported error, got %+v", resp)
	}
}

type fakePool struct {
	fatal chan error
}

func (p *fakePool) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-p.fatal:
		return err
	}
}

func TestServeReturnsPoolFatalError(t *testing.T) {
	pool := &fakePool{fatal: make(chan error, 1)}
	server := NewServer(nil, nil, nil, nil, pool)

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(context.Background(), "127.0.0.1:0") }()

	time.Sleep(10 * time.Millisecond) // let Serve start listening
	wantErr := errors.New("simulated pool worker panic")
	pool.fatal <- wantErr

	select {
	case err := <-serveErr:
		if err == nil || err.Error() != wantErr.Error() {
			t.Errorf("expected Serve to return the pool's fatal error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return promptly after the pool reported a fatal error")
	}
}

func TestServerSenseDistance(t *testing.T) {
	sensor := &fixedSensor{distance: 42.5}
	addr, stop := startTestServer(t, nil, nil, sensor)
	defer stop()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	reader := bufio.NewReader(conn)

	if err := WriteMessage(conn, SenseRequest{What: SenseDistance}); err != nil {
		t.Fatalf("write: %v", err)
	}
	resp, err := ReadMessage(reader)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	sr, ok := resp.(SenseResponse)
	if !ok || sr.DistanceMM != 42.5 {
		t.Errorf("expected SenseResponse{Distance: 42.5}, got %+v", resp)
	}
}
