// pwm_test.go
package rover

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestComputeHalfCyclesInvariant(t *testing.T) {
	cases := []struct {
		freq, duty float64
	}{
		{10, 0.5}, {10, 0}, {10, 1}, {50, 0.25}, {1, 0.1}, {200, 0.9},
	}
	for _, c := range cases {
		onNs, offNs := computeHalfCycles(c.freq, c.duty)
		total := onNs + offNs
		if total == 0 {
			continue
		}
		got := float64(onNs) / float64(total)
		tolerance := 1 / (c.freq * 1e9)
		if math.Abs(got-c.duty) > tolerance+1e-9 {
			t.Errorf("freq=%v duty=%v: on/(on+off)=%v want ~%v (tol %v)", c.freq, c.duty, got, c.duty, tolerance)
		}
	}
}

func TestComputeHalfCyclesNonPositiveFrequency(t *testing.T) {
	onNs, offNs := computeHalfCycles(0, 0.5)
	if onNs != 0 || offNs != 0 {
		t.Errorf("expected (0,0) for non-positive frequency, got (%d,%d)", onNs, offNs)
	}
}

func TestComputeHalfCyclesClampsDuty(t *testing.T) {
	onNs, offNs := computeHalfCycles(10, 1.5)
	if offNs != 0 {
		t.Errorf("duty>1 should clamp to 1, off_ns should be 0, got %d", offNs)
	}
	onNs2, offNs2 := computeHalfCycles(10, -0.5)
	if onNs2 != 0 {
		t.Errorf("duty<0 should clamp to 0, on_ns should be 0, got %d", onNs2)
	}
	_ = offNs2
	_ = onNs
}

func TestPWMChannelUpdateAfterCloseErrors(t *testing.T) {
	pin := newFakePin(1, ModeOutput)
	ch, err := NewPWMChannel(pin, 50, 0.5)
	if err != nil {
		t.Fatalf("NewPWMChannel: %v", err)
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Allow the worker goroutine's done channel to be observed.
	time.Sleep(10 * time.Millisecond)

	if err := ch.SetDuty(0.8); err == nil {
		t.Error("expected an error setting duty on a stopped channel")
	}
	if !pin.closed {
		t.Error("expected the pin to be released on Close")
	}
}

func TestPWMChannelDiesOnHardwareWriteError(t *testing.T) {
	pin := newFakePin(3, ModeOutput)
	pin.setWriteErr(errors.New("gpio: write failed"))
	ch, err := NewPWMChannel(pin, 50, 0.5)
	if err != nil {
		t.Fatalf("NewPWMChannel: %v", err)
	}

	time.Sleep(10 * time.Millisecond) // let the worker hit the failing write and die

	err = ch.SetDuty(0.9)
	if err == nil {
		t.Fatal("expected SetDuty to fail after a hardware write error killed the worker")
	}
	var updateErr *PWMUpdateError
	if !errors.As(err, &updateErr) {
		t.Errorf("expected a *PWMUpdateError, got %T: %v", err, err)
	}
}

func TestPWMChannelLeavesLowOnClose(t *testing.T) {
	pin := newFakePin(2, ModeOutput)
	ch, err := NewPWMChannel(pin, 1000, 0.9)
	if err != nil {
		t.Fatalf("NewPWMChannel: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := ch.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if pin.level {
		t.Error("expected pin to be left at logic low after Close")
	}
}
