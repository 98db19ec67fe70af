// motor_test.go
package rover

import (
	"testing"
	"time"
)

func newTestMotor(t *testing.T) (*Motor, *PWMChannel, *PWMChannel) {
	t.Helper()
	fwdPin := newFakePin(10, ModeOutput)
	revPin := newFakePin(11, ModeOutput)
	fwd, err := NewPWMChannel(fwdPin, 10, 0)
	if err != nil {
		t.Fatalf("fwd channel: %v", err)
	}
	rev, err := NewPWMChannel(revPin, 10, 0)
	if err != nil {
		t.Fatalf("rev channel: %v", err)
	}
	t.Cleanup(func() {
		fwd.Close()
		rev.Close()
	})
	return NewMotor(fwd, rev), fwd, rev
}

// settle waits out the longest lag Snapshot allows: one half-cycle, which
// for an idle 10 Hz channel (duty 0) is the whole 100ms period.
func settle() { time.Sleep(150 * time.Millisecond) }

func TestMotorDriveForwardNeverEnergizesBothWindings(t *testing.T) {
	m, fwd, rev := newTestMotor(t)
	if err := m.drive(200, true); err != nil {
		t.Fatalf("drive: %v", err)
	}
	settle()

	_, fwdDuty := fwd.Snapshot()
	_, revDuty := rev.Snapshot()
	if fwdDuty == 0 {
		t.Error("expected forward duty to be non-zero")
	}
	if revDuty != 0 {
		t.Errorf("expected reverse duty to be zero, got %v", revDuty)
	}
}

func TestMotorDriveBackwardMirrorsOntoReverse(t *testing.T) {
	m, fwd, rev := newTestMotor(t)
	if err := m.drive(100, false); err != nil {
		t.Fatalf("drive: %v", err)
	}
	settle()

	_, fwdDuty := fwd.Snapshot()
	_, revDuty := rev.Snapshot()
	if fwdDuty != 0 {
		t.Errorf("expected forward duty to be zero, got %v", fwdDuty)
	}
	if revDuty == 0 {
		t.Error("expected reverse duty to be non-zero")
	}
}

func TestMotorDriveZeroSpeedStopsBothChannels(t *testing.T) {
	m, fwd, rev := newTestMotor(t)
	if err := m.drive(200, true); err != nil {
		t.Fatalf("drive: %v", err)
	}
	settle()
	if err := m.drive(0, true); err != nil {
		t.Fatalf("drive stop: %v", err)
	}
	settle()

	_, fwdDuty := fwd.Snapshot()
	_, revDuty := rev.Snapshot()
	if fwdDuty != 0 || revDuty != 0 {
		t.Errorf("expected both duties zero after stop, got fwd=%v rev=%v", fwdDuty, revDuty)
	}
}

func TestMoveDirectionClassification(t *testing.T) {
	cases := []struct {
		name string
		dir  MoveDirection
		want MoveClass
	}{
		{"stopped", MoveDirection{0, 0}, ClassStopped},
		{"forward", MoveDirection{100, 100}, ClassForward},
		{"backward", MoveDirection{-50, -50}, ClassBackward},
		{"spin cw", MoveDirection{100, -100}, ClassSpinCW},
		{"spin ccw", MoveDirection{-100, 100}, ClassSpinCCW},
		{"l zero, r positive treated forward", MoveDirection{0, 50}, ClassForward},
		{"l negative, r zero treated backward", MoveDirection{-50, 0}, ClassBackward},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.dir.Class(); got != c.want {
				t.Errorf("Class(%+v) = %v, want %v", c.dir, got, c.want)
			}
		})
	}
}
