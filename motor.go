// motor.go
package rover

import (
	"sync"

	"github.com/pkg/errors"
)

// Motor is an ordered pair of soft-PWM channels (fwd, rev) driving one
// wheel. Invariant: at most one of fwd.duty/rev.duty is non-zero at
// any time, so the motor-driver IC is never shorted across windings.
type Motor struct {
	mu  sync.Mutex
	fwd *PWMChannel
	rev *PWMChannel
}

// NewMotor wraps an already-running forward/reverse channel pair. Both
// channels must start at duty 0.
func NewMotor(fwd, rev *PWMChannel) *Motor {
	return &Motor{fwd: fwd, rev: rev}
}

// drive energizes exactly one of the forward/reverse channels at the
// requested speed and clears the other, never both at once.
func (m *Motor) drive(speed uint8, forward bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if speed == 0 {
		return m.bothOff()
	}
	duty := float64(speed) / 255
	freq := float64(speed)
	if forward {
		if err := m.rev.SetDuty(0); err != nil {
			return errors.Wrap(err, "motor: clear reverse channel")
		}
		if err := m.fwd.SetFrequency(freq); err != nil {
			return errors.Wrap(err, "motor: set forward frequency")
		}
		return errors.Wrap(m.fwd.SetDuty(duty), "motor: set forward duty")
	}
	if err := m.fwd.SetDuty(0); err != nil {
		return errors.Wrap(err, "motor: clear forward channel")
	}
	if err := m.rev.SetFrequency(freq); err != nil {
		return errors.Wrap(err, "motor: set reverse frequency")
	}
	return errors.Wrap(m.rev.SetDuty(duty), "motor: set reverse duty")
}

func (m *Motor) bothOff() error {
	if err := m.fwd.SetDuty(0); err != nil {
		return errors.Wrap(err, "motor: stop forward channel")
	}
	return errors.Wrap(m.rev.SetDuty(0), "motor: stop reverse channel")
}

func (m *Motor) stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bothOff()
}

func (m *Motor) close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fwd.Close(); err != nil {
		return err
	}
	return m.rev.Close()
}

// MoveDirection is the last commanded signed per-wheel speed. Positive
// is forward, negative is backward.
type MoveDirection struct {
	L int16
	R int16
}

// Class classifies a MoveDirection. Opposite-sign sides are a spin in
// the direction the positive side turns; otherwise whichever side is
// non-zero determines forward vs. backward.
func (d MoveDirection) Class() MoveClass {
	switch {
	case d.L == 0 && d.R == 0:
		return ClassStopped
	case d.L > 0 && d.R < 0:
		return ClassSpinCW
	case d.L < 0 && d.R > 0:
		return ClassSpinCCW
	case d.L > 0 || d.R > 0:
		return ClassForward
	default:
		return ClassBackward
	}
}

// MoveClass is the derived classification of a MoveDirection.
type MoveClass int

const (
	ClassStopped MoveClass = iota
	ClassForward
	ClassBackward
	ClassSpinCW
	ClassSpinCCW
)

// Mover is the motion capability contract.
type Mover interface {
	Stop() error
	MoveForward(speed uint8) error
	MoveBackward(speed uint8) error
	SpinRight(speed uint8) error
	SpinLeft(speed uint8) error
	GetMoveDirection() MoveDirection
	Reset() error
}

// moverImpl is the Rover's Mover facet, sharing state with Looker and
// Sensor through the gate in driver.go.
type moverImpl struct {
	d *Rover
}

func (m *moverImpl) Stop() error {
	m.d.gate.Lock()
	defer m.d.gate.Unlock()
	if err := m.d.left.stop(); err != nil {
		return err
	}
	if err := m.d.right.stop(); err != nil {
		return err
	}
	m.d.setDirection(MoveDirection{})
	return nil
}

func (m *moverImpl) MoveForward(speed uint8) error {
	return m.d.driveBoth(speed, true, true, int16(speed), int16(speed))
}

func (m *moverImpl) MoveBackward(speed uint8) error {
	return m.d.driveBoth(speed, false, false, -int16(speed), -int16(speed))
}

func (m *moverImpl) SpinRight(speed uint8) error {
	return m.d.driveSplit(speed, true, false, int16(speed), -int16(speed))
}

func (m *moverImpl) SpinLeft(speed uint8) error {
	return m.d.driveSplit(speed, false, true, -int16(speed), int16(speed))
}

func (m *moverImpl) GetMoveDirection() MoveDirection {
	m.d.stateMu.RLock()
	defer m.d.stateMu.RUnlock()
	return m.d.moveDir
}

func (m *moverImpl) Reset() error { return m.Stop() }

// driveBoth drives both wheels with the same sense of direction
// (forward/backward).
func (rv *Rover) driveBoth(speed uint8, leftForward, rightForward bool, l, r int16) error {
	rv.gate.Lock()
	defer rv.gate.Unlock()
	if err := rv.left.drive(speed, leftForward); err != nil {
		return err
	}
	if err := rv.right.drive(speed, rightForward); err != nil {
		return err
	}
	if speed == 0 {
		rv.setDirection(MoveDirection{})
	} else {
		rv.setDirection(MoveDirection{L: l, R: r})
	}
	return nil
}

// driveSplit drives the wheels in opposite senses (spin in place).
func (rv *Rover) driveSplit(speed uint8, leftForward, rightForward bool, l, r int16) error {
	rv.gate.Lock()
	defer rv.gate.Unlock()
	if err := rv.left.drive(speed, leftForward); err != nil {
		return err
	}
	if err := rv.right.drive(speed, rightForward); err != nil {
		return err
	}
	rv.setDirection(MoveDirection{L: l, R: r})
	return nil
}
