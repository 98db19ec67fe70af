// driver.go
package rover

import (
	"sync"

	"github.com/pkg/errors"
)

// Rover owns every claimed pin and PWM worker for one physical unit.
// It is the single point of mutual exclusion between the three
// capability facets split out below: Mover, Looker and Sensor all read
// and write shared state here under gate/stateMu, mirroring the
// teacher's refcounted ControllerRegistry pattern in registry.go,
// generalized from "one shared controller per serial port" to "one
// shared driver per physical rover".
type Rover struct {
	gate sync.Mutex // serializes all hardware-affecting calls

	left  *Motor
	right *Motor

	servos *ServoPair
	sensor *SensorRig

	stateMu sync.RWMutex
	moveDir MoveDirection
	lookDir LookDirection
}

// NewRover assembles a driver from already-constructed components. The
// constituent parts (Motor, ServoPair, SensorRig) are built first via
// their own constructors against a shared PinRegistry, then handed
// here; Rover itself claims no pins directly.
func NewRover(left, right *Motor, servos *ServoPair, sensor *SensorRig) *Rover {
	return &Rover{left: left, right: right, servos: servos, sensor: sensor}
}

func (rv *Rover) setDirection(d MoveDirection) {
	rv.stateMu.Lock()
	rv.moveDir = d
	rv.stateMu.Unlock()
}

func (rv *Rover) setLookDirection(d LookDirection) {
	rv.stateMu.Lock()
	rv.lookDir = d
	rv.stateMu.Unlock()
}

// Split produces three independently-held Mover/Looker/Sensor handles
// that still share this driver's single point of mutual exclusion over
// the underlying hardware.
func (rv *Rover) Split() (Mover, Looker, Sensor) {
	return &moverImpl{d: rv}, &lookerImpl{d: rv}, &sensorImpl{d: rv}
}

// Reset stops motion, returns the pan/tilt head to its configured
// neutral pose (a no-op if none is configured), and calls the sensor
// facet's Reset, which is a no-op. It is the driver-wide analogue of
// each facet's own Reset; the RPC server resets each registered facet
// itself on connect/disconnect rather than calling this.
func (rv *Rover) Reset() error {
	m, l, s := rv.Split()
	if err := m.Reset(); err != nil {
		return errors.Wrap(err, "rover reset: mover")
	}
	if err := l.Reset(); err != nil {
		return errors.Wrap(err, "rover reset: looker")
	}
	if err := s.Reset(); err != nil {
		return errors.Wrap(err, "rover reset: sensor")
	}
	return nil
}

// Close tears down every owned PWM worker and pin. Callers must quiesce
// motion before calling this.
func (rv *Rover) Close() error {
	var first error
	record := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	record(rv.left.close())
	record(rv.right.close())
	record(rv.servos.close())
	record(rv.sensor.close())
	return first
}
