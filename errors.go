// errors.go
package rover

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds surfaced by the core. Each is a distinct type so callers
// can branch on kind with errors.As instead of string matching, while
// still carrying a wrapped cause the way the teacher's
// errors.Wrap/Wrapf chains do.

// HardwareError wraps a failure to claim a pin, perform a digital
// read/write, or open the servo device. Non-fatal to the process.
type HardwareError struct {
	Op  string
	Err error
}

func (e *HardwareError) Error() string { return fmt.Sprintf("hardware: %s: %v", e.Op, e.Err) }
func (e *HardwareError) Unwrap() error { return e.Err }

func wrapHardware(op string, err error) error {
	if err == nil {
		return nil
	}
	return &HardwareError{Op: op, Err: errors.Wrap(err, op)}
}

// TimingError marks a timing guard that elapsed, e.g. a sonar guard with
// no echo observed. ScanDistance does not return it: a sonar timeout
// yields a zero reading with a nil error.
type TimingError struct {
	Op string
}

func (e *TimingError) Error() string { return fmt.Sprintf("timing: %s guard elapsed", e.Op) }

// PWMUpdateError is returned when a control message is sent to a PWM
// channel whose worker has already stopped (Stop sent, or worker dead
// after a hardware write failure).
type PWMUpdateError struct {
	Pin int
}

func (e *PWMUpdateError) Error() string {
	return fmt.Sprintf("pwm: channel on pin %d is stopped, update rejected", e.Pin)
}

// ProtocolError marks a decoded message that does not match the
// variant a client expected for its outstanding request, or a
// structurally invalid message on the server side.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string { return "protocol: " + e.Msg }

// DisconnectedError marks a closed stream.
type DisconnectedError struct{}

func (e *DisconnectedError) Error() string { return "disconnected: stream closed" }

// SerializationError marks a codec failure, fatal to the current connection.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string { return fmt.Sprintf("serialization: %v", e.Err) }
func (e *SerializationError) Unwrap() error { return e.Err }

// ErrUnsupported names an operation with no registered capability. The
// RPC server does not return this value; it answers such requests with
// a StatusResponse carrying "Unsupported operation.".
var ErrUnsupported = errors.New("unsupported operation")
