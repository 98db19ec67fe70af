// servo.go
package rover

import (
	"fmt"
	"io"
	"math"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// CalibrationPoint anchors one (angle degrees, pulse-width microseconds)
// pair for an axis. Pan/tilt are each calibrated with three such points:
// two endpoints and a mid, used by PulseFor's single affine mapping.
// Grounded on the teacher's JointCalibrationData in calibration.go,
// generalized from per-joint single offsets to a full point set.
type CalibrationPoint struct {
	AngleDeg float64
	PulseUs  uint16
}

// AxisCalibration is a sorted-by-angle set of at least two calibration
// points for one servo axis.
type AxisCalibration struct {
	Points []CalibrationPoint
}

// NewAxisCalibration sorts and validates a point set.
func NewAxisCalibration(points []CalibrationPoint) (*AxisCalibration, error) {
	if len(points) < 2 {
		return nil, errors.New("axis calibration requires at least two points")
	}
	cp := make([]CalibrationPoint, len(points))
	copy(cp, points)
	sort.Slice(cp, func(i, j int) bool { return cp[i].AngleDeg < cp[j].AngleDeg })
	for i := 1; i < len(cp); i++ {
		if cp[i].AngleDeg == cp[i-1].AngleDeg {
			return nil, errors.Errorf("duplicate calibration angle %.2f", cp[i].AngleDeg)
		}
	}
	return &AxisCalibration{Points: cp}, nil
}

// PulseFor maps angleDeg to a pulse width with one affine formula
// anchored at the calibration's mid point, with a coefficient derived
// once from the two endpoints:
//
//	degLo, degHi = min(e1, e2), max(e1, e2)
//	pwLo, pwHi   = min(p1, p2), max(p1, p2)
//	coef         = (pwHi - pwLo) / (degHi - degLo)
//	pw           = round(midPw + (angleDeg - midDeg) * coef)
//	return clamp(pw, pwLo, pwHi)
//
// Grounded on the original firmware's deg_to_pw mapping.
func (a *AxisCalibration) PulseFor(angleDeg float64) uint16 {
	pts := a.Points
	e1, e2 := pts[0], pts[len(pts)-1]
	mid := pts[len(pts)/2]

	degLo, degHi := e1.AngleDeg, e2.AngleDeg
	if degLo > degHi {
		degLo, degHi = degHi, degLo
	}
	pwLo, pwHi := float64(e1.PulseUs), float64(e2.PulseUs)
	if pwLo > pwHi {
		pwLo, pwHi = pwHi, pwLo
	}

	coef := (pwHi - pwLo) / (degHi - degLo)
	pw := math.Round(float64(mid.PulseUs) + (angleDeg-mid.AngleDeg)*coef)

	switch {
	case pw < pwLo:
		return uint16(pwLo)
	case pw > pwHi:
		return uint16(pwHi)
	default:
		return uint16(pw)
	}
}

// ClampDeg reports the angle actually reached after clamping to the
// calibrated range, the same rule PulseFor applies.
func (a *AxisCalibration) ClampDeg(angleDeg float64) float64 {
	if angleDeg < a.Points[0].AngleDeg {
		return a.Points[0].AngleDeg
	}
	if last := len(a.Points) - 1; angleDeg > a.Points[last].AngleDeg {
		return a.Points[last].AngleDeg
	}
	return angleDeg
}

// servoChannel is one physical output on the pulse-width device.
type servoChannel struct {
	mu      sync.Mutex
	channel int
	cal     *AxisCalibration
	w       io.Writer
	current float64
}

func newServoChannel(channel int, cal *AxisCalibration, w io.Writer) *servoChannel {
	return &servoChannel{channel: channel, cal: cal, w: w}
}

// setAngle writes "<channel>=<pw>\n" to the device, the ASCII protocol
// the servo-driver char device expects.
func (s *servoChannel) setAngle(angleDeg float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clamped := s.cal.ClampDeg(angleDeg)
	pw := s.cal.PulseFor(clamped)
	line := fmt.Sprintf("%d=%d\n", s.channel, pw)
	if _, err := io.WriteString(s.w, line); err != nil {
		return 0, wrapHardware("servo write", err)
	}
	s.current = clamped
	return clamped, nil
}

func (s *servoChannel) angle() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// ServoPair is the pan/tilt head: two independently-calibrated axes
// sharing one device handle.
type ServoPair struct {
	pan         *servoChannel
	tilt        *servoChannel
	device      io.Closer
	neutralPan  *float64
	neutralTilt *float64
}

// NewServoPair opens no hardware itself; it wraps an already-open
// device handle (typically a /dev/servoblaster-style char device) plus
// per-axis calibration. neutralPan/neutralTilt are the angle pair
// Reset returns the head to; nil for either means no neutral pose is
// configured and Reset is a no-op.
func NewServoPair(device io.WriteCloser, panChannel, tiltChannel int, panCal, tiltCal *AxisCalibration, neutralPan, neutralTilt *float64) *ServoPair {
	return &ServoPair{
		pan:         newServoChannel(panChannel, panCal, device),
		tilt:        newServoChannel(tiltChannel, tiltCal, device),
		device:      device,
		neutralPan:  neutralPan,
		neutralTilt: neutralTilt,
	}
}

func (s *ServoPair) close() error {
	return s.device.Close()
}

// LookDirection is the latest commanded (horizontal, vertical) angle
// pair, in degrees, after clamping.
type LookDirection struct {
	HorizontalDeg float64
	VerticalDeg   float64
}

// Looker is the pan/tilt capability contract.
type Looker interface {
	LookAt(horizontalDeg, verticalDeg float64) (LookDirection, error)
	GetLookDirection() LookDirection
	Reset() error
}

type lookerImpl struct {
	d *Rover
}

func (l *lookerImpl) LookAt(h, v float64) (LookDirection, error) {
	l.d.gate.Lock()
	defer l.d.gate.Unlock()

	actualH, err := l.d.servos.pan.setAngle(h)
	if err != nil {
		return LookDirection{}, errors.Wrap(err, "look_at: pan")
	}
	actualV, err := l.d.servos.tilt.setAngle(v)
	if err != nil {
		return LookDirection{}, errors.Wrap(err, "look_at: tilt")
	}
	dir := LookDirection{HorizontalDeg: actualH, VerticalDeg: actualV}
	l.d.setLookDirection(dir)
	return dir, nil
}

func (l *lookerImpl) GetLookDirection() LookDirection {
	l.d.stateMu.RLock()
	defer l.d.stateMu.RUnlock()
	return l.d.lookDir
}

// Reset returns the head to its configured neutral pose. With no
// neutral pose configured (the default), it is a no-op.
func (l *lookerImpl) Reset() error {
	neutralPan, neutralTilt := l.d.servos.neutralPan, l.d.servos.neutralTilt
	if neutralPan == nil || neutralTilt == nil {
		return nil
	}
	_, err := l.LookAt(*neutralPan, *neutralTilt)
	return err
}
