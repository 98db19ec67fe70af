// sensor.go
package rover

import (
	"time"
)

const (
	sonarGuard     = 100 * time.Millisecond
	soundSpeedMMPS = 343000.0
	triggerPulse   = 10 * time.Microsecond
)

// SensorReadings is the snapshot returned by the Sense capability
// group.
type SensorReadings struct {
	Obstacles [2]bool
	Lines     [2]bool
	DistanceMM float32
}

// SensorRig owns the four digital inputs (IR obstacle ×2, IR line ×2)
// and the single bidirectional sonar pin: driven out as the trigger,
// then reconfigured to input to read the echo. IR/line reads are
// active-low: a logic-low read means "detected".
type SensorRig struct {
	obstacleL, obstacleR Pin
	lineL, lineR         Pin
	sonar                Pin
}

// NewSensorRig wraps already-claimed pins. sonar must be claimed as
// output (ScanDistance reconfigures it to input for the echo half of
// the sequence); obstacle/line pins as input.
func NewSensorRig(obstacleL, obstacleR, lineL, lineR, sonar Pin) *SensorRig {
	return &SensorRig{
		obstacleL: obstacleL, obstacleR: obstacleR,
		lineL: lineL, lineR: lineR,
		sonar: sonar,
	}
}

func (s *SensorRig) close() error {
	for _, p := range []Pin{s.obstacleL, s.obstacleR, s.lineL, s.lineR, s.sonar} {
		if err := p.Close(); err != nil {
			return err
		}
	}
	return nil
}

func readActiveLow(p Pin) (bool, error) {
	v, err := p.Read()
	if err != nil {
		return false, err
	}
	return !v, nil
}

// Sensor is the sense capability contract.
type Sensor interface {
	GetObstacles() ([2]bool, error)
	GetLines() ([2]bool, error)
	ScanDistance() (float32, error)
	Reset() error
}

type sensorImpl struct {
	d *Rover
}

func (s *sensorImpl) GetObstacles() ([2]bool, error) {
	s.d.gate.Lock()
	defer s.d.gate.Unlock()
	rig := s.d.sensor
	l, err := readActiveLow(rig.obstacleL)
	if err != nil {
		return [2]bool{}, wrapHardware("obstacle sensor read", err)
	}
	r, err := readActiveLow(rig.obstacleR)
	if err != nil {
		return [2]bool{}, wrapHardware("obstacle sensor read", err)
	}
	return [2]bool{l, r}, nil
}

func (s *sensorImpl) GetLines() ([2]bool, error) {
	s.d.gate.Lock()
	defer s.d.gate.Unlock()
	rig := s.d.sensor
	l, err := readActiveLow(rig.lineL)
	if err != nil {
		return [2]bool{}, wrapHardware("line sensor read", err)
	}
	r, err := readActiveLow(rig.lineR)
	if err != nil {
		return [2]bool{}, wrapHardware("line sensor read", err)
	}
	return [2]bool{l, r}, nil
}

// ScanDistance performs the ultrasonic ranging sequence on the single
// sonar pin: drive it HIGH for 10µs, drive it LOW, reconfigure it to
// input, then poll for the echo's rising then falling edge, each
// bounded by a 100ms guard. Edges are timestamped on the wall clock
// inside the polling loop rather than via interrupt capture, trading
// precision for portability across HALs. The pin is left reconfigured
// to output again before returning, ready for the next trigger.
func (s *sensorImpl) ScanDistance() (float32, error) {
	s.d.gate.Lock()
	defer s.d.gate.Unlock()
	rig := s.d.sensor

	if err := rig.sonar.Write(true); err != nil {
		return 0, wrapHardware("sonar trigger high", err)
	}
	time.Sleep(triggerPulse)
	if err := rig.sonar.Write(false); err != nil {
		return 0, wrapHardware("sonar trigger low", err)
	}
	if err := rig.sonar.Reconfigure(ModeInput); err != nil {
		return 0, wrapHardware("sonar switch to input", err)
	}
	defer rig.sonar.Reconfigure(ModeOutput)

	rise, ok, err := pollEdge(rig.sonar, true, sonarGuard)
	if err != nil {
		return 0, wrapHardware("sonar echo rise", err)
	}
	if !ok {
		return 0, nil
	}
	fall, ok, err := pollEdge(rig.sonar, false, sonarGuard)
	if err != nil {
		return 0, wrapHardware("sonar echo fall", err)
	}
	if !ok {
		return 0, nil
	}

	pulse := fall.Sub(rise)
	distanceMM := soundSpeedMMPS * pulse.Seconds() / 2
	return float32(distanceMM), nil
}

// pollEdge spin-polls pin until it reads level, capturing the wall-clock
// timestamp of the read that first observes it. Returns ok=false if
// guard elapses first.
func pollEdge(pin Pin, level bool, guard time.Duration) (time.Time, bool, error) {
	deadline := time.Now().Add(guard)
	for {
		v, err := pin.Read()
		if err != nil {
			return time.Time{}, false, err
		}
		if v == level {
			return time.Now(), true, nil
		}
		if time.Now().After(deadline) {
			return time.Time{}, false, nil
		}
	}
}

func (s *sensorImpl) Reset() error {
	return nil
}
