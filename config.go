// config.go
package rover

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// PinConfig names every BCM pin the driver claims: two motors, four
// obstacle/line input pins, and one bidirectional pin for the sonar
// (driven out as the trigger, reconfigured to input for the echo).
type PinConfig struct {
	MotorLeftFwd  int `json:"motor_left_fwd"`
	MotorLeftRev  int `json:"motor_left_rev"`
	MotorRightFwd int `json:"motor_right_fwd"`
	MotorRightRev int `json:"motor_right_rev"`
	ObstacleLeft  int `json:"obstacle_left"`
	ObstacleRight int `json:"obstacle_right"`
	LineLeft      int `json:"line_left"`
	LineRight     int `json:"line_right"`
	SonarPin      int `json:"sonar_pin"`
}

// ServoChannelConfig selects the pan/tilt channel indices on the servo
// control device.
type ServoChannelConfig struct {
	Pan  int `json:"pan"`
	Tilt int `json:"tilt"`
}

// RoverConfig is the on-disk JSON configuration for one rover process.
// Grounded on the teacher's SoArm101Config in the original config.go:
// same Validate/LoadCalibration/defaulting shape, generalized from a
// single serial port + servo ID list to a GPIO chip plus pin map.
type RoverConfig struct {
	ListenAddress string `json:"listen_address,omitempty"`

	GPIOChip string    `json:"gpio_chip,omitempty"`
	Pins     PinConfig `json:"pins"`

	ServoDevice   string             `json:"servo_device,omitempty"`
	ServoChannels ServoChannelConfig `json:"servo_channels"`

	CalibrationFile string `json:"calibration_file,omitempty"`

	MotorBaseFrequencyHz float64 `json:"motor_base_frequency_hz,omitempty"`

	// NeutralPan and NeutralTilt are the look direction Reset returns
	// the head to, in degrees. Nil means no neutral pose is configured,
	// in which case Reset on the look axis is a no-op.
	NeutralPan  *float64 `json:"neutral_pan,omitempty"`
	NeutralTilt *float64 `json:"neutral_tilt,omitempty"`

	// Not serialized.
	Logger *zap.Logger `json:"-"`
}

const (
	defaultListenAddress = ":7788"
	defaultGPIOChip      = "gpiochip0"
	defaultServoDevice   = "/dev/servoblaster"
	defaultPanChannel    = 7
	defaultTiltChannel   = 6
	// Nominal base frequency for motor soft-PWM; per-call drive
	// frequency is overridden to equal the commanded speed in Hz, so
	// this value only matters while a motor is idle.
	defaultMotorFrequencyHz = 10
)

// Validate fills in defaults and rejects configurations that cannot
// possibly claim distinct pins, mirroring the teacher's Validate(path)
// signature (errs, warnings, error).
func (cfg *RoverConfig) Validate(path string) ([]string, []string, error) {
	var warnings []string

	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListenAddress
		warnings = append(warnings, "listen_address not set, defaulting to "+defaultListenAddress)
	}
	if cfg.GPIOChip == "" {
		cfg.GPIOChip = defaultGPIOChip
	}
	if cfg.ServoDevice == "" {
		cfg.ServoDevice = defaultServoDevice
	}
	if cfg.ServoChannels.Pan == 0 && cfg.ServoChannels.Tilt == 0 {
		cfg.ServoChannels.Pan = defaultPanChannel
		cfg.ServoChannels.Tilt = defaultTiltChannel
	}
	if cfg.MotorBaseFrequencyHz == 0 {
		cfg.MotorBaseFrequencyHz = defaultMotorFrequencyHz
	}

	pins := []int{
		cfg.Pins.MotorLeftFwd, cfg.Pins.MotorLeftRev,
		cfg.Pins.MotorRightFwd, cfg.Pins.MotorRightRev,
		cfg.Pins.ObstacleLeft, cfg.Pins.ObstacleRight,
		cfg.Pins.LineLeft, cfg.Pins.LineRight,
		cfg.Pins.SonarPin,
	}
	seen := make(map[int]bool, len(pins))
	for _, p := range pins {
		if seen[p] {
			return nil, warnings, errors.Errorf("pin %d assigned to more than one role in %s", p, path)
		}
		seen[p] = true
	}

	return nil, warnings, nil
}

// RoverCalibration holds the pan/tilt calibration point sets.
type RoverCalibration struct {
	Pan  []CalibrationPoint `json:"pan"`
	Tilt []CalibrationPoint `json:"tilt"`
}

// DefaultRoverCalibration holds the factory three-point anchors for
// each axis: pan left-cut 90°↔220, right-cut −90°↔55, centre 0°↔138;
// tilt up-cut −90°↔65, down-cut 80°↔210, centre 0°↔138.
var DefaultRoverCalibration = RoverCalibration{
	Pan: []CalibrationPoint{
		{AngleDeg: -90, PulseUs: 55},
		{AngleDeg: 0, PulseUs: 138},
		{AngleDeg: 90, PulseUs: 220},
	},
	Tilt: []CalibrationPoint{
		{AngleDeg: -90, PulseUs: 65},
		{AngleDeg: 0, PulseUs: 138},
		{AngleDeg: 80, PulseUs: 210},
	},
}

// LoadCalibration loads calibration from cfg.CalibrationFile, falling
// back to DefaultRoverCalibration on any error (never fatal to
// construction, matching the teacher's LoadCalibration).
func (cfg *RoverConfig) LoadCalibration() (RoverCalibration, bool) {
	if cfg.CalibrationFile == "" {
		if cfg.Logger != nil {
			cfg.Logger.Debug("no calibration file configured, using default calibration")
		}
		return DefaultRoverCalibration, false
	}

	path := cfg.CalibrationFile
	if !filepath.IsAbs(path) {
		dir := os.Getenv("ROVER_DATA_DIR")
		if dir == "" {
			dir = "/tmp"
		}
		path = filepath.Join(dir, path)
	}

	cal, err := LoadCalibrationFromFile(path)
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("failed to load calibration file, using default",
				zap.String("path", path), zap.Error(err))
		}
		return DefaultRoverCalibration, false
	}
	if cfg.Logger != nil {
		cfg.Logger.Debug("loaded calibration from file", zap.String("path", path))
	}
	return cal, true
}

// LoadCalibrationFromFile reads and validates a calibration file.
func LoadCalibrationFromFile(path string) (RoverCalibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RoverCalibration{}, errors.Wrap(err, "read calibration file")
	}
	var cal RoverCalibration
	if err := json.Unmarshal(data, &cal); err != nil {
		return RoverCalibration{}, errors.Wrap(err, "parse calibration json")
	}
	if err := ValidateRoverCalibration(cal); err != nil {
		return RoverCalibration{}, errors.Wrap(err, "validate calibration")
	}
	return cal, nil
}

// SaveCalibrationToFile writes cal as indented JSON to path.
func SaveCalibrationToFile(path string, cal RoverCalibration) error {
	data, err := json.MarshalIndent(cal, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal calibration")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "write calibration file")
	}
	return nil
}

// ValidateRoverCalibration rejects degenerate point sets (fewer than
// two points per axis).
func ValidateRoverCalibration(cal RoverCalibration) error {
	if len(cal.Pan) < 2 {
		return errors.New("pan calibration requires at least two points")
	}
	if len(cal.Tilt) < 2 {
		return errors.New("tilt calibration requires at least two points")
	}
	return nil
}
