// main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	rover "rpi-rover"
	"rpi-rover/rpc"
)

func main() {
	configPath := flag.String("config", "/etc/rover/config.json", "path to rover config JSON")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	cfg.Logger = logger
	if _, warnings, err := cfg.Validate(*configPath); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	} else {
		for _, w := range warnings {
			logger.Warn(w)
		}
	}

	rv, closeFn, err := buildRover(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize hardware", zap.Error(err))
	}
	defer closeFn()

	mover, looker, sensor := rv.Split()
	async := rover.NewAsyncDriver(mover, looker, sensor, 4)
	server := rpc.NewServer(async.Mover, async.Looker, async.Sensor, logger, async)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("listening", zap.String("address", cfg.ListenAddress))
	if err := server.Serve(ctx, cfg.ListenAddress); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func loadConfig(path string) (*rover.RoverConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg rover.RoverConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// buildRover claims every configured pin, opens the servo device, and
// assembles a Rover. closeFn releases everything claimed here on
// shutdown.
func buildRover(cfg *rover.RoverConfig, logger *zap.Logger) (*rover.Rover, func(), error) {
	registry, err := rover.NewPinRegistry(cfg.GPIOChip)
	if err != nil {
		return nil, nil, err
	}

	claim := func(number int, mode rover.PinMode) (rover.Pin, error) {
		return registry.Claim(number, mode)
	}

	leftFwdPin, err := claim(cfg.Pins.MotorLeftFwd, rover.ModeOutput)
	if err != nil {
		return nil, nil, err
	}
	leftRevPin, err := claim(cfg.Pins.MotorLeftRev, rover.ModeOutput)
	if err != nil {
		return nil, nil, err
	}
	rightFwdPin, err := claim(cfg.Pins.MotorRightFwd, rover.ModeOutput)
	if err != nil {
		return nil, nil, err
	}
	rightRevPin, err := claim(cfg.Pins.MotorRightRev, rover.ModeOutput)
	if err != nil {
		return nil, nil, err
	}

	leftFwd, err := rover.NewPWMChannel(leftFwdPin, cfg.MotorBaseFrequencyHz, 0)
	if err != nil {
		return nil, nil, err
	}
	leftRev, err := rover.NewPWMChannel(leftRevPin, cfg.MotorBaseFrequencyHz, 0)
	if err != nil {
		return nil, nil, err
	}
	rightFwd, err := rover.NewPWMChannel(rightFwdPin, cfg.MotorBaseFrequencyHz, 0)
	if err != nil {
		return nil, nil, err
	}
	rightRev, err := rover.NewPWMChannel(rightRevPin, cfg.MotorBaseFrequencyHz, 0)
	if err != nil {
		return nil, nil, err
	}

	left := rover.NewMotor(leftFwd, leftRev)
	right := rover.NewMotor(rightFwd, rightRev)

	obstacleL, err := claim(cfg.Pins.ObstacleLeft, rover.ModeInput)
	if err != nil {
		return nil, nil, err
	}
	obstacleR, err := claim(cfg.Pins.ObstacleRight, rover.ModeInput)
	if err != nil {
		return nil, nil, err
	}
	lineL, err := claim(cfg.Pins.LineLeft, rover.ModeInput)
	if err != nil {
		return nil, nil, err
	}
	lineR, err := claim(cfg.Pins.LineRight, rover.ModeInput)
	if err != nil {
		return nil, nil, err
	}
	sonarPin, err := claim(cfg.Pins.SonarPin, rover.ModeOutput)
	if err != nil {
		return nil, nil, err
	}
	sensorRig := rover.NewSensorRig(obstacleL, obstacleR, lineL, lineR, sonarPin)

	device, err := os.OpenFile(cfg.ServoDevice, os.O_WRONLY, 0)
	if err != nil {
		return nil, nil, err
	}
	cal, _ := cfg.LoadCalibration()
	panCal, err := rover.NewAxisCalibration(cal.Pan)
	if err != nil {
		return nil, nil, err
	}
	tiltCal, err := rover.NewAxisCalibration(cal.Tilt)
	if err != nil {
		return nil, nil, err
	}
	servos := rover.NewServoPair(device, cfg.ServoChannels.Pan, cfg.ServoChannels.Tilt, panCal, tiltCal, cfg.NeutralPan, cfg.NeutralTilt)

	rv := rover.NewRover(left, right, servos, sensorRig)
	closeFn := func() {
		if err := rv.Close(); err != nil {
			logger.Warn("error closing rover", zap.Error(err))
		}
		if err := registry.Close(); err != nil {
			logger.Warn("error closing gpio chip", zap.Error(err))
		}
	}
	return rv, closeFn, nil
}
