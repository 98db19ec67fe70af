// gpio.go
package rover

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

// PinMode selects whether a claimed line drives or senses a level.
type PinMode int

const (
	ModeInput PinMode = iota
	ModeOutput
)

// Pin is an exclusive handle to one digital line. A Pin is owned by at
// most one component at a time; ownership transfer
// requires Close, which releases the underlying line back to the chip.
type Pin interface {
	Number() int
	Mode() PinMode
	Read() (bool, error)
	Write(level bool) error
	// Reconfigure switches the line between input and output in place,
	// used by the sonar sequence (trigger out, then echo in on the same
	// line) and by NewPWMChannel to force a pin into output mode.
	Reconfigure(mode PinMode) error
	Close() error
}

type cdevPin struct {
	mu       sync.Mutex
	registry *PinRegistry
	number   int
	mode     PinMode
	line     *gpiocdev.Line
}

func (p *cdevPin) Number() int { return p.number }

func (p *cdevPin) Mode() PinMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

func (p *cdevPin) Read() (bool, error) {
	p.mu.Lock()
	line := p.line
	p.mu.Unlock()
	v, err := line.Value()
	if err != nil {
		return false, wrapHardware("gpio read", err)
	}
	return v != 0, nil
}

func (p *cdevPin) Write(level bool) error {
	p.mu.Lock()
	line := p.line
	p.mu.Unlock()
	v := 0
	if level {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		return wrapHardware("gpio write", err)
	}
	return nil
}

func (p *cdevPin) Reconfigure(mode PinMode) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode == mode {
		return nil
	}
	if err := p.line.Close(); err != nil {
		return wrapHardware("gpio reconfigure close", err)
	}
	line, err := requestLine(p.registry.chipName, p.number, mode)
	if err != nil {
		return wrapHardware("gpio reconfigure request", err)
	}
	p.line = line
	p.mode = mode
	return nil
}

func (p *cdevPin) Close() error {
	p.mu.Lock()
	line := p.line
	p.mu.Unlock()
	p.registry.release(p.number)
	if line == nil {
		return nil
	}
	return line.Close()
}

// PinRegistry is the process-wide GPIO claim table, owned by a single
// reference and passed to every component that needs to claim a line.
// A pin number is owned by at most one structure at a time.
type PinRegistry struct {
	mu       sync.Mutex
	chipName string
	chip     *gpiocdev.Chip
	claimed  map[int]bool
}

// NewPinRegistry opens the named GPIO chip (e.g. "gpiochip0") and
// returns a registry components can claim lines from.
func NewPinRegistry(chipName string) (*PinRegistry, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open GPIO chip %s", chipName)
	}
	return &PinRegistry{
		chipName: chipName,
		chip:     chip,
		claimed:  make(map[int]bool),
	}, nil
}

// Claim acquires exclusive ownership of a BCM pin number in the given
// mode. It fails if the pin is already claimed by another component.
func (r *PinRegistry) Claim(number int, mode PinMode) (Pin, error) {
	r.mu.Lock()
	if r.claimed[number] {
		r.mu.Unlock()
		return nil, errors.Errorf("pin %d already claimed", number)
	}
	r.claimed[number] = true
	r.mu.Unlock()

	line, err := requestLine(r.chipName, number, mode)
	if err != nil {
		r.release(number)
		return nil, wrapHardware("gpio claim", err)
	}
	return &cdevPin{registry: r, number: number, mode: mode, line: line}, nil
}

func (r *PinRegistry) release(number int) {
	r.mu.Lock()
	delete(r.claimed, number)
	r.mu.Unlock()
}

// Close shuts down the chip handle. Any still-claimed pins become
// invalid; callers are expected to Close every Pin before calling this.
func (r *PinRegistry) Close() error {
	return r.chip.Close()
}

func requestLine(chipName string, number int, mode PinMode) (*gpiocdev.Line, error) {
	switch mode {
	case ModeInput:
		return gpiocdev.RequestLine(chipName, number, gpiocdev.AsInput)
	case ModeOutput:
		return gpiocdev.RequestLine(chipName, number, gpiocdev.AsOutput(0))
	default:
		return nil, errors.Errorf("unknown pin mode %d", mode)
	}
}
