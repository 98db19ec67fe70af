// pwm.go
package rover

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// PWMChannel carries (frequency Hz, duty in [0,1]) on one output pin,
// backed by a dedicated worker goroutine locked to its own OS thread so
// its sleep timing isn't at the mercy of the Go scheduler migrating it
// mid-cycle. Grounded on a gpiocdev-backed soft-PWM worker pattern seen
// in the reference pack, generalized to this package's on/off timing.
type PWMChannel struct {
	pin Pin

	ctrl      chan pwmMsg
	done      chan struct{}
	dead      atomic.Bool
	closeOnce sync.Once

	stateMu       sync.Mutex
	curFreq, curDuty float64
}

type pwmMsgKind int

const (
	pwmSetFreq pwmMsgKind = iota
	pwmSetDuty
	pwmStop
)

type pwmMsg struct {
	kind pwmMsgKind
	freq float64
	duty float64
}

// NewPWMChannel claims pin as an output and starts its worker at the
// given initial frequency (Hz) and duty (0..1).
func NewPWMChannel(pin Pin, freqHz, duty float64) (*PWMChannel, error) {
	if pin.Mode() != ModeOutput {
		if err := pin.Reconfigure(ModeOutput); err != nil {
			return nil, err
		}
	}
	ch := &PWMChannel{
		pin:     pin,
		ctrl:    make(chan pwmMsg, 8),
		done:    make(chan struct{}),
		curFreq: freqHz,
		curDuty: duty,
	}
	go ch.run(freqHz, duty)
	return ch, nil
}

// SetFrequency delivers a new frequency to the worker asynchronously.
// It is non-blocking; an error is only returned if the channel is
// already stopped.
func (c *PWMChannel) SetFrequency(f float64) error {
	return c.send(pwmMsg{kind: pwmSetFreq, freq: f})
}

// SetDuty delivers a new duty cycle to the worker asynchronously.
func (c *PWMChannel) SetDuty(d float64) error {
	return c.send(pwmMsg{kind: pwmSetDuty, duty: d})
}

func (c *PWMChannel) send(m pwmMsg) error {
	if c.dead.Load() {
		return &PWMUpdateError{Pin: c.pin.Number()}
	}
	select {
	case c.ctrl <- m:
		return nil
	case <-c.done:
		c.dead.Store(true)
		return &PWMUpdateError{Pin: c.pin.Number()}
	}
}

// Snapshot returns the (frequency, duty) the worker last committed to
// a half-cycle computation, for status reporting. It may lag a very
// recent SetFrequency/SetDuty call by up to one half-cycle.
func (c *PWMChannel) Snapshot() (freqHz, duty float64) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.curFreq, c.curDuty
}

// Close stops the worker, leaves the pin at logic low, and releases
// the pin. Safe to call more than once.
func (c *PWMChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if !c.dead.Load() {
			select {
			case c.ctrl <- pwmMsg{kind: pwmStop}:
			case <-c.done:
			}
		}
		<-c.done
		c.dead.Store(true)
		err = c.pin.Close()
	})
	return err
}

// computeHalfCycles derives the on/off half-cycle durations for one
// period at freqHz and duty: onNs = round(duty/freq*1e9),
// offNs = round((1-duty)/freq*1e9).
func computeHalfCycles(freqHz, duty float64) (onNs, offNs int64) {
	if freqHz <= 0 {
		return 0, 0
	}
	if duty < 0 {
		duty = 0
	}
	if duty > 1 {
		duty = 1
	}
	period := 1e9 / freqHz
	onNs = int64(math.Round(duty * period))
	offNs = int64(math.Round((1 - duty) * period))
	return onNs, offNs
}

func (c *PWMChannel) run(freqHz, duty float64) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(c.done)

	for {
		stopped := c.drainPending(&freqHz, &duty)
		if stopped {
			c.writeOrDie(false)
			return
		}
		c.stateMu.Lock()
		c.curFreq, c.curDuty = freqHz, duty
		c.stateMu.Unlock()
		onNs, offNs := computeHalfCycles(freqHz, duty)

		if onNs > 0 {
			if !c.writeOrDie(true) {
				return
			}
			if c.waitHalfCycle(time.Duration(onNs), &freqHz, &duty) {
				c.writeOrDie(false)
				return
			}
		}
		// Updates received during the on half-cycle apply from the off
		// half-cycle onward.
		c.stateMu.Lock()
		c.curFreq, c.curDuty = freqHz, duty
		c.stateMu.Unlock()
		_, offNs = computeHalfCycles(freqHz, duty)
		if offNs > 0 {
			if !c.writeOrDie(false) {
				return
			}
			if c.waitHalfCycle(time.Duration(offNs), &freqHz, &duty) {
				return
			}
		}
	}
}

// writeOrDie writes level to the pin. A hardware write failure marks
// the channel dead so every subsequent SetFrequency/SetDuty call
// returns PWMUpdateError, and the worker terminates without retrying
// or touching the pin again.
func (c *PWMChannel) writeOrDie(level bool) bool {
	if err := c.pin.Write(level); err != nil {
		c.dead.Store(true)
		return false
	}
	return true
}

// drainPending applies every control message already queued,
// non-blocking, updating freq/duty in place. Returns true if a Stop
// was seen.
func (c *PWMChannel) drainPending(freq, duty *float64) bool {
	for {
		select {
		case m := <-c.ctrl:
			if m.kind == pwmStop {
				return true
			}
			applyMsg(m, freq, duty)
		default:
			return false
		}
	}
}

// waitHalfCycle blocks for dur, remaining responsive to a Stop message
// (returned immediately). Frequency/duty updates received during the
// wait are applied to freq/duty right away, but since dur was already
// computed from the pre-update values, they only take effect starting
// the next half-cycle at worst.
func (c *PWMChannel) waitHalfCycle(dur time.Duration, freq, duty *float64) (stopped bool) {
	timer := time.NewTimer(dur)
	defer timer.Stop()
	for {
		select {
		case m := <-c.ctrl:
			if m.kind == pwmStop {
				return true
			}
			applyMsg(m, freq, duty)
		case <-timer.C:
			return false
		}
	}
}

func applyMsg(m pwmMsg, freq, duty *float64) {
	switch m.kind {
	case pwmSetFreq:
		*freq = m.freq
	case pwmSetDuty:
		*duty = m.duty
	}
}
