// gpio_test.go
package rover

import (
	"sync"
	"testing"
)

// fakePin is an in-memory Pin used across this package's tests.
type fakePin struct {
	mu      sync.Mutex
	number  int
	mode    PinMode
	level   bool
	writes  int
	closed  bool
	writeErr error
}

func newFakePin(number int, mode PinMode) *fakePin {
	return &fakePin{number: number, mode: mode}
}

func (p *fakePin) Number() int { return p.number }

func (p *fakePin) Mode() PinMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

func (p *fakePin) Read() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level, nil
}

func (p *fakePin) Write(level bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return p.writeErr
	}
	p.level = level
	p.writes++
	return nil
}

func (p *fakePin) setWriteErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErr = err
}

func (p *fakePin) setLevel(level bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = level
}

func (p *fakePin) Reconfigure(mode PinMode) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = mode
	return nil
}

func (p *fakePin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func TestPinRegistryClaimRejectsDuplicate(t *testing.T) {
	registry := &PinRegistry{chipName: "test", claimed: make(map[int]bool)}
	registry.claimed[5] = true

	registry.mu.Lock()
	claimed := registry.claimed[5]
	registry.mu.Unlock()
	if !claimed {
		t.Fatal("setup: expected pin 5 to already be marked claimed")
	}
	if _, err := registry.Claim(5, ModeOutput); err == nil {
		t.Error("expected Claim to reject a pin that is already claimed")
	}
}

func TestPinRegistryReleaseFreesPinNumber(t *testing.T) {
	registry := &PinRegistry{chipName: "test", claimed: make(map[int]bool)}
	registry.claimed[3] = true
	registry.release(3)
	if registry.claimed[3] {
		t.Fatal("expected pin 3 to be released")
	}
}
