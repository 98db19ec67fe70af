// discovery.go
package rover

import (
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DiscoverGPIOChips lists the character-device GPIO chips available on
// the host (e.g. "/dev/gpiochip0"), for operators wiring up a
// RoverConfig.GPIOChip without hand-enumerating /dev. Grounded on the
// teacher's discovery.go enumerate/filter/suffix shape (there:
// go.bug.st/serial/enumerator over USB-serial ports for the SO-101 arm;
// here: a filesystem glob over gpiochip character devices, since no
// example repo in the pack retrieves a GPIO-chip enumeration library —
// recorded as a stdlib fallback in the grounding ledger).
func DiscoverGPIOChips(logger *zap.Logger) []string {
	matches, err := filepath.Glob("/dev/gpiochip*")
	if err != nil {
		if logger != nil {
			logger.Debug("gpio chip glob failed", zap.Error(err))
		}
		return nil
	}

	chips := filterCandidateChips(matches)
	if logger != nil {
		logger.Debug("discovered gpio chips", zap.Int("count", len(chips)))
	}
	return chips
}

// filterCandidateChips keeps entries that look like "gpiochipN".
func filterCandidateChips(paths []string) []string {
	var candidates []string
	for _, p := range paths {
		if isCandidateChip(filepath.Base(p)) {
			candidates = append(candidates, p)
		}
	}
	return candidates
}

func isCandidateChip(name string) bool {
	return strings.HasPrefix(name, "gpiochip")
}

// ChipSuffix extracts the trailing identifier from a chip path, e.g.
// "/dev/gpiochip0" -> "gpiochip0", for use in log fields and config
// generation.
func ChipSuffix(chipPath string) string {
	return filepath.Base(chipPath)
}
