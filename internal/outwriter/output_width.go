package outwriter

import (
	"os"

	"github.com/huangsam/busfactor/internal/contract"
	"golang.org/x/term"
)

// Fixed columns of the hot spot table: rank, commits, contributors, bus factor, owner and share.
const hotSpotFixedWidth = 60

// GetMaxTablePathWidth calculates the maximum width for file paths in table output
// based on terminal width and table configuration.
func GetMaxTablePathWidth(cfg *contract.Config) int {
	termWidth := cfg.Width

	if termWidth == 0 { // Not set by override
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detectedWidth
		}
	}

	// Borders, separators and padding
	available := termWidth - hotSpotFixedWidth - 20
	if available < 15 {
		return 15
	}
	if available > 70 {
		return 70
	}
	return available
}
