package graphics

import (
	"os"
	"strings"
)

// kittyTerms are TERM/TERM_PROGRAM values known to speak the graphics
// protocol.
var kittyTerms = []string{"kitty", "wezterm", "ghostty"}

// DetectEnv guesses graphics support from terminal-identifying
// environment variables. It is a heuristic only; Query and
// ParseResponse are the ground truth.
func DetectEnv() bool {
	return detectEnv(os.Getenv)
}

func detectEnv(getenv func(string) string) bool {
	if getenv("KITTY_WINDOW_ID") != "" {
		return true
	}
	// Konsole exposes its version and supports the protocol since 22.04.
	if getenv("KONSOLE_VERSION") != "" {
		return true
	}
	for _, v := range []string{getenv("TERM"), getenv("TERM_PROGRAM")} {
		v = strings.ToLower(v)
		for _, name := range kittyTerms {
			if strings.Contains(v, name) {
				return true
			}
		}
	}
	return false
}
