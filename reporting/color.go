package reporting

import (
	"os"

	"golang.org/x/term"
)

// NoColorEnv disables colour when set to any non-empty value
const NoColorEnv = "NO_COLOR"

// ColorEnabled reports whether ANSI colour should be used on out
func ColorEnabled(noColor bool, out *os.File) bool {
	if noColor || os.Getenv(NoColorEnv) != "" {
		return false
	}
	return out != nil && term.IsTerminal(int(out.Fd()))
}
