package acceptor

import (
	"github.com/ethereum-optimism/infra/fix-acceptor/types"
)

// Helper function to convert bool to int
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// getResultString returns the table label of an aggregate result
func getResultString(passed bool) string {
	if passed {
		return "✓ pass"
	}
	return "✗ fail"
}

// getStatusString returns the table label of a trial status
func getStatusString(status types.TrialStatus) string {
	switch status {
	case types.TrialStatusPass:
		return "✓ pass"
	case types.TrialStatusAborted:
		return "- abort"
	default:
		return "✗ fail"
	}
}
