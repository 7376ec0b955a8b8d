package reporting

import (
	"github.com/ethereum-optimism/infra/fix-acceptor/types"
)

// ExitCode returns 0 only if every suite has zero failures
func ExitCode(results []types.SuiteResult) int {
	for _, r := range results {
		if r.ExitCode() != 0 {
			return 1
		}
	}
	return 0
}
