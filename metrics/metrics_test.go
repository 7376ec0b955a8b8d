package metrics

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/ethereum-optimism/infra/fix-acceptor/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestErrToLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "nil error",
			err:  nil,
		},
		{
			name: "simple error",
			err:  errors.New("test error"),
		},
		{
			name: "error with special chars",
			err:  errors.New("exec: ./fix: no such file"),
		},
		{
			name: "error with multiple spaces",
			err:  errors.New("port   busy"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := errToLabel(tt.err)
			validLabelRegex := regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
			assert.Regexp(t, validLabelRegex, result)
		})
	}
}

func TestRecordError(t *testing.T) {
	before := testutil.ToFloat64(errorsTotal.WithLabelValues("test_error"))
	RecordError("test_error")
	assert.Equal(t, before+1, testutil.ToFloat64(errorsTotal.WithLabelValues("test_error")))

	assert.NotPanics(t, func() {
		RecordErrorDetails("test", nil)
		RecordErrorDetails("test", errors.New("sample error"))
	})
}

func TestRecordTrial(t *testing.T) {
	counter := trialsTotal.WithLabelValues("fix", "logon", string(types.TrialStatusFail))
	before := testutil.ToFloat64(counter)

	RecordTrial("fix", "logon", types.TrialStatusFail, time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))

	// Unknown results are dropped
	RecordTrial("fix", "logon", types.TrialStatus("skip"), time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestRecordSuite(t *testing.T) {
	RecordSuite(types.SuiteResult{Suite: "fast", Total: 5, Failures: 2})
	assert.Equal(t, 5.0, testutil.ToFloat64(suiteTests.WithLabelValues("fast")))
	assert.Equal(t, 2.0, testutil.ToFloat64(suiteFailures.WithLabelValues("fast")))
}

func TestRecordRun(t *testing.T) {
	RecordRun(false, 3*time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(runResult.WithLabelValues("fail")))
	assert.Equal(t, 0.0, testutil.ToFloat64(runResult.WithLabelValues("pass")))
	assert.Equal(t, 3.0, testutil.ToFloat64(runDuration))

	RecordRun(true, time.Second)
	assert.Equal(t, 0.0, testutil.ToFloat64(runResult.WithLabelValues("fail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(runResult.WithLabelValues("pass")))
}
