package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/fix-acceptor/types"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "fix_acceptor"
)

var (
	Debug                bool = true
	validStatuses             = []types.TrialStatus{types.TrialStatusPass, types.TrialStatusFail, types.TrialStatusAborted}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	// Registry holds every fix-acceptor metric and is what the metrics server exposes
	Registry = opmetrics.NewRegistry()
	factory  = promauto.With(Registry)

	errorsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	trialsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "trials_total",
		Help:      "Count of trials by suite and result",
	}, []string{
		"suite",
		"test",
		"result",
	})

	trialDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "trial_duration_seconds",
		Help:      "Duration of single trials",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{
		"suite",
	})

	suiteTests = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "suite_tests",
		Help:      "Number of tests run in the last completed suite",
	}, []string{
		"suite",
	})

	suiteFailures = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "suite_failures",
		Help:      "Number of failed or aborted tests in the last completed suite",
	}, []string{
		"suite",
	})

	runResult = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_result",
		Help:      "Result of the last run (1 for the current result label)",
	}, []string{
		"result",
	})

	runDuration = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of the last run",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

func RecordTrial(suite string, test string, result types.TrialStatus, duration time.Duration) {
	if !isValidStatus(result) {
		log.Error("RecordTrial - invalid result", "result", result)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "trials_total",
			"suite", suite,
			"test", test,
			"result", result)
	}
	trialsTotal.WithLabelValues(suite, test, string(result)).Inc()
	trialDuration.WithLabelValues(suite).Observe(duration.Seconds())
}

func RecordSuite(result types.SuiteResult) {
	suiteTests.WithLabelValues(result.Suite).Set(float64(result.Total))
	suiteFailures.WithLabelValues(result.Suite).Set(float64(result.Failures))
}

func RecordRun(passed bool, duration time.Duration) {
	current, previous := "fail", "pass"
	if passed {
		current, previous = previous, current
	}
	runResult.WithLabelValues(current).Set(1)
	runResult.WithLabelValues(previous).Set(0)
	runDuration.Set(duration.Seconds())
}

func isValidStatus(result types.TrialStatus) bool {
	return slices.Contains(validStatuses, result)
}
