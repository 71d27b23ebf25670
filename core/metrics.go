package core

import (
	"context"
	"strings"
)

const metricNamespace = "issuer"

// NopMetricsRecorder is used when no recorder is configured.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// metricName joins parts under the issuer namespace, for example
// issuer.revoke_credential.total.
func metricName(parts ...string) string {
	return metricNamespace + "." + strings.Join(parts, ".")
}

// recordLoopOutcomes emits one counter per non-zero outcome of a background
// loop run, named issuer.<loop>.<outcome>.
func recordLoopOutcomes(ctx context.Context, recorder MetricsRecorder, loop string, outcomes map[string]int) {
	if recorder == nil {
		return
	}
	for outcome, count := range outcomes {
		if count <= 0 {
			continue
		}
		recorder.IncCounter(ctx, metricName(loop, outcome), int64(count), map[string]string{"loop": loop})
	}
}

func cloneTags(tags map[string]string) map[string]string {
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var _ MetricsRecorder = NopMetricsRecorder{}
