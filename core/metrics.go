package core

import (
	"context"
	"strconv"
	"time"
)

const (
	MetricRequestTotal    = "bca.request.total"
	MetricRequestDuration = "bca.request.duration_ms"
)

// NopMetricsRecorder is the default when no recorder is registered.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func (s *Service) recordMetrics(ctx context.Context, exec *execution, elapsed time.Duration) {
	s.metricsRecorder.IncCounter(ctx, MetricRequestTotal, 1, executionTags(exec))
	s.metricsRecorder.ObserveHistogram(ctx, MetricRequestDuration, float64(elapsed.Milliseconds()), executionTags(exec))
}

// executionTags builds a fresh map per call; recorders may keep it.
func executionTags(exec *execution) map[string]string {
	tags := map[string]string{
		"method": exec.method,
		"state":  string(exec.state),
	}
	if exec.failedStage != "" {
		tags["stage"] = exec.failedStage
	}
	if status := exec.response.StatusCode; status > 0 {
		tags["status_class"] = strconv.Itoa(status/100) + "xx"
	}
	if code, ok := exec.response.Metadata[MetaBCAErrorCode].(string); ok && code != "" {
		tags[MetaBCAErrorCode] = code
	}
	return tags
}
