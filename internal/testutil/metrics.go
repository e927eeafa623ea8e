package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// ScrapeMetrics requests /metrics from handler and returns the exposition body.
func ScrapeMetrics(t *testing.T, handler http.Handler) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics endpoint returned status %d", rr.Code)
	}
	body, err := io.ReadAll(rr.Body)
	if err != nil {
		t.Fatalf("failed to read metrics body: %v", err)
	}
	return string(body)
}

// ParseMetricValue returns the value of the first sample of metricName whose
// labels include every pair in want.
func ParseMetricValue(metrics, metricName string, want map[string]string) (string, error) {
	for _, line := range strings.Split(metrics, "\n") {
		// Skip comments and empty lines
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, metricName) {
			continue
		}

		// Format: metric_name{label1="value1",label2="value2"} value
		remaining := strings.TrimPrefix(line, metricName)
		labels := make(map[string]string)
		if strings.HasPrefix(remaining, "{") {
			endBrace := strings.Index(remaining, "}")
			if endBrace == -1 {
				return "", fmt.Errorf("invalid metric format: missing closing brace")
			}
			for _, pair := range strings.Split(remaining[1:endBrace], ",") {
				parts := strings.SplitN(pair, "=", 2)
				if len(parts) == 2 {
					labels[strings.TrimSpace(parts[0])] = strings.Trim(parts[1], `"`)
				}
			}
			remaining = remaining[endBrace+1:]
		} else if !strings.HasPrefix(remaining, " ") {
			// A longer metric name sharing the prefix
			continue
		}

		if matchLabels(labels, want) {
			return strings.TrimSpace(remaining), nil
		}
	}
	return "", fmt.Errorf("metric %q with labels %v not found", metricName, want)
}

func matchLabels(have, want map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

// AssertMetricExists asserts that a sample of metricName with the given labels exists.
func AssertMetricExists(t *testing.T, metrics, metricName string, labels map[string]string) {
	t.Helper()
	if _, err := ParseMetricValue(metrics, metricName, labels); err != nil {
		t.Fatalf("metric %q does not exist: %v", metricName, err)
	}
}
