package analytics

import (
	"testing"
	"time"
)

func metric(path string, status int, d time.Duration) *RequestMetric {
	return &RequestMetric{
		Timestamp:  time.Now(),
		Method:     "GET",
		Path:       path,
		StatusCode: status,
		Duration:   d,
		Resource:   extractResource(path),
	}
}

func TestRecordAndOverview(t *testing.T) {
	ut := NewUsageTracker(100)
	ut.Record(metric("/api/feed", 200, 10*time.Millisecond))
	ut.Record(metric("/api/feed", 200, 30*time.Millisecond))
	ut.Record(metric("/api/reports", 500, 20*time.Millisecond))

	ov := ut.GetOverview()
	if ov.TotalRequests != 3 {
		t.Errorf("expected 3 requests, got %d", ov.TotalRequests)
	}
	if ov.TotalErrors != 1 {
		t.Errorf("expected 1 error, got %d", ov.TotalErrors)
	}
	if ov.UniqueEndpoints != 2 {
		t.Errorf("expected 2 endpoints, got %d", ov.UniqueEndpoints)
	}
	if ov.AvgLatency != 20*time.Millisecond {
		t.Errorf("expected 20ms avg latency, got %s", ov.AvgLatency)
	}
}

func TestEndpointStats(t *testing.T) {
	ut := NewUsageTracker(100)
	ut.Record(metric("/api/feed", 200, 10*time.Millisecond))
	ut.Record(metric("/api/feed", 404, 10*time.Millisecond))

	s := ut.GetEndpointStats("/api/feed")
	if s == nil {
		t.Fatal("expected endpoint stats")
	}
	if s.TotalRequests != 2 {
		t.Errorf("expected 2 requests, got %d", s.TotalRequests)
	}
	if s.ErrorRate != 0.5 {
		t.Errorf("expected 0.5 error rate, got %f", s.ErrorRate)
	}
	if s.StatusBreakdown[404] != 1 {
		t.Errorf("expected one 404, got %d", s.StatusBreakdown[404])
	}

	if ut.GetEndpointStats("/api/unknown") != nil {
		t.Error("expected nil for unseen endpoint")
	}
}

func TestTopEndpointsSorted(t *testing.T) {
	ut := NewUsageTracker(100)
	for i := 0; i < 5; i++ {
		ut.Record(metric("/api/feed", 200, time.Millisecond))
	}
	ut.Record(metric("/api/reports", 200, time.Millisecond))

	top := ut.GetTopEndpoints(10)
	if len(top) != 2 {
		t.Fatalf("expected 2 endpoints, got %d", len(top))
	}
	if top[0].Path != "/api/feed" {
		t.Errorf("expected /api/feed first, got %s", top[0].Path)
	}
}

func TestRingBufferWrapAround(t *testing.T) {
	ut := NewUsageTracker(4)
	for i := 0; i < 10; i++ {
		ut.Record(metric("/api/feed", 200, time.Millisecond))
	}
	if got := ut.GetOverview().TotalRequests; got != 10 {
		t.Errorf("counters must survive buffer wrap, got %d", got)
	}
	if len(ut.metrics) != 4 {
		t.Errorf("ring buffer must stay capped, got %d", len(ut.metrics))
	}
}

func TestExtractResource(t *testing.T) {
	cases := map[string]string{
		"/api/reports/123": "reports",
		"/api/analyses":    "analyses",
		"/health":          "",
	}
	for path, want := range cases {
		if got := extractResource(path); got != want {
			t.Errorf("extractResource(%s) = %q, want %q", path, got, want)
		}
	}
}

func TestErrorRateEmptyTracker(t *testing.T) {
	ut := NewUsageTracker(10)
	if ut.GetErrorRate() != 0 {
		t.Error("empty tracker must report zero error rate")
	}
}

func TestParseDurationParam(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"", time.Minute},
		{"5m", 5 * time.Minute},
		{"2h", 2 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
		{"garbage", time.Minute},
	}
	for _, tc := range cases {
		if got := parseDurationParam(tc.in, time.Minute); got != tc.want {
			t.Errorf("parseDurationParam(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
