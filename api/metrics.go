package api

import (
	"sync"
	"time"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

const (
	AlertLoginFailureSpike AlertType = "login_failure_spike"
	AlertResetCodeSpike    AlertType = "reset_code_spike"
)

// AlertEvent describes an anomaly that triggered an alert.
type AlertEvent struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is the callback invoked when an anomaly is detected.
type AlertFunc func(AlertEvent)

// slidingWindow counts events inside a trailing time window.
type slidingWindow struct {
	alert     AlertType
	message   string
	window    time.Duration
	threshold int
	hits      []time.Time
}

// metricsCollector watches audit events for bursts across all accounts,
// which the per-key rate limiters cannot see.
type metricsCollector struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[AuditEvent]*slidingWindow
	alertFn AlertFunc
}

const (
	defaultLoginFailureWindow    = 1 * time.Minute
	defaultLoginFailureThreshold = 50
	defaultResetCodeWindow       = 5 * time.Minute
	defaultResetCodeThreshold    = 20
)

func newMetricsCollector(alertFn AlertFunc, now func() time.Time) *metricsCollector {
	if now == nil {
		now = time.Now
	}
	return &metricsCollector{
		now:     now,
		alertFn: alertFn,
		windows: map[AuditEvent]*slidingWindow{
			AuditLoginFailure: {
				alert:     AlertLoginFailureSpike,
				message:   "login failure rate exceeds threshold",
				window:    defaultLoginFailureWindow,
				threshold: defaultLoginFailureThreshold,
			},
			AuditPasswordResetIssued: {
				alert:     AlertResetCodeSpike,
				message:   "password reset code rate exceeds threshold",
				window:    defaultResetCodeWindow,
				threshold: defaultResetCodeThreshold,
			},
		},
	}
}

// recordEvent updates the window tracking event, if any, and fires an
// alert when it reaches its threshold.
func (m *metricsCollector) recordEvent(event AuditEvent) {
	if m == nil || m.alertFn == nil {
		return
	}
	m.mu.Lock()
	w, ok := m.windows[event]
	if !ok {
		m.mu.Unlock()
		return
	}
	now := m.now()
	w.hits = append(w.hits, now)
	w.hits = trimWindow(w.hits, now, w.window)
	if len(w.hits) < w.threshold {
		m.mu.Unlock()
		return
	}
	alert := AlertEvent{
		Type:      w.alert,
		Message:   w.message,
		Count:     len(w.hits),
		Threshold: w.threshold,
		Timestamp: now,
	}
	// Reset to avoid repeated alerts within the same spike.
	w.hits = w.hits[:0]
	m.mu.Unlock()

	m.alertFn(alert)
}

// trimWindow removes entries older than (now - window) from the sorted slice.
func trimWindow(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	return times[start:]
}
