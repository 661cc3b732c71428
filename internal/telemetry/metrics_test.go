package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordTransition(t *testing.T) {
	m := NewMetrics("test")
	m.RecordTransition("campaign", "publish", "ok", 5*time.Millisecond)
	m.RecordTransition("campaign", "publish", "ok", 5*time.Millisecond)
	m.RecordTransition("campaign", "close", "forbidden", time.Millisecond)

	if got := testutil.ToFloat64(m.transitions.WithLabelValues("campaign", "publish", "ok")); got != 2 {
		t.Errorf("publish ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.transitions.WithLabelValues("campaign", "close", "forbidden")); got != 1 {
		t.Errorf("close forbidden = %v, want 1", got)
	}
}

func TestRecordNotifications(t *testing.T) {
	m := NewMetrics("test")
	m.RecordNotifications("sent", 3)
	m.RecordNotifications("failed", 0)

	if got := testutil.ToFloat64(m.notifications.WithLabelValues("sent")); got != 3 {
		t.Errorf("sent = %v, want 3", got)
	}
	if got := testutil.CollectAndCount(m.notifications); got != 1 {
		t.Errorf("series = %d, want 1", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.RecordTransition("campaign", "publish", "ok", time.Second)
	m.RecordNotifications("sent", 1)
	m.RecordExpiredCampaign()
	if m.Handler() == nil {
		t.Fatal("nil metrics must still return a handler")
	}
}
