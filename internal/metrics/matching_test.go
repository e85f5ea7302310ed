package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMatchingMetrics_Idempotent(t *testing.T) {
	RegisterMatchingMetrics()
	RegisterMatchingMetrics()
}

func TestMatchingCounters(t *testing.T) {
	before := testutil.ToFloat64(NotificationsTotal.WithLabelValues("email", "failed"))
	NotificationsTotal.WithLabelValues("email", "failed").Inc()
	after := testutil.ToFloat64(NotificationsTotal.WithLabelValues("email", "failed"))
	if after-before != 1 {
		t.Errorf("expected counter to grow by 1, got %f", after-before)
	}

	SchedulerCyclesTotal.WithLabelValues("skipped_overlap").Inc()
	if testutil.ToFloat64(SchedulerCyclesTotal.WithLabelValues("skipped_overlap")) < 1 {
		t.Error("expected skipped_overlap >= 1")
	}
}
