package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ppiankov/credence/internal/model"
)

func TestMetrics_ObserveRun(t *testing.T) {
	m := New(prometheus.NewRegistry())

	run := &model.Run{
		Status: model.StatusComplete,
		Results: []model.VerificationResult{
			{ClaimID: 1, Status: model.ClassificationVerified},
			{ClaimID: 2, Status: model.ClassificationUnsupported},
			{ClaimID: 3, Status: model.ClassificationVerified},
		},
		Dropped: []model.DroppedClaim{
			{ClaimID: 4, Reason: model.DropFabricatedEvidence},
		},
		Metrics: &model.TrustMetrics{Score: 60},
	}
	m.ObserveRun(run, 2*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("complete")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.claimsTotal.WithLabelValues("verified")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.claimsTotal.WithLabelValues("unsupported")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.claimsDropped.WithLabelValues("fabricated_evidence")))
}

func TestMetrics_ObserveCall(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveCall("check", nil, time.Millisecond)
	m.ObserveCall("check", errors.New("boom"), time.Millisecond)
	m.ObserveCacheHit("check")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.capabilityCalls.WithLabelValues("check", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.capabilityCalls.WithLabelValues("check", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.capabilityCalls.WithLabelValues("check", "cache_hit")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRun(&model.Run{Status: model.StatusError}, time.Second)
		m.ObserveCall("generate", nil, time.Second)
		m.ObserveCacheHit("generate")
	})
}
