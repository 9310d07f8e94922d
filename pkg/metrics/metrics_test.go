package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(NotificationsTotal.WithLabelValues("bank-transfer", "SETTLED"))
	NotificationsTotal.WithLabelValues("bank-transfer", "SETTLED").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(NotificationsTotal.WithLabelValues("bank-transfer", "SETTLED")))

	BalanceAuditMismatches.Set(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(BalanceAuditMismatches))
}

func TestObserveOp(t *testing.T) {
	done := ObserveOp("test_op")
	done()

	assert.Equal(t, 1, testutil.CollectAndCount(OpDuration, "settlement_operation_duration_seconds"))
}

func TestRegisteredWithDefaultRegistry(t *testing.T) {
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["settlement_balance_audit_mismatches"])
	assert.True(t, names["settlement_balance_audit_wallets"])
}
