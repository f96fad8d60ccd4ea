package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestScanCountersIncrement(t *testing.T) {
	c := ScansTotal.WithLabelValues("upload", "completed")
	before := counterValue(t, c)

	ScansTotal.WithLabelValues("upload", "completed").Inc()

	assert.Equal(t, before+1, counterValue(t, c))
}

func TestModelCallOutcomesAreDistinct(t *testing.T) {
	success := ModelCalls.WithLabelValues("success")
	malformed := ModelCalls.WithLabelValues("malformed")
	successBefore := counterValue(t, success)
	malformedBefore := counterValue(t, malformed)

	ModelCalls.WithLabelValues("malformed").Inc()

	assert.Equal(t, malformedBefore+1, counterValue(t, malformed))
	// Incrementing one outcome never touches the other.
	assert.Equal(t, successBefore, counterValue(t, success))
}

func TestCreditsConsumed(t *testing.T) {
	before := counterValue(t, CreditsConsumed)
	CreditsConsumed.Inc()
	assert.Equal(t, before+1, counterValue(t, CreditsConsumed))
}

func TestFindingsEnrichedByProvenance(t *testing.T) {
	for _, label := range []string{"rules", "llm", "rules_fallback"} {
		c := FindingsEnriched.WithLabelValues(label)
		before := counterValue(t, c)
		FindingsEnriched.WithLabelValues(label).Inc()
		assert.Equal(t, before+1, counterValue(t, c), label)
	}
}
