package observability

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveGraph(t *testing.T) {
	// Collectors are process-global, so compare deltas under a label no
	// other test uses.
	const language = "observe-test"
	before := testutil.ToFloat64(TokensTotal.WithLabelValues(language))

	ObserveGraph(language, GraphCounts{Tokens: 12, Declarations: 3, Bindings: 5, Unresolved: 2, Calls: 1}, 5*time.Millisecond)

	assert.Equal(t, before+12, testutil.ToFloat64(TokensTotal.WithLabelValues(language)))
	assert.Equal(t, 1.0, testutil.ToFloat64(FilesIndexedTotal.WithLabelValues(language)))
	assert.Equal(t, 3.0, testutil.ToFloat64(DeclarationsTotal.WithLabelValues(language)))
	assert.Equal(t, 5.0, testutil.ToFloat64(BindingsTotal.WithLabelValues(language)))
	assert.Equal(t, 2.0, testutil.ToFloat64(UnresolvedTotal.WithLabelValues(language)))
	assert.Equal(t, 1.0, testutil.ToFloat64(CallsTotal.WithLabelValues(language)))
}

func TestWriteTextfile(t *testing.T) {
	IndexErrorsTotal.Inc()
	path := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tokengraph_index_errors_total")
}
