package trainer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetricsLastRow(t *testing.T) {
	in := `                  epoch,      train/box_loss,   metrics/precision(B),metrics/mAP50-95(B),    lr/pg0
                      1,              1.2345,                0.51,             0.21,   0.0033
                      2,              1.0100,                0.63,             0.34,   0.0031
`
	metrics, err := parseMetrics(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []Metric{
		{"epoch", 2},
		{"train/box_loss", 1.01},
		{"metrics/precision(B)", 0.63},
		{"metrics/mAP50-95(B)", 0.34},
		{"lr/pg0", 0.0031},
	}, metrics)
}

func TestParseMetricsSkipsNonNumeric(t *testing.T) {
	metrics, err := parseMetrics(strings.NewReader("epoch,note,fitness\n3,n/a,0.5\n"))
	require.NoError(t, err)
	assert.Equal(t, []Metric{{"epoch", 3}, {"fitness", 0.5}}, metrics)
}

func TestParseMetricsErrors(t *testing.T) {
	_, err := parseMetrics(strings.NewReader(""))
	assert.Error(t, err)

	_, err = parseMetrics(strings.NewReader("epoch,fitness\n"))
	assert.Error(t, err)
}
