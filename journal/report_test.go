package journal

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReport() RunReport {
	return RunReport{
		RunID:       "run-1",
		Created:     time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
		Account:     "paper",
		Strategy:    "ema-cross",
		Symbols:     []string{"AAPL", "MSFT"},
		Resolution:  "1d",
		Dataset:     "testdata",
		Start:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Ticks:       22,
		StartEquity: decimal.NewFromInt(100000),
		EndEquity:   decimal.NewFromInt(102500),
		MaxDDPct:    decimal.RequireFromString("1.25"),
		Orders:      map[string]int{"filled": 3, "canceled": 1},
		Updates:     9,
		Notes:       []string{"flat market"},
	}
}

func TestRunReportMath(t *testing.T) {
	r := testReport()
	assert.True(t, r.NetPL().Equal(decimal.NewFromInt(2500)))
	assert.True(t, r.ReturnPct().Equal(decimal.RequireFromString("2.5")))

	r.StartEquity = decimal.Zero
	assert.True(t, r.ReturnPct().IsZero())
}

func TestRunReportWriteOrg(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, testReport().WriteOrg(&buf))

	out := buf.String()
	assert.Contains(t, out, "* BACKTEST: ema-cross AAPL,MSFT 1d")
	assert.Contains(t, out, ":RUN_ID:      run-1")
	assert.Contains(t, out, ":NET_PL:      2500.00")
	assert.Contains(t, out, ":RETURN_PCT:  2.50")
	assert.Contains(t, out, ":MAX_DD_PCT:  1.25")
	assert.Contains(t, out, "| canceled | 1 |")
	assert.Contains(t, out, "| filled | 3 |")
	assert.Contains(t, out, "- flat market")

	// map keys are rendered sorted
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("canceled")), bytes.Index(buf.Bytes(), []byte("| filled")))
}

func TestRunReportWriteOrgFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.org")
	require.NoError(t, testReport().WriteOrgFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), ":TICKS:       22")
}
