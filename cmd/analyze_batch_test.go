package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeBatch_CollisionSuffixAndHTML(t *testing.T) {
	home := tempHome(t)

	// Two CSV files with the same basename in different directories
	csv := "col1,col2\nA,1\nB,2\nC,3\n"
	for _, d := range []string{"d1", "d2"} {
		require.NoError(t, os.MkdirAll(filepath.Join(home, d), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(home, d, "metrics.csv"), []byte(csv), 0o644))
	}
	outDir := filepath.Join(home, "reports")

	out := runCmd(t, "analyze-batch", filepath.Join(home, "d*", "metrics.csv"), "--out-dir", outDir, "--html")
	assert.Contains(t, out, "[1/2] Processing metrics.csv...")
	assert.Contains(t, out, "[2/2] Processing metrics.csv...")
	assert.Contains(t, out, "writing to metrics__2.report.json")

	for _, name := range []string{"metrics.report.json", "metrics__2.report.json", "metrics.html", "metrics__2.html"} {
		_, err := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, err, name)
	}

	b, err := os.ReadFile(filepath.Join(outDir, "metrics__2.report.json"))
	require.NoError(t, err)
	var res analysisOutput
	require.NoError(t, json.Unmarshal(b, &res))
	assert.Equal(t, 3, res.Insights.RowCount)
	assert.NotEmpty(t, res.Recommendations)
}

func TestAnalyzeBatch_KeepGoing(t *testing.T) {
	home := tempHome(t)
	good := filepath.Join(home, "good.csv")
	bad := filepath.Join(home, "bad.txt")
	require.NoError(t, os.WriteFile(good, []byte("a\n1\n2\n"), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o644))
	outDir := filepath.Join(home, "out")

	_, err := execCmd(t, "analyze-batch", bad, good, "--out-dir", outDir)
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(outDir, "good.report.json"))
	assert.True(t, os.IsNotExist(statErr), "batch stops at the first failure")

	_, err = execCmd(t, "analyze-batch", bad, good, "--out-dir", outDir, "--keep-going", "--quiet")
	assert.ErrorContains(t, err, "1 of 2 files failed")
	_, statErr = os.Stat(filepath.Join(outDir, "good.report.json"))
	assert.NoError(t, statErr)
}

func TestAnalyzeBatch_NoMatches(t *testing.T) {
	home := tempHome(t)
	_, err := execCmd(t, "analyze-batch", filepath.Join(home, "*.csv"))
	assert.ErrorContains(t, err, "no input files matched")
}

func TestOutputBase(t *testing.T) {
	assert.Equal(t, "sales", outputBase("/tmp/sales.xlsx", ""))
	assert.Equal(t, "sales__sheet-q1-totals", outputBase("/tmp/sales.xlsx", "Q1 Totals!"))
	assert.Equal(t, "sales__sheet-sheet", outputBase("sales.xlsx", "%%"))
}
