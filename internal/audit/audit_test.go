package audit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/tagscope/internal/analysis"
	"evalgo.org/tagscope/internal/config"
	"evalgo.org/tagscope/models"
)

func report(t *testing.T, in string) *analysis.Report {
	t.Helper()
	c, err := models.ParseContainer([]byte(in))
	require.NoError(t, err)
	return analysis.New(config.DefaultAnalysisConfig(), nil).Analyze(c)
}

func TestLogger_Disabled(t *testing.T) {
	l, err := New(config.AuditConfig{Enabled: false})
	require.NoError(t, err)

	assert.False(t, l.Enabled())
	assert.NoError(t, l.LogAnalysis(OpAnalyze, "-", report(t, `{}`), time.Second))
	assert.NoError(t, l.Close())

	_, err = l.Query(Query{})
	assert.Error(t, err)
}

func TestLogger_WriteAndQuery(t *testing.T) {
	dir := t.TempDir()
	l, err := New(config.AuditConfig{Enabled: true, Path: dir})
	require.NoError(t, err)

	empty := report(t, `{}`)
	paused := report(t, `{"tag": [{"tagId": "1", "name": "x", "type": "ua", "paused": true}]}`)

	require.NoError(t, l.LogAnalysis(OpAnalyze, "a.json", empty, 5*time.Millisecond))
	require.NoError(t, l.LogAnalysis(OpWatch, "b.json", paused, time.Millisecond))

	all, err := l.Query(Query{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	assert.Equal(t, empty.ID, all[0].ReportID)
	assert.Equal(t, "a.json", all[0].Source)
	assert.Equal(t, 100.0, all[0].Score)
	assert.Equal(t, int64(5), all[0].DurationMS)
	assert.Len(t, all[0].ID, 36)

	assert.Equal(t, len(paused.Issues), all[1].Issues)
	assert.Equal(t, paused.Counts(), all[1].Counts)

	watch, err := l.Query(Query{Operation: OpWatch})
	require.NoError(t, err)
	require.Len(t, watch, 1)
	assert.Equal(t, "b.json", watch[0].Source)

	byID, err := l.Query(Query{ReportID: empty.ID})
	require.NoError(t, err)
	assert.Len(t, byID, 1)

	last, err := l.Query(Query{Limit: 1})
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, OpWatch, last[0].Operation)

	future, err := l.Query(Query{StartTime: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, future)

	require.NoError(t, l.Close())
}

func TestLogger_RotatesDaily(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)

	l, err := New(config.AuditConfig{Enabled: true, Path: dir})
	require.NoError(t, err)
	l.now = func() time.Time { return day }
	require.NoError(t, l.rotateLocked())

	require.NoError(t, l.LogAnalysis(OpAnalyze, "-", report(t, `{}`), 0))
	require.NoError(t, l.Flush())

	day = day.Add(2 * time.Minute)
	require.NoError(t, l.LogAnalysis(OpAnalyze, "-", report(t, `{}`), 0))
	require.NoError(t, l.Close())

	for _, name := range []string{"analysis-audit-2026-03-01.jsonl", "analysis-audit-2026-03-02.jsonl"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.NotEmpty(t, data, name)
	}
}

func TestReadFile_SkipsTornLines(t *testing.T) {
	name := filepath.Join(t.TempDir(), "analysis-audit-2026-01-01.jsonl")
	require.NoError(t, os.WriteFile(name, []byte(`{"id":"a","operation":"analyze"}`+"\n"+`{"id":"b",`+"\n"), 0o644))

	entries, err := readFile(name)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].ID)
}
