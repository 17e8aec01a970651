package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/Priya8975/leadsync/internal/domain"
	"github.com/Priya8975/leadsync/internal/worker"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func testReport() *domain.RunReport {
	started := time.Date(2025, 9, 15, 10, 0, 0, 0, time.UTC)
	cursor := domain.Cursor{CreatedAt: started.Add(-time.Hour), EventKey: "e9"}
	return &domain.RunReport{
		RunID:       "run-1",
		State:       domain.StateTimeboxed,
		StopReason:  domain.StopPageBudget,
		Synced:      2000,
		Staged:      2000,
		Uniques:     17,
		Pages:       2,
		Cursor:      cursor,
		HasMore:     true,
		ResumeToken: cursor.Token(),
		StartedAt:   started,
		FinishedAt:  started.Add(1500 * time.Millisecond),
	}
}

func TestPrintReport_Table(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, "table", testReport()))

	out := buf.String()
	assert.Contains(t, out, "timeboxed")
	assert.Contains(t, out, "page_budget")
	assert.Contains(t, out, "NEXT CURSOR")
	assert.Contains(t, out, "1.5s")
}

func TestPrintReport_YAMLUsesJSONNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, "yaml", testReport()))

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "run-1", doc["run_id"])
	assert.Equal(t, true, doc["has_more"])
	assert.NotEmpty(t, doc["next_cursor"])
}

func TestPrintFollow_JSON(t *testing.T) {
	var buf bytes.Buffer
	res := worker.FollowResult{Runs: 3, Synced: 2500, Last: testReport()}
	require.NoError(t, printFollow(&buf, "json", res))

	var doc followView
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, 3, doc.Runs)
	assert.Equal(t, 2500, doc.Synced)
	assert.Equal(t, "run-1", doc.Last.RunID)
}

func TestPrintCursor_ZeroHasNoToken(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printCursor(&buf, "table", "directus-events", domain.Cursor{}))
	assert.Contains(t, buf.String(), "<start>")
	assert.NotContains(t, buf.String(), "RESUME TOKEN")
}

func TestRunOptions_EngineOptions(t *testing.T) {
	opts := &RunOptions{Since: "2025-09-01", Batch: 500, Budget: time.Minute}
	got, err := opts.engineOptions()
	require.NoError(t, err)
	require.NotNil(t, got.Since)
	assert.Equal(t, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), *got.Since)
	assert.Equal(t, 500, got.BatchSize)
	assert.Equal(t, time.Minute, got.TimeBudget)

	_, err = (&RunOptions{Since: "soon"}).engineOptions()
	assert.Error(t, err)
	_, err = (&RunOptions{Pages: -1}).engineOptions()
	assert.Error(t, err)
}

func TestRootCommand_RejectsUnknownOutput(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"version", "-o", "xml"})
	assert.Error(t, cmd.Execute())
}

func TestVersionCommand(t *testing.T) {
	cmd := NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "leadsync dev")
}
