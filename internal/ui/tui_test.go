package ui

import (
	"bytes"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestNewTUIRenderer_FailsForNonTTY(t *testing.T) {
	r, err := NewTUIRenderer(NewConfig(&bytes.Buffer{}))

	assert.Error(t, err)
	assert.Nil(t, r)
}

func TestRunModel_StageIndicators(t *testing.T) {
	// Given: a model in the load stage
	tracker := NewProgressTracker()
	tracker.SetStage(StageLoad, 0)
	model := newRunModel(tracker, "documentation")
	model.styles = NoColorStyles()

	// When: rendering
	view := model.View()

	// Then: earlier stages are done, later ones pending
	assert.Contains(t, view, "● Provision")
	assert.Contains(t, view, "● Scan")
	assert.Contains(t, view, "Load")
	assert.Contains(t, view, "○ Cutover")
	assert.Contains(t, view, "docindex • documentation")
}

func TestRunModel_ProgressWithTotal(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.SetStage(StageLoad, 100)
	tracker.Update(25, 0, "docs/getting_started.md")
	model := newRunModel(tracker, "")

	view := model.View()

	assert.Contains(t, view, "25 / 100 records")
	assert.Contains(t, view, "25%")
	assert.Contains(t, view, "docs/getting_started.md")
	assert.Contains(t, view, "Speed:")
}

func TestRunModel_ProgressWithoutTotal(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.SetStage(StageLoad, 0)
	tracker.Update(15, 0, "")
	model := newRunModel(tracker, "")

	assert.Contains(t, model.View(), "15 records")
}

func TestRunModel_StatusBar(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.AddError(ErrorEvent{Err: assert.AnError})
	tracker.AddError(ErrorEvent{Err: assert.AnError, IsWarn: true})
	model := newRunModel(tracker, "")

	view := model.View()

	assert.Contains(t, view, "1 warnings")
	assert.Contains(t, view, "1 rejected")
	assert.Contains(t, view, "ctrl+c to abort")
}

func TestRunModel_CompleteView(t *testing.T) {
	// Given: a model
	model := newRunModel(NewProgressTracker(), "documentation")

	// When: the completion message arrives
	_, cmd := model.Update(completeMsg(CompletionStats{
		Index:    "documentation_index_ab12cd34",
		Alias:    "documentation",
		Files:    3,
		Records:  3,
		Failed:   1,
		Duration: 90 * time.Second,
		After:    []string{"documentation_index_ab12cd34"},
	}))

	// Then: the program quits and the summary is shown
	assert.NotNil(t, cmd)
	view := model.View()
	assert.Contains(t, view, "Ingestion Complete")
	assert.Contains(t, view, "documentation_index_ab12cd34")
	assert.Contains(t, view, "1m 30s")
	assert.Contains(t, view, "1 records rejected")
}

func TestRunModel_CtrlCInterrupts(t *testing.T) {
	// Given: a model with an interrupt handler
	interrupted := false
	model := newRunModel(NewProgressTracker(), "")
	model.onInterrupt = func() { interrupted = true }

	// When: ctrl+c is pressed
	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	// Then: the run is cancelled and the view says so
	assert.True(t, interrupted)
	assert.NotNil(t, cmd)
	assert.Equal(t, "Cancelled.\n", model.View())
}

func TestRunModel_WindowResize(t *testing.T) {
	model := newRunModel(NewProgressTracker(), "")

	model.Update(tea.WindowSizeMsg{Width: 30, Height: 10})

	assert.Equal(t, 30, model.width)
	assert.Equal(t, 20, model.progressBar.Width)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{45 * time.Second, "45s"},
		{2 * time.Minute, "2m"},
		{150 * time.Second, "2m 30s"},
		{2*time.Hour + 5*time.Minute, "2h 5m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.in))
	}
}

func TestTruncateFilePath(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		maxLen int
		want   string
	}{
		{"fits", "docs/a.md", 20, "docs/a.md"},
		{"keeps file name", "docs/reference/api/client.md", 20, "...nce/api/client.md"},
		{"long name", "docs/a_very_long_file_name.md", 12, "...e_name.md"},
		{"no slash", "averyveryverylongname.md", 10, "...name.md"},
		{"tiny", "docs/a.md", 3, "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateFilePath(tt.path, tt.maxLen)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), max(tt.maxLen, 3))
		})
	}
}
