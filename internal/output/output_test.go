package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_StatusLines(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing one line of each kind
	w.Successf("deleted %s", "documentation_index_aaaa1111")
	w.Warningf("%d orphan(s) left", 2)
	w.Errorf("delete %s: %s", "x", "not found")
	w.Status("", "indented")

	// Then: each line carries its icon
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"✓ deleted documentation_index_aaaa1111",
		"! 2 orphan(s) left",
		"✗ delete x: not found",
		"  indented",
	}, lines)
}

func TestWriter_Code(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Code("index:\n  alias: docs\n")

	assert.Equal(t, "\n  index:\n    alias: docs\n\n", buf.String())
}

func TestWriter_Newline(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Newline()
	assert.Equal(t, "\n", buf.String())
}

func TestWriter_Table(t *testing.T) {
	// Given: a writer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a table with a short row
	w.Table([]string{"index", "docs", "state"}, [][]string{
		{"documentation_index_aaaa1111", "42", "bound"},
		{"documentation_index_b", "7"},
	})

	// Then: columns line up under an upper-case header
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "INDEX"))
	col := strings.Index(lines[0], "DOCS")
	assert.Equal(t, "42", lines[1][col:col+2])
	assert.Equal(t, "7", lines[2][col:col+1])
}
