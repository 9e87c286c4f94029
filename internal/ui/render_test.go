package ui

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/two-pack/redmine-importer/internal/csvtable"
	"github.com/two-pack/redmine-importer/internal/importer"
)

var plain = Theme{}

func TestRenderResult(t *testing.T) {
	headers := []string{"#", "Subject", "Target version"}
	res := &importer.Result{
		Handled:  2,
		Updated:  1,
		Failed:   1,
		Skipped:  1,
		Headers:  headers,
		Projects: map[string]int{"Beta": 1, "Alpha": 3},
		Messages: []string{
			`Row 2: unknown priority "Urgent"`,
			`Row 3 failed: target version: version "v9.9" not found`,
			`Row 4 skipped: no issue with # "999"`,
		},
		FailedRows: map[int]csvtable.Row{
			1: {Index: 3, Headers: headers, Values: []string{"", "Needs a version", "v9.9"}},
		},
	}

	var buf bytes.Buffer
	RenderResult(&buf, plain, res)
	out := buf.String()

	assert.Contains(t, out, "IMPORT RESULT")
	assert.Contains(t, out, "✓ 2 issues handled (1 updated)")
	assert.Contains(t, out, "- 1 row skipped")
	assert.Contains(t, out, "✗ 1 row failed")
	assert.Less(t, strings.Index(out, "Alpha"), strings.Index(out, "Beta"))
	assert.Contains(t, out, "Alpha (3)")
	assert.Contains(t, out, `⎿ Row 3 failed: target version: version "v9.9" not found`)
	assert.Contains(t, out, "FAILED ROWS")
	assert.Contains(t, out, "   #  Subject"+strings.Repeat(" ", 10)+"Target version\n")
	assert.Contains(t, out, "3"+strings.Repeat(" ", 5)+"Needs a version  v9.9\n")
	assert.NotContains(t, out, "ABORTED")
	assert.NotContains(t, out, "\x1b[", "plain theme emits no escapes")
}

func TestRenderResultAborted(t *testing.T) {
	var buf bytes.Buffer
	RenderResult(&buf, plain, &importer.Result{Aborted: "row 2: ambiguous relation target"})
	out := buf.String()
	assert.Contains(t, out, "0 issues handled")
	assert.NotContains(t, out, "skipped")
	assert.Contains(t, out, "aborted: row 2: ambiguous relation target")
}

func TestRenderPreview(t *testing.T) {
	p := &importer.Preview{
		Token:    "2024-06-03 14:15:16",
		Filename: "issues.csv",
		Headers:  []string{"Subject", "Description"},
		Samples: []csvtable.Row{
			{Index: 1, Values: []string{"One", "multi\nline"}},
			{Index: 2, Values: []string{"Two"}},
		},
		Fields: []string{"description", "subject"},
	}
	var buf bytes.Buffer
	RenderPreview(&buf, plain, p)
	out := buf.String()

	assert.Contains(t, out, "STAGED issues.csv")
	assert.Contains(t, out, "token: 2024-06-03 14:15:16")
	assert.Contains(t, out, "1  One      multi⏎line")
	assert.Contains(t, out, "\n2  Two\n")
	assert.Contains(t, out, "FIELDS\n  description\n  subject\n")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefghi…", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "件名件名件名件名件…", truncate(strings.Repeat("件名", 10), 10))
}

func TestShouldUseColor(t *testing.T) {
	tests := []struct {
		name                   string
		noColor, cli, cliForce string
		want                   bool
	}{
		{name: "NO_COLOR", noColor: "1", want: false},
		{name: "CLICOLOR=0", cli: "0", want: false},
		{name: "CLICOLOR_FORCE", cliForce: "1", want: true},
		{name: "NO_COLOR beats CLICOLOR_FORCE", noColor: "1", cliForce: "1", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, "NO_COLOR", tt.noColor)
			setEnv(t, "CLICOLOR", tt.cli)
			setEnv(t, "CLICOLOR_FORCE", tt.cliForce)
			assert.Equal(t, tt.want, ShouldUseColor())
		})
	}
}

// setEnv sets or unsets key for the duration of the test.
func setEnv(t *testing.T, key, value string) {
	t.Setenv(key, value)
	if value == "" {
		_ = os.Unsetenv(key)
	}
}
