package importer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/japanese"
)

func TestStagePreview(t *testing.T) {
	f := newFixture(t)
	var b strings.Builder
	b.WriteString("Subject,Tracker\n")
	for i := 1; i <= 8; i++ {
		fmt.Fprintf(&b, "Issue %d,Bug\n", i)
	}

	preview, err := f.imp.Stage(context.Background(), StageRequest{
		Actor: f.admin, ProjectID: projAlpha, Filename: "issues.csv", Data: []byte(b.String()),
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-03 14:15:16", preview.Token)
	assert.Equal(t, []string{"Subject", "Tracker"}, preview.Headers)
	require.Len(t, preview.Samples, SampleSize)
	assert.Equal(t, []string{"Issue 5", "Bug"}, preview.Samples[4].Values)
	assert.Contains(t, preview.Fields, "subject")
	assert.Contains(t, preview.Fields, "Tags")
	assert.Contains(t, preview.Fields, "precedes")

	sess, err := f.sessions.Get(context.Background(), userAdmin)
	require.NoError(t, err)
	assert.Equal(t, "issues.csv", sess.Filename)
	assert.Equal(t, ",", sess.ColSep)
}

func TestStageDialect(t *testing.T) {
	f := newFixture(t)

	preview, err := f.imp.Stage(context.Background(), StageRequest{
		Actor: f.admin, ProjectID: projAlpha, Filename: "issues.txt",
		Data:      []byte("Subject;Description\n'A; B';'it''s'\n"),
		Delimiter: ";",
		Quote:     "'",
	})
	require.NoError(t, err)
	require.Len(t, preview.Samples, 1)
	assert.Equal(t, []string{"A; B", "it's"}, preview.Samples[0].Values)

	res, err := f.imp.Run(context.Background(), RunRequest{Actor: f.admin, Token: preview.Token, Options: Options{
		ProjectID:        projAlpha,
		DefaultTrackerID: trackerBug,
		Mappings:         mappings("Subject", "subject", "Description", "description"),
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Handled)
	assert.Equal(t, "it's", f.findBySubject(t, "A; B").Description)
}

func TestStageEncoding(t *testing.T) {
	f := newFixture(t)
	sjis, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte("件名\n不具合\n"))
	require.NoError(t, err)

	preview, err := f.imp.Stage(context.Background(), StageRequest{
		Actor: f.admin, ProjectID: projAlpha, Filename: "sjis.csv", Data: sjis, Encoding: "Shift_JIS",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"件名"}, preview.Headers)
	assert.Equal(t, []string{"不具合"}, preview.Samples[0].Values)
}

func TestStageRejects(t *testing.T) {
	tests := []struct {
		name     string
		req      StageRequest
		want     error
		keepData bool
	}{
		{
			name: "invalid utf-8",
			req:  StageRequest{Filename: "bad.csv", Data: []byte("Subject\n\xff\xfe\n")},
			want: ErrInvalidEncoding,
		},
		{
			name:     "header only",
			req:      StageRequest{Filename: "empty.csv", Data: []byte("Subject,Tracker\n")},
			want:     ErrEmptyTable,
			keepData: true,
		},
		{
			name:     "nothing at all",
			req:      StageRequest{Filename: "empty.csv", Data: nil},
			want:     ErrEmptyTable,
			keepData: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.req.Actor, tt.req.ProjectID = f.admin, projAlpha
			_, err := f.imp.Stage(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.want)

			sess, err := f.sessions.Get(context.Background(), userAdmin)
			require.NoError(t, err, "the staged table is saved anyway")
			if tt.keepData {
				assert.Equal(t, string(tt.req.Data), sess.CSVData)
			} else {
				assert.Empty(t, sess.CSVData)
			}
		})
	}
}

func TestStageMissingHeaders(t *testing.T) {
	f := newFixture(t)

	preview, err := f.imp.Stage(context.Background(), StageRequest{
		Actor: f.admin, ProjectID: projAlpha, Filename: "gaps.csv", Data: []byte("Subject,,Tracker,\nOne,x,Bug,y\n"),
	})
	var merr *MissingHeadersError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, []int{2, 4}, merr.Positions)
	assert.Equal(t, "column header missing at position 2, 4", err.Error())
	require.NotNil(t, preview)
	assert.Len(t, preview.Samples, 1)
}

func TestStageReplacesPreviousTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := StageRequest{Actor: f.admin, ProjectID: projAlpha, Filename: "one.csv", Data: []byte("Subject\nOne\n")}
	_, err := f.imp.Stage(ctx, req)
	require.NoError(t, err)

	req.Filename, req.Data = "two.csv", []byte("Subject\nTwo\n")
	_, err = f.imp.Stage(ctx, req)
	require.NoError(t, err)

	sess, err := f.sessions.Get(ctx, userAdmin)
	require.NoError(t, err)
	assert.Equal(t, "two.csv", sess.Filename)
	assert.Equal(t, "Subject\nTwo\n", sess.CSVData)
}

func TestStageSpreadsheet(t *testing.T) {
	f := newFixture(t)
	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	require.NoError(t, wb.SetSheetRow(sheet, "A1", &[]any{"Subject", "Tracker", "Notes"}))
	require.NoError(t, wb.SetSheetRow(sheet, "A2", &[]any{"From a workbook", "Feature"}))
	require.NoError(t, wb.SetSheetRow(sheet, "A3", &[]any{"With, comma", "Bug", "multi\nline"}))
	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, wb.Close())

	preview, err := f.imp.Stage(context.Background(), StageRequest{
		Actor: f.admin, ProjectID: projAlpha, Filename: "Issues.XLSX", Data: buf.Bytes(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Subject", "Tracker", "Notes"}, preview.Headers)
	require.Len(t, preview.Samples, 2)
	assert.Equal(t, []string{"From a workbook", "Feature", ""}, preview.Samples[0].Values)
	assert.Equal(t, []string{"With, comma", "Bug", "multi\nline"}, preview.Samples[1].Values)

	sess, err := f.sessions.Get(context.Background(), userAdmin)
	require.NoError(t, err)
	assert.Equal(t, "UTF-8", sess.Encoding)
}

func TestStageBadSpreadsheet(t *testing.T) {
	f := newFixture(t)

	_, err := f.imp.Stage(context.Background(), StageRequest{
		Actor: f.admin, ProjectID: projAlpha, Filename: "broken.xlsx", Data: []byte("not a zip"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open spreadsheet")
}
