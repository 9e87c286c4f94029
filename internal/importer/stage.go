package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/two-pack/redmine-importer/internal/csvtable"
	"github.com/two-pack/redmine-importer/internal/session"
	"github.com/two-pack/redmine-importer/internal/types"
)

// SampleSize is how many data rows a Preview shows.
const SampleSize = 5

// StageRequest uploads a table for later import.
type StageRequest struct {
	Actor     *types.User
	ProjectID int64
	Filename  string
	Data      []byte
	Encoding  string // any WHATWG encoding label; UTF-8 when empty
	Delimiter string // single character; "," when empty
	Quote     string // single character; `"` when empty
}

// Preview is what the caller shows before asking for a mapping.
type Preview struct {
	Token    string         `json:"token"`
	Filename string         `json:"filename"`
	Headers  []string       `json:"headers"`
	Samples  []csvtable.Row `json:"samples"`
	Fields   []string       `json:"fields"`
}

// Stage replaces the actor's staged table with req.Data decoded to UTF-8.
// Spreadsheets (.xlsx) are converted from their first sheet. The staged
// table is saved even when validation fails, with empty data if it could
// not be decoded.
func (imp *Importer) Stage(ctx context.Context, req StageRequest) (*Preview, error) {
	if err := imp.sessions.Delete(ctx, req.Actor.ID); err != nil {
		return nil, err
	}
	dialect, err := csvtable.OptionsFrom(req.Delimiter, req.Quote)
	if err != nil {
		return nil, err
	}

	data, encoding := req.Data, req.Encoding
	if strings.EqualFold(filepath.Ext(req.Filename), ".xlsx") {
		if data, err = spreadsheetToText(data, dialect); err != nil {
			return nil, err
		}
		encoding = "UTF-8"
	}

	sess := &session.Session{
		UserID:    req.Actor.ID,
		Filename:  req.Filename,
		Encoding:  encoding,
		ColSep:    string(dialect.Comma),
		QuoteChar: string(dialect.Quote),
		CreatedAt: imp.now().Truncate(time.Second),
	}
	text, decodeErr := decode(data, encoding)
	if decodeErr == nil {
		sess.CSVData = text
	}
	if err := imp.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	if countLines(text) <= 1 {
		return nil, ErrEmptyTable
	}

	tbl, err := csvtable.Open(strings.NewReader(text), dialect)
	if errors.Is(err, csvtable.ErrEmpty) {
		return nil, ErrEmptyTable
	}
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	preview := &Preview{Token: sess.Token(), Filename: req.Filename, Headers: tbl.Headers}
	for len(preview.Samples) < SampleSize {
		row, err := tbl.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return preview, fmt.Errorf("sample rows: %w", err)
		}
		preview.Samples = append(preview.Samples, row)
	}

	var missing []int
	for i, h := range tbl.Headers {
		if h == "" {
			missing = append(missing, i+1)
		}
	}
	if len(missing) > 0 {
		return preview, &MissingHeadersError{Positions: missing}
	}

	if preview.Fields, err = imp.Fields(ctx, req.ProjectID); err != nil {
		return preview, err
	}
	return preview, nil
}

// decode converts data from the named encoding to UTF-8.
func decode(data []byte, name string) (string, error) {
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		if !utf8.Valid(data) {
			return "", ErrInvalidEncoding
		}
		return string(data), nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return "", fmt.Errorf("encoding %q: %w", name, err)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil || bytes.ContainsRune(out, utf8.RuneError) {
		return "", ErrInvalidEncoding
	}
	return string(out), nil
}

func countLines(s string) int {
	s = strings.TrimRight(s, "\r\n")
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

// spreadsheetToText renders the first sheet of an .xlsx workbook in dialect.
func spreadsheetToText(data []byte, dialect csvtable.Options) ([]byte, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read spreadsheet: %w", err)
	}
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	var buf bytes.Buffer
	for _, r := range rows {
		for len(r) < width {
			r = append(r, "")
		}
		if err := csvtable.WriteRecord(&buf, r, dialect); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
