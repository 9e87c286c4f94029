// Package csvtable reads delimited text whose delimiter and quote character
// are both configurable, and exposes rows keyed by the header line.
package csvtable

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformed is wrapped by every *ParseError.
var ErrMalformed = errors.New("malformed table")

// ErrEmpty is returned when the input has no header line.
var ErrEmpty = errors.New("empty table")

// ParseError reports the physical line a malformed record started or failed on.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func (e *ParseError) Unwrap() error { return ErrMalformed }

// Options configures the dialect.
type Options struct {
	Comma rune // field delimiter, default ','
	Quote rune // quote character, default '"'
}

func (o Options) withDefaults() Options {
	if o.Comma == 0 {
		o.Comma = ','
	}
	if o.Quote == 0 {
		o.Quote = '"'
	}
	return o
}

// Validate rejects dialects that cannot be parsed unambiguously.
func (o Options) Validate() error {
	o = o.withDefaults()
	switch {
	case o.Comma == o.Quote:
		return fmt.Errorf("delimiter and quote must differ (both %q)", o.Comma)
	case o.Comma == '\n' || o.Comma == '\r' || o.Quote == '\n' || o.Quote == '\r':
		return errors.New("delimiter and quote cannot be line breaks")
	}
	return nil
}

// OptionsFrom builds Options from the single-character strings users type.
func OptionsFrom(delimiter, quote string) (Options, error) {
	var o Options
	for _, p := range []struct {
		name string
		val  string
		dst  *rune
	}{{"delimiter", delimiter, &o.Comma}, {"quote", quote, &o.Quote}} {
		if p.val == "" {
			continue
		}
		if p.val == `\t` {
			*p.dst = '\t'
			continue
		}
		r := []rune(p.val)
		if len(r) != 1 {
			return o, fmt.Errorf("%s must be a single character, got %q", p.name, p.val)
		}
		*p.dst = r[0]
	}
	o = o.withDefaults()
	return o, o.Validate()
}

// Reader parses records. A quoted field may span lines and escapes the quote
// character by doubling it. A quote inside an unquoted field is malformed.
type Reader struct {
	br    *bufio.Reader
	opts  Options
	line  int
	start int
	done  bool
}

// NewReader returns a Reader for the given dialect.
func NewReader(r io.Reader, opts Options) *Reader {
	return &Reader{br: bufio.NewReader(r), opts: opts.withDefaults()}
}

// Line returns the physical line on which the last record started.
func (r *Reader) Line() int { return r.start }

func (r *Reader) errorf(line int, format string, args ...any) error {
	r.done = true
	return &ParseError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

// Read returns the next record, or io.EOF.
func (r *Reader) Read() ([]string, error) {
	if r.done {
		return nil, io.EOF
	}
	r.line++
	r.start = r.line

	var (
		fields    []string
		field     strings.Builder
		quoted    bool
		wasQuoted bool
		atStart   = true
	)
	for {
		c, _, err := r.br.ReadRune()
		if err == io.EOF {
			if quoted {
				return nil, r.errorf(r.start, "unclosed quoted field")
			}
			r.done = true
			if len(fields) == 0 && atStart && !wasQuoted {
				return nil, io.EOF
			}
			return append(fields, field.String()), nil
		}
		if err != nil {
			return nil, err
		}

		if quoted {
			if c == r.opts.Quote {
				next, _, err := r.br.ReadRune()
				if err == nil && next == r.opts.Quote {
					field.WriteRune(c)
					continue
				}
				if err == nil {
					_ = r.br.UnreadRune()
				}
				quoted = false
				continue
			}
			if c == '\n' {
				r.line++
			}
			field.WriteRune(c)
			continue
		}

		switch c {
		case r.opts.Comma:
			fields = append(fields, field.String())
			field.Reset()
			atStart, wasQuoted = true, false
		case '\r', '\n':
			if c == '\r' {
				if next, _, err := r.br.ReadRune(); err == nil && next != '\n' {
					_ = r.br.UnreadRune()
				}
			}
			return append(fields, field.String()), nil
		case r.opts.Quote:
			if !atStart {
				return nil, r.errorf(r.line, "illegal quoting")
			}
			quoted, wasQuoted, atStart = true, true, false
		default:
			if wasQuoted {
				return nil, r.errorf(r.line, "unexpected text after closing quote")
			}
			field.WriteRune(c)
			atStart = false
		}
	}
}

// ReadAll reads every remaining record.
func (r *Reader) ReadAll() ([][]string, error) {
	var out [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

// WriteRecord writes one record in the given dialect, quoting fields that
// contain the delimiter, the quote character, or a line break.
func WriteRecord(w io.Writer, fields []string, opts Options) error {
	opts = opts.withDefaults()
	q := string(opts.Quote)
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteRune(opts.Comma)
		}
		if strings.ContainsRune(f, opts.Comma) || strings.Contains(f, q) || strings.ContainsAny(f, "\r\n") {
			b.WriteString(q + strings.ReplaceAll(f, q, q+q) + q)
			continue
		}
		b.WriteString(f)
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}
