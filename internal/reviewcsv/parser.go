package reviewcsv

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParsedRow is one data record. Row is the 1-based data row ordinal with the
// header excluded and blank lines skipped; Line is the physical line where the
// record starts.
type ParsedRow struct {
	Row     int
	Line    int
	Headers []string
	Cells   []string
}

// Value returns the cell under header, or "" when the record is short.
func (r ParsedRow) Value(header string) string {
	for i, h := range r.Headers {
		if h == header {
			if i < len(r.Cells) {
				return r.Cells[i]
			}
			return ""
		}
	}
	return ""
}

// Values returns the row keyed by header.
func (r ParsedRow) Values() map[string]string {
	out := make(map[string]string, len(r.Headers))
	for i, h := range r.Headers {
		if i < len(r.Cells) {
			out[h] = r.Cells[i]
		} else {
			out[h] = ""
		}
	}
	return out
}

// Progress is reported while a file is being parsed.
type Progress struct {
	RowsParsed int
	BytesRead  int64
	TotalBytes int64
	Done       bool
}

// Percent is the share of bytes consumed, 0 when the size is unknown.
func (p Progress) Percent() float64 {
	if p.TotalBytes <= 0 {
		return 0
	}
	pct := float64(p.BytesRead) / float64(p.TotalBytes) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

type Options struct {
	// MaxBytes rejects inputs larger than this. Zero disables the check.
	MaxBytes int64
	// ProgressEvery controls how often OnProgress fires, in rows.
	ProgressEvery int
	OnProgress    func(Progress)
}

// Parser turns CSV bytes into header keyed rows in bounded memory.
type Parser struct {
	opts Options
}

func NewParser(opts Options) *Parser {
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 500
	}
	return &Parser{opts: opts}
}

// Stream is an in-flight parse. Rows are produced on a separate goroutine and
// delivered in file order.
type Stream struct {
	Headers []string

	rows chan ParsedRow
	done chan struct{}
	err  error
}

// Rows is closed when parsing ends. Check Wait afterwards.
func (s *Stream) Rows() <-chan ParsedRow { return s.rows }

// All ranges over the remaining rows.
func (s *Stream) All() iter.Seq[ParsedRow] {
	return func(yield func(ParsedRow) bool) {
		for row := range s.rows {
			if !yield(row) {
				return
			}
		}
	}
}

// Wait blocks until the parser goroutine exits and returns its error.
func (s *Stream) Wait() error {
	<-s.done
	return s.err
}

// Stream reads the header synchronously and parses data rows in the
// background. size is the declared input length, or 0 when unknown.
// Cancel ctx to abandon a stream that is no longer being drained.
func (p *Parser) Stream(ctx context.Context, r io.Reader, size int64) (*Stream, error) {
	if p.opts.MaxBytes > 0 && size > p.opts.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFileTooLarge, size, p.opts.MaxBytes)
	}

	counter := &countingReader{r: r, max: p.opts.MaxBytes}
	br := bufio.NewReader(counter)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	headers, err := readHeader(cr)
	if err != nil {
		return nil, p.classify(counter, err)
	}

	s := &Stream{
		Headers: headers,
		rows:    make(chan ParsedRow, 64),
		done:    make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		defer close(s.rows)
		s.err = p.run(ctx, cr, counter, size, headers, s.rows)
	}()

	return s, nil
}

// ParseAll materialises every row. Intended for previews and small files.
func (p *Parser) ParseAll(ctx context.Context, r io.Reader, size int64) ([]string, []ParsedRow, error) {
	s, err := p.Stream(ctx, r, size)
	if err != nil {
		return nil, nil, err
	}
	var rows []ParsedRow
	for row := range s.Rows() {
		rows = append(rows, row)
	}
	if err := s.Wait(); err != nil {
		return nil, nil, err
	}
	return s.Headers, rows, nil
}

func (p *Parser) run(ctx context.Context, cr *csv.Reader, counter *countingReader, size int64, headers []string, out chan<- ParsedRow) error {
	n := 0
	report := func(done bool) {
		if p.opts.OnProgress != nil {
			p.opts.OnProgress(Progress{RowsParsed: n, BytesRead: counter.n, TotalBytes: size, Done: done})
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return p.classify(counter, err)
		}
		if isBlank(rec) {
			continue
		}

		n++
		line, _ := cr.FieldPos(0)
		cells := make([]string, len(headers))
		copy(cells, rec)

		select {
		case out <- ParsedRow{Row: n, Line: line, Headers: headers, Cells: cells}:
		case <-ctx.Done():
			return ctx.Err()
		}

		if n%p.opts.ProgressEvery == 0 {
			report(false)
		}
	}

	if n == 0 {
		return fmt.Errorf("%w: file needs a header and at least one data row", ErrMalformedInput)
	}
	report(true)
	return nil
}

func (p *Parser) classify(counter *countingReader, err error) error {
	if counter.exceeded || errors.Is(err, ErrFileTooLarge) {
		return fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, p.opts.MaxBytes)
	}
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return fmt.Errorf("%w: line %d: %v", ErrMalformedInput, pe.StartLine, pe.Err)
	}
	if errors.Is(err, ErrMalformedInput) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrMalformedInput, err)
}

func readHeader(cr *csv.Reader) ([]string, error) {
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: file is empty", ErrMalformedInput)
		}
		if err != nil {
			return nil, err
		}
		if isBlank(rec) {
			continue
		}

		headers := make([]string, len(rec))
		seen := make(map[string]struct{}, len(rec))
		for i, h := range rec {
			h = strings.TrimSpace(h)
			if h == "" {
				h = "column_" + strconv.Itoa(i+1)
			}
			if _, dup := seen[h]; dup {
				return nil, fmt.Errorf("%w: duplicate header %q", ErrMalformedInput, h)
			}
			seen[h] = struct{}{}
			headers[i] = h
		}
		return headers, nil
	}
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

type countingReader struct {
	r        io.Reader
	n        int64
	max      int64
	exceeded bool
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.max > 0 && c.n > c.max {
		c.exceeded = true
		return n, ErrFileTooLarge
	}
	return n, err
}
