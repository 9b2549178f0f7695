// Package csvimport reads stock spreadsheets exported from the sales channels.
// It strips BOMs, falls back to Windows-1252 for files saved by older Excel
// versions and maps header spellings onto canonical column names.
package csvimport

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Encoding selects how input bytes are decoded
type Encoding string

const (
	// EncodingAuto reads UTF-8 and falls back to Windows-1252 on invalid input
	EncodingAuto        Encoding = "auto"
	EncodingUTF8        Encoding = "utf-8"
	EncodingWindows1252 Encoding = "windows-1252"
)

// sniffSize is how much of the input is inspected for encoding detection
const sniffSize = 4096

// CSVParser reads a header row followed by data rows
type CSVParser struct {
	delimiter  rune
	lazyQuotes bool
	encoding   Encoding
	aliases    map[string]string
	maxSize    int64

	headerMap  map[string]int
	headers    []string
	currentRow int
	totalRows  int
	detected   Encoding
	reader     *csv.Reader
}

// ParserOption configures a CSVParser
type ParserOption func(*CSVParser)

// WithDelimiter sets the field delimiter (default is comma)
func WithDelimiter(d rune) ParserOption {
	return func(p *CSVParser) {
		p.delimiter = d
	}
}

// WithLazyQuotes toggles lenient quote handling (default on)
func WithLazyQuotes(lazy bool) ParserOption {
	return func(p *CSVParser) {
		p.lazyQuotes = lazy
	}
}

// WithEncoding forces an input encoding instead of detection
func WithEncoding(e Encoding) ParserOption {
	return func(p *CSVParser) {
		p.encoding = e
	}
}

// WithHeaderAliases maps alternative header spellings to canonical names.
// Keys are normalized the same way headers are.
func WithHeaderAliases(aliases map[string]string) ParserOption {
	return func(p *CSVParser) {
		for k, v := range aliases {
			p.aliases[NormalizeHeader(k)] = v
		}
	}
}

// WithMaxSize rejects inputs larger than n bytes
func WithMaxSize(n int64) ParserOption {
	return func(p *CSVParser) {
		p.maxSize = n
	}
}

// NewCSVParser wraps r. The first bytes are read eagerly to strip a UTF-8 BOM
// and pick the encoding.
func NewCSVParser(r io.Reader, opts ...ParserOption) (*CSVParser, error) {
	parser := &CSVParser{
		delimiter:  ',',
		lazyQuotes: true,
		encoding:   EncodingAuto,
		aliases:    make(map[string]string),
		headerMap:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(parser)
	}

	if parser.maxSize > 0 {
		r = &limitedReader{r: r, remaining: parser.maxSize}
	}
	buf := bufio.NewReaderSize(r, sniffSize)

	head, err := buf.Peek(3)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if bytes.HasPrefix(head, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = buf.Discard(3)
	}

	content, err := buf.Peek(sniffSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("failed to read file for encoding detection: %w", err)
	}
	if len(content) == 0 {
		return nil, ErrEmptyFile
	}

	var src io.Reader = buf
	switch parser.encoding {
	case EncodingWindows1252:
		parser.detected = EncodingWindows1252
	case EncodingUTF8:
		if !validUTF8Prefix(content, len(content) == sniffSize) {
			return nil, ErrInvalidEncoding
		}
		parser.detected = EncodingUTF8
	default:
		parser.detected = EncodingUTF8
		if !validUTF8Prefix(content, len(content) == sniffSize) {
			parser.detected = EncodingWindows1252
		}
	}
	if parser.detected == EncodingWindows1252 {
		src = charmap.Windows1252.NewDecoder().Reader(buf)
	}

	parser.reader = csv.NewReader(src)
	parser.reader.Comma = parser.delimiter
	parser.reader.LazyQuotes = parser.lazyQuotes
	parser.reader.TrimLeadingSpace = true
	parser.reader.FieldsPerRecord = -1
	return parser, nil
}

// validUTF8Prefix reports whether b is valid UTF-8. When b was cut at the sniff
// boundary an incomplete trailing rune is tolerated.
func validUTF8Prefix(b []byte, truncated bool) bool {
	if utf8.Valid(b) {
		return true
	}
	if !truncated {
		return false
	}
	for cut := 1; cut < utf8.UTFMax && cut < len(b); cut++ {
		if utf8.Valid(b[:len(b)-cut]) {
			return true
		}
	}
	return false
}

// Encoding returns the encoding the parser decodes with
func (p *CSVParser) Encoding() Encoding {
	return p.detected
}

// NormalizeHeader lowercases a header and joins its words with underscores,
// so "Product Name", "product-name" and "PRODUCT_NAME" compare equal
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Join(strings.FieldsFunc(h, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	}), "_")
}

// ParseHeader reads the header row and resolves aliases
func (p *CSVParser) ParseHeader() error {
	record, err := p.reader.Read()
	if err == io.EOF {
		return ErrMissingHeader
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	p.headers = make([]string, len(record))
	for i, h := range record {
		header := NormalizeHeader(h)
		if canonical, ok := p.aliases[header]; ok {
			header = canonical
		}
		p.headers[i] = header
		if _, dup := p.headerMap[header]; !dup && header != "" {
			p.headerMap[header] = i
		}
	}
	if len(p.headerMap) == 0 {
		return ErrMissingHeader
	}

	p.currentRow = 1
	return nil
}

// Headers returns the canonical header names in column order
func (p *CSVParser) Headers() []string {
	return p.headers
}

// HasHeader reports whether a canonical header is present
func (p *CSVParser) HasHeader(name string) bool {
	_, ok := p.headerMap[name]
	return ok
}

// ValidateHeaders returns the required headers that are missing
func (p *CSVParser) ValidateHeaders(required []string) []string {
	var missing []string
	for _, h := range required {
		if !p.HasHeader(h) {
			missing = append(missing, h)
		}
	}
	return missing
}

// Row is one data row keyed by canonical header
type Row struct {
	LineNumber int
	Data       map[string]string
}

// Get returns the trimmed value of a column, empty when absent
func (r *Row) Get(header string) string {
	return r.Data[header]
}

// Has reports whether the column exists and holds a value
func (r *Row) Has(header string) bool {
	return r.Data[header] != ""
}

// IsEmpty reports whether every cell is blank
func (r *Row) IsEmpty() bool {
	for _, v := range r.Data {
		if v != "" {
			return false
		}
	}
	return true
}

// ReadRow reads the next row. Parse errors carry the line number.
func (p *CSVParser) ReadRow() (*Row, error) {
	record, err := p.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	p.currentRow++
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, NewRowError(p.currentRow, "", ErrCodeCSVParsing, parseErr.Err.Error())
		}
		return nil, fmt.Errorf("failed to read row %d: %w", p.currentRow, err)
	}
	p.totalRows++

	row := &Row{
		LineNumber: p.currentRow,
		Data:       make(map[string]string, len(p.headerMap)),
	}
	for header, i := range p.headerMap {
		if i < len(record) {
			row.Data[header] = strings.TrimSpace(record[i])
		} else {
			row.Data[header] = ""
		}
	}
	return row, nil
}

// ReadAllRows reads the remaining rows, skipping blank ones. Malformed rows are
// reported to errs and skipped; a size limit violation aborts.
func (p *CSVParser) ReadAllRows(errs *ErrorCollection) ([]*Row, error) {
	var rows []*Row
	for {
		row, err := p.ReadRow()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			var rowErr RowError
			if errors.As(err, &rowErr) && errs != nil {
				errs.Add(rowErr)
				continue
			}
			return rows, err
		}
		if row.IsEmpty() {
			continue
		}
		rows = append(rows, row)
	}
}

// TotalRows returns the number of data rows read
func (p *CSVParser) TotalRows() int {
	return p.totalRows
}

// ParseFromBytes creates a parser over data
func ParseFromBytes(data []byte, opts ...ParserOption) (*CSVParser, error) {
	return NewCSVParser(bytes.NewReader(data), opts...)
}

// limitedReader fails with ErrFileTooLarge instead of silently truncating
type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, ErrFileTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrFileTooLarge
	}
	return n, err
}
