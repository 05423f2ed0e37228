// Package rowsource streams order rows out of uploaded import files.
package rowsource

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cuongbtq/trade-ledger/internal/worker/domain"
	"github.com/cuongbtq/trade-ledger/shared/filestore"
)

// Normalized names of the required columns
const (
	HeaderUser      = "user"
	HeaderStock     = "stock"
	HeaderQuantity  = "quantity"
	HeaderOrderType = "order_type"
)

// RequiredHeaders are the column titles every import file must carry
var RequiredHeaders = []string{"User", "Stock", "Quantity", "Order Type"}

// Opener opens stored file content by name
type Opener interface {
	Open(name string) (io.ReadCloser, error)
}

// recordReader yields raw records together with their 1-based line number
type recordReader interface {
	Read() (record []string, line int, err error)
	Close() error
}

// Parser yields typed rows from one import file in a single forward pass.
// The file is opened and the header validated on the first call to Next.
type Parser struct {
	opener  Opener
	name    string
	reader  recordReader
	index   map[string]int
	minCols int
	started bool
	done    bool
}

// NewParser creates a parser for the named file. Nothing is read until Next is called.
func NewParser(opener Opener, name string) *Parser {
	return &Parser{
		opener: opener,
		name:   name,
	}
}

// NormalizeHeader trims, lower-cases and replaces spaces with underscores
func NormalizeHeader(header string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(header)), " ", "_")
}

func (p *Parser) init() error {
	p.started = true

	rc, err := p.opener.Open(p.name)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrImportFileNotFound, p.name)
		}
		return fmt.Errorf("failed to open import file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(p.name), ".xlsx") {
		p.reader, err = newSheetReader(rc)
		if err != nil {
			return err
		}
	} else {
		p.reader = newCSVReader(rc)
	}

	headers, _, err := p.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %s", domain.ErrEmptyImportFile, p.name)
		}
		return err
	}

	p.index = make(map[string]int, len(headers))
	for i, raw := range headers {
		if i == 0 {
			raw = strings.TrimPrefix(raw, "\ufeff")
		}
		if name := NormalizeHeader(raw); name != "" {
			p.index[name] = i
		}
	}

	var missing []string
	for _, header := range RequiredHeaders {
		idx, ok := p.index[NormalizeHeader(header)]
		if !ok {
			missing = append(missing, header)
			continue
		}
		if idx+1 > p.minCols {
			p.minCols = idx + 1
		}
	}

	if len(missing) > 0 {
		return &domain.MissingHeadersError{Headers: missing}
	}

	return nil
}

// Next returns the next row in file order, or io.EOF once the file is exhausted.
func (p *Parser) Next() (domain.Row, error) {
	if p.done {
		return domain.Row{}, io.EOF
	}

	if !p.started {
		if err := p.init(); err != nil {
			p.done = true
			return domain.Row{}, err
		}
	}

	record, line, err := p.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			p.done = true
		}
		return domain.Row{}, err
	}

	row, err := p.parseRecord(record, line)
	if err != nil {
		return domain.Row{}, &domain.RowError{Line: line, Err: err}
	}

	return row, nil
}

func (p *Parser) parseRecord(record []string, line int) (domain.Row, error) {
	if len(record) < p.minCols {
		return domain.Row{}, &domain.MalformedRowError{
			Reason: fmt.Sprintf("expected at least %d fields, got %d", p.minCols, len(record)),
		}
	}

	field := func(name string) string {
		return strings.TrimSpace(record[p.index[name]])
	}

	rawQuantity := field(HeaderQuantity)
	quantity, err := strconv.ParseInt(rawQuantity, 10, 64)
	if err != nil || quantity < 0 {
		return domain.Row{}, &domain.MalformedQuantityError{Value: rawQuantity}
	}

	return domain.Row{
		Line:      line,
		User:      field(HeaderUser),
		Stock:     field(HeaderStock),
		Quantity:  quantity,
		OrderType: field(HeaderOrderType),
	}, nil
}

// ReadBatch pulls up to size rows. It returns io.EOF only when no row is left.
func (p *Parser) ReadBatch(size int) ([]domain.Row, error) {
	rows := make([]domain.Row, 0, size)
	for len(rows) < size {
		row, err := p.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, io.EOF
	}

	return rows, nil
}

// Close releases the underlying file
func (p *Parser) Close() error {
	p.done = true
	if p.reader == nil {
		return nil
	}
	err := p.reader.Close()
	p.reader = nil
	return err
}
