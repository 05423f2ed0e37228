package rowsource

import (
	"fmt"
	"io"

	"github.com/cuongbtq/trade-ledger/internal/worker/domain"
	"github.com/xuri/excelize/v2"
)

// sheetReader streams the rows of the first worksheet of a workbook
type sheetReader struct {
	file   *excelize.File
	rows   *excelize.Rows
	closer io.Closer
	line   int
}

func newSheetReader(rc io.ReadCloser) (*sheetReader, error) {
	f, err := excelize.OpenReader(rc)
	if err != nil {
		rc.Close()
		return nil, &domain.MalformedRowError{Reason: fmt.Sprintf("unreadable workbook: %v", err)}
	}

	s := &sheetReader{file: f, closer: rc}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return s, nil
	}

	s.rows, err = f.Rows(sheets[0])
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to read worksheet %q: %w", sheets[0], err)
	}

	return s, nil
}

func (s *sheetReader) Read() ([]string, int, error) {
	if s.rows == nil {
		return nil, 0, io.EOF
	}

	for s.rows.Next() {
		s.line++
		cols, err := s.rows.Columns()
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read worksheet row %d: %w", s.line, err)
		}
		// blank rows are skipped, as encoding/csv does
		if len(cols) == 0 {
			continue
		}
		return cols, s.line, nil
	}

	if err := s.rows.Error(); err != nil {
		return nil, 0, fmt.Errorf("failed to read worksheet: %w", err)
	}

	return nil, 0, io.EOF
}

func (s *sheetReader) Close() error {
	if s.rows != nil {
		s.rows.Close()
	}
	s.file.Close()
	return s.closer.Close()
}
