package rowsource

import (
	"encoding/csv"
	"errors"
	"io"

	"github.com/cuongbtq/trade-ledger/internal/worker/domain"
)

type csvReader struct {
	r      *csv.Reader
	closer io.Closer
}

func newCSVReader(rc io.ReadCloser) *csvReader {
	r := csv.NewReader(rc)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	return &csvReader{r: r, closer: rc}
}

func (c *csvReader) Read() ([]string, int, error) {
	record, err := c.r.Read()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, 0, &domain.RowError{
				Line: parseErr.Line,
				Err:  &domain.MalformedRowError{Reason: parseErr.Err.Error()},
			}
		}
		return nil, 0, err
	}

	line, _ := c.r.FieldPos(0)
	return record, line, nil
}

func (c *csvReader) Close() error {
	return c.closer.Close()
}
