package rowsource

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cuongbtq/trade-ledger/internal/worker/domain"
	"github.com/cuongbtq/trade-ledger/shared/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newStore(t *testing.T) *filestore.Store {
	t.Helper()
	store, err := filestore.New(t.TempDir())
	require.NoError(t, err)
	return store
}

func saveFile(t *testing.T, store *filestore.Store, name, content string) {
	t.Helper()
	_, err := store.Save(name, strings.NewReader(content))
	require.NoError(t, err)
}

func readAll(t *testing.T, p *Parser) ([]domain.Row, error) {
	t.Helper()
	var rows []domain.Row
	for {
		row, err := p.Next()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Order Type", want: "order_type"},
		{in: "order type", want: "order_type"},
		{in: "  ORDER TYPE  ", want: "order_type"},
		{in: "User", want: "user"},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeHeader(tt.in))
		})
	}
}

func TestParser_ParsesRowsInOrder(t *testing.T) {
	store := newStore(t)
	saveFile(t, store, "orders.csv",
		"Order Type,User,Note,Stock,Quantity\n"+
			"BUY, 1 ,first,NVDA,10\n"+
			"SELL,2,second, AAPL ,5\n")

	p := NewParser(store, "orders.csv")
	defer p.Close()

	rows, err := readAll(t, p)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, domain.Row{Line: 2, User: "1", Stock: "NVDA", Quantity: 10, OrderType: "BUY"}, rows[0])
	assert.Equal(t, domain.Row{Line: 3, User: "2", Stock: "AAPL", Quantity: 5, OrderType: "SELL"}, rows[1])
}

func TestParser_HeaderVariants(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{name: "title case", header: "User,Stock,Quantity,Order Type"},
		{name: "lower case", header: "user,stock,quantity,order type"},
		{name: "padded", header: " USER , Stock,Quantity ,  Order Type"},
		{name: "underscored", header: "user,stock,quantity,order_type"},
		{name: "byte order mark", header: "\ufeffUser,Stock,Quantity,Order Type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			saveFile(t, store, "orders.csv", tt.header+"\n7,TSLA,3,BUY\n")

			p := NewParser(store, "orders.csv")
			defer p.Close()

			row, err := p.Next()
			require.NoError(t, err)
			assert.Equal(t, "7", row.User)
			assert.Equal(t, "TSLA", row.Stock)
			assert.Equal(t, int64(3), row.Quantity)
			assert.Equal(t, "BUY", row.OrderType)
		})
	}
}

func TestParser_MissingHeaders(t *testing.T) {
	store := newStore(t)
	saveFile(t, store, "orders.csv", "User,Stock,Order Type\n1,NVDA,BUY\n")

	p := NewParser(store, "orders.csv")
	defer p.Close()

	_, err := p.Next()
	require.Error(t, err)

	var missing *domain.MissingHeadersError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"Quantity"}, missing.Headers)
	assert.ErrorIs(t, err, domain.ErrInvalidImportFile)
	assert.Equal(t, "Headers are not found in the file: 'Quantity'.", err.Error())

	// parser stays exhausted after a header failure
	_, err = p.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestParser_FileErrors(t *testing.T) {
	store := newStore(t)
	saveFile(t, store, "empty.csv", "")

	tests := []struct {
		name    string
		file    string
		wantErr error
	}{
		{name: "missing file", file: "missing.csv", wantErr: domain.ErrImportFileNotFound},
		{name: "empty file", file: "empty.csv", wantErr: domain.ErrEmptyImportFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser(store, tt.file)
			defer p.Close()

			_, err := p.Next()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, domain.ErrInvalidImportFile)
		})
	}
}

func TestParser_HeadersOnly(t *testing.T) {
	store := newStore(t)
	saveFile(t, store, "orders.csv", "User,Stock,Quantity,Order Type\n")

	p := NewParser(store, "orders.csv")
	defer p.Close()

	_, err := p.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestParser_RowErrors(t *testing.T) {
	tests := []struct {
		name    string
		row     string
		wantMsg string
	}{
		{name: "non numeric quantity", row: "1,NVDA,ten,BUY", wantMsg: "line 3: Invalid quantity: ten"},
		{name: "negative quantity", row: "1,NVDA,-4,BUY", wantMsg: "line 3: Invalid quantity: -4"},
		{name: "decimal quantity", row: "1,NVDA,1.5,BUY", wantMsg: "line 3: Invalid quantity: 1.5"},
		{name: "short row", row: "1,NVDA", wantMsg: "line 3: Malformed row: expected at least 4 fields, got 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			saveFile(t, store, "orders.csv", "User,Stock,Quantity,Order Type\n1,NVDA,1,BUY\n"+tt.row+"\n")

			p := NewParser(store, "orders.csv")
			defer p.Close()

			_, err := p.Next()
			require.NoError(t, err)

			_, err = p.Next()
			require.Error(t, err)

			var rowErr *domain.RowError
			require.ErrorAs(t, err, &rowErr)
			assert.Equal(t, 3, rowErr.Line)
			assert.ErrorIs(t, err, domain.ErrInvalidImportFile)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestParser_ReadBatch(t *testing.T) {
	store := newStore(t)
	var b strings.Builder
	b.WriteString("User,Stock,Quantity,Order Type\n")
	for i := 0; i < 5; i++ {
		b.WriteString("1,NVDA,1,BUY\n")
	}
	saveFile(t, store, "orders.csv", b.String())

	p := NewParser(store, "orders.csv")
	defer p.Close()

	var sizes []int
	for {
		batch, err := p.ReadBatch(2)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		sizes = append(sizes, len(batch))
	}

	assert.Equal(t, []int{2, 2, 1}, sizes)
}

func TestParser_Workbook(t *testing.T) {
	store := newStore(t)

	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"user", "Stock", "Quantity", "Order Type", "Comment"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{1, "NVDA", 10, "BUY", "ok"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{1, "NVDA", 4, "SELL"}))
	require.NoError(t, f.SaveAs(filepath.Join(store.Root(), "orders.xlsx")))

	p := NewParser(store, "orders.xlsx")
	defer p.Close()

	rows, err := readAll(t, p)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, domain.Row{Line: 2, User: "1", Stock: "NVDA", Quantity: 10, OrderType: "BUY"}, rows[0])
	assert.Equal(t, domain.Row{Line: 3, User: "1", Stock: "NVDA", Quantity: 4, OrderType: "SELL"}, rows[1])
}
