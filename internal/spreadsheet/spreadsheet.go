// Package spreadsheet moves the catalog in and out of xlsx workbooks so the
// shopkeeper can maintain prices in a spreadsheet app.
package spreadsheet

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/360EntSecGroup-Skylar/excelize"

	"warungpos/backend/internal/domain"
)

const sheetName = "Sheet1"

var header = []string{"Name", "Buy Price", "Sell Price", "Stock", "Min Stock", "Barcode"}

var columns = []string{"A", "B", "C", "D", "E", "F"}

// Export writes the catalog rows as a workbook with a bold header row.
func Export(rows []domain.ProductImportRow, w io.Writer) error {
	f := excelize.NewFile()

	for i, title := range header {
		f.SetCellValue(sheetName, fmt.Sprintf("%s1", columns[i]), title)
	}
	style, err := f.NewStyle(`{"font":{"bold":true}}`)
	if err == nil {
		f.SetCellStyle(sheetName, "A1", "F1", style)
	}

	for i, row := range rows {
		line := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", line), row.Name)
		if row.BuyPrice != nil {
			f.SetCellValue(sheetName, fmt.Sprintf("B%d", line), *row.BuyPrice)
		}
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", line), row.SellPrice)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", line), row.Stock)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", line), row.MinStock)
		if row.Barcode != "" {
			f.SetCellValue(sheetName, fmt.Sprintf("F%d", line), row.Barcode)
		}
	}

	return f.Write(w)
}

// Parse reads catalog rows back out of a workbook. The header row and fully
// blank rows are skipped; rows with unreadable numbers are dropped and
// reported in parseErrors so the import result can surface them.
func Parse(r io.Reader) (rows []domain.ProductImportRow, parseErrors []string, err error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}

	for i, cells := range f.GetRows(sheetName) {
		if i == 0 {
			continue
		}

		name := strings.TrimSpace(cell(cells, 0))
		if name == "" {
			continue
		}

		row := domain.ProductImportRow{
			Name:    name,
			Barcode: strings.TrimSpace(cell(cells, 5)),
		}

		line := i + 1
		if raw := strings.TrimSpace(cell(cells, 1)); raw != "" {
			buy, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				parseErrors = append(parseErrors, fmt.Sprintf("row %d (%s): bad buy price %q", line, name, raw))
				continue
			}
			row.BuyPrice = &buy
		}

		sell, err := strconv.ParseInt(strings.TrimSpace(cell(cells, 2)), 10, 64)
		if err != nil {
			parseErrors = append(parseErrors, fmt.Sprintf("row %d (%s): bad sell price", line, name))
			continue
		}
		row.SellPrice = sell

		stock, err := parseIntCell(cell(cells, 3))
		if err != nil {
			parseErrors = append(parseErrors, fmt.Sprintf("row %d (%s): bad stock", line, name))
			continue
		}
		row.Stock = stock

		minStock, err := parseIntCell(cell(cells, 4))
		if err != nil {
			parseErrors = append(parseErrors, fmt.Sprintf("row %d (%s): bad min stock", line, name))
			continue
		}
		row.MinStock = minStock

		rows = append(rows, row)
	}

	return rows, parseErrors, nil
}

// cell reads a column by index; short rows read as empty cells.
func cell(cells []string, idx int) string {
	if idx >= len(cells) {
		return ""
	}
	return cells[idx]
}

func parseIntCell(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
