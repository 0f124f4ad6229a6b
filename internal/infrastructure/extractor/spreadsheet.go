package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

type Spreadsheet struct{}

func (Spreadsheet) Name() string { return "spreadsheet" }

func (Spreadsheet) Supports(mimeType, ext string) bool {
	switch mimeType {
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-excel.sheet.macroenabled.12":
		return true
	}
	return ext == ".xlsx" || ext == ".xlsm"
}

// Extract renders every sheet as tab-separated rows under a "# sheet" heading.
func (Spreadsheet) Extract(ctx context.Context, data []byte) (string, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer book.Close()

	var b strings.Builder
	for _, sheet := range book.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rows, err := book.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		b.WriteString("# ")
		b.WriteString(sheet)
		b.WriteByte('\n')
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t")
			if line == "" {
				continue
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}
