package app

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"reseller-ledger/internal/core"

	"github.com/xuri/excelize/v2"
)

// maxImportRows bounds the rows read from one uploaded workbook.
const maxImportRows = 5000

// ReadSerials returns the first-column values of the workbook's first sheet.
// Blank cells are skipped, as is a leading header cell that contains no digit.
// Serials are returned as written; the inventory service validates their format.
func ReadSerials(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, core.NewValidationError("unreadable workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, core.NewValidationError("workbook has no sheet")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}

	var serials []string
	for i, cols := range rows {
		if len(cols) == 0 {
			continue
		}
		v := strings.TrimSpace(cols[0])
		if v == "" || (i == 0 && !strings.ContainsFunc(v, unicode.IsDigit)) {
			continue
		}
		if len(serials) == maxImportRows {
			return nil, core.NewValidationError("workbook has more than %d serials", maxImportRows)
		}
		serials = append(serials, v)
	}
	if len(serials) == 0 {
		return nil, core.NewValidationError("workbook lists no serial in its first column")
	}
	return serials, nil
}
