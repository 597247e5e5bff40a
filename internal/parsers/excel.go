package parsers

import (
	"os"

	"gst-reconciliation-service/internal/models"
	pkgerrors "gst-reconciliation-service/pkg/errors"

	"github.com/xuri/excelize/v2"
)

// ParseXLSXFile loads an XLSX ledger export. The first sheet is read;
// its first row must be the header.
func ParseXLSXFile(path string, source models.Source) ([]*models.LedgerRecord, *ParseStats, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil, pkgerrors.FileError(pkgerrors.CodeFileNotFound, path, err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, pkgerrors.FileError(pkgerrors.CodeFileCorrupted, path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, pkgerrors.ParseError(pkgerrors.CodeInvalidFormat, path, 0, "", "", nil).
			WithSuggestion("the workbook contains no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, pkgerrors.ParseError(pkgerrors.CodeInvalidFormat, path, 0, "", "", err)
	}

	return parseTable(rows, path, source)
}
