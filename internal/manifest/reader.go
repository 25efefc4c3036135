package manifest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/davidmtr/dropfetch/internal/model"
	"github.com/xuri/excelize/v2"
)

// Column header aliases, matched case- and whitespace-insensitively.
// "UPC" and "IMAGES LINK" are the headers the legacy catalog feeds use.
var (
	identifierAliases = []string{"upc", "identifier", "id"}
	folderRefAliases  = []string{"images link", "folder-reference", "folder reference", "link"}
	categoryAliases   = []string{"category"}
)

// columns holds the resolved positions of the manifest columns.
// category is -1 when the manifest has no category column.
type columns struct {
	identifier int
	folderRef  int
	category   int
}

// Read loads a manifest file into tasks. The format is chosen by file
// extension: .csv or .xlsx. Unknown columns are ignored; rows missing
// an identifier or folder reference are dropped.
//
// Missing required columns are a startup error, reported with the
// headers that were actually found.
func Read(path string) ([]*model.Task, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("manifest %s is empty", path)
	}

	cols, err := resolveColumns(rows[0])
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}

	var tasks []*model.Task
	for i, row := range rows[1:] {
		identifier := cell(row, cols.identifier)
		folderRef := cell(row, cols.folderRef)
		if strings.TrimSpace(identifier) == "" || strings.TrimSpace(folderRef) == "" {
			continue
		}
		category := ""
		if cols.category >= 0 {
			category = cell(row, cols.category)
		}
		tasks = append(tasks, model.NewTask(i, identifier, folderRef, category))
	}

	return tasks, nil
}

// HasCategories reports whether the manifest declares a category
// column. Only the header row is inspected.
func HasCategories(path string) (bool, error) {
	rows, err := readRows(path)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}
	cols, err := resolveColumns(rows[0])
	if err != nil {
		return false, err
	}
	return cols.category >= 0, nil
}

// IsRetryManifest reports whether the manifest looks like a failure
// ledger from an earlier run.
func IsRetryManifest(path string) bool {
	return strings.HasPrefix(filepath.Base(path), "failed_")
}

func readRows(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path)
	case ".xlsx":
		return readXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported manifest format %q (use .csv or .xlsx)", filepath.Ext(path))
	}
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // tolerate ragged rows
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("%s has no sheets", path)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

func resolveColumns(header []string) (columns, error) {
	cols := columns{identifier: -1, folderRef: -1, category: -1}

	for i, name := range header {
		switch {
		case cols.identifier < 0 && matchesAlias(name, identifierAliases):
			cols.identifier = i
		case cols.folderRef < 0 && matchesAlias(name, folderRefAliases):
			cols.folderRef = i
		case cols.category < 0 && matchesAlias(name, categoryAliases):
			cols.category = i
		}
	}

	if cols.identifier < 0 || cols.folderRef < 0 {
		return cols, fmt.Errorf("required columns UPC and IMAGES LINK not found (headers: %s)",
			strings.Join(header, ", "))
	}
	return cols, nil
}

func matchesAlias(header string, aliases []string) bool {
	normalized := strings.Join(strings.Fields(strings.ToLower(header)), " ")
	for _, alias := range aliases {
		if normalized == alias {
			return true
		}
	}
	return false
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
