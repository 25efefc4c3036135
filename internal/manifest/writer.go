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

// ledger header, kept identical to the legacy manifest schema so the
// artifact can be fed straight back in as input.
var ledgerHeader = []string{"UPC", "IMAGES LINK", "CATEGORY"}

// LedgerPath computes where the failure ledger for a run belongs: in
// the output directory, named after it, in the same format as the
// input manifest.
//
// Example:
//
//	LedgerPath("products.xlsx", "/data/images")
//	// "/data/images/failed_images.xlsx"
func LedgerPath(manifestPath, outputDir string) string {
	ext := strings.ToLower(filepath.Ext(manifestPath))
	if ext != ".xlsx" {
		ext = ".csv"
	}
	base := filepath.Base(filepath.Clean(outputDir))
	return filepath.Join(outputDir, "failed_"+base+ext)
}

// Write persists tasks as a manifest at path, format chosen by the
// path's extension. Used for the failure ledger; the output is valid
// input for a subsequent run.
func Write(path string, tasks []*model.Task) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return writeCSV(path, tasks)
	case ".xlsx":
		return writeXLSX(path, tasks)
	default:
		return fmt.Errorf("unsupported manifest format %q (use .csv or .xlsx)", filepath.Ext(path))
	}
}

func writeCSV(path string, tasks []*model.Task) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(ledgerHeader); err != nil {
		return err
	}
	for _, task := range tasks {
		if err := w.Write([]string{task.Identifier, task.FolderRef, task.Category}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeXLSX(path string, tasks []*model.Task) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	header := make([]interface{}, len(ledgerHeader))
	for i, h := range ledgerHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for i, task := range tasks {
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{task.Identifier, task.FolderRef, task.Category}
		if err := f.SetSheetRow(sheet, cellRef, &row); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}
