// Package manifest reads and writes the tabular catalog manifests that
// drive a dropfetch run.
//
// A manifest needs an identifier column ("UPC") and a folder-reference
// column ("IMAGES LINK"); a "CATEGORY" column is optional. Header
// matching ignores case, surrounding whitespace and column order, and
// unknown columns are skipped. CSV and XLSX files are supported, chosen
// by extension.
//
//	tasks, err := manifest.Read("products.xlsx")
//
// The failure ledger produced at the end of a run uses the same schema
// and the same format as the input, so it can be resubmitted unchanged:
//
//	path := manifest.LedgerPath("products.xlsx", outputDir)
//	err := manifest.Write(path, failedTasks)
package manifest
