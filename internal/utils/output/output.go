// Package output exports the marked-up catalog to files.
package output

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/law-makers/catalog/pkg/models"
)

// Save picks the format from the file extension: .json or .csv
func Save(listings []models.MarkedUpListing, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return SaveJSON(listings, path)
	case ".csv":
		return SaveCSV(listings, path)
	default:
		return fmt.Errorf("unsupported output format %q (use .json or .csv)", filepath.Ext(path))
	}
}
