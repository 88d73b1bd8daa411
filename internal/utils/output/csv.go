package output

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/law-makers/catalog/pkg/models"
)

var csvHeader = []string{"name", "price", "original_price", "markup", "url", "image"}

// WriteCSV writes one row per listing after a header row. Prices keep two decimals.
func WriteCSV(w io.Writer, listings []models.MarkedUpListing) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, l := range listings {
		row := []string{
			l.Name,
			strconv.FormatFloat(l.Price, 'f', 2, 64),
			strconv.FormatFloat(l.OriginalPrice, 'f', 2, 64),
			strconv.FormatFloat(l.MarkupRate, 'f', -1, 64),
			l.URL,
			l.Image,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// SaveCSV writes listings to a CSV file. Returns an error on failure.
func SaveCSV(listings []models.MarkedUpListing, filepath string) error {
	file, err := os.Create(filepath)
	if err != nil {
		return err
	}
	if err := WriteCSV(file, listings); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
