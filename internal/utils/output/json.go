package output

import (
	"encoding/json"
	"io"
	"os"

	"github.com/law-makers/catalog/pkg/models"
)

// WriteJSON writes listings as an indented JSON array. A nil slice is written as [].
func WriteJSON(w io.Writer, listings []models.MarkedUpListing) error {
	if listings == nil {
		listings = []models.MarkedUpListing{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(listings)
}

// SaveJSON writes a JSON export of listings to filepath.
func SaveJSON(listings []models.MarkedUpListing, filepath string) error {
	f, err := os.Create(filepath)
	if err != nil {
		return err
	}
	if err := WriteJSON(f, listings); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
