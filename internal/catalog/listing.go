// Package catalog turns a rendered catalog page into validated, unique listings.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/law-makers/catalog/internal/pricing"
	"github.com/law-makers/catalog/pkg/models"
)

var (
	ErrEmptyName    = errors.New("listing has no name")
	ErrInvalidPrice = errors.New("listing has no positive price")
)

// NewListing validates a raw record. It is the only way a Listing with a
// non-empty name and positive price gets built.
func NewListing(rec models.RawRecord) (models.Listing, error) {
	name := strings.TrimSpace(rec.Name)
	if name == "" {
		return models.Listing{}, ErrEmptyName
	}

	price, ok := pricing.ParsePrice(rec.RawPrice)
	if !ok {
		return models.Listing{}, fmt.Errorf("%w: %q", ErrInvalidPrice, rec.RawPrice)
	}

	return models.Listing{
		Name:  name,
		Price: price,
		URL:   strings.TrimSpace(rec.URL),
		Image: strings.TrimSpace(rec.Image),
	}, nil
}

// Dedupe keeps one listing per trimmed name. A later duplicate replaces the
// earlier one's data but keeps the slot where the name first appeared.
func Dedupe(listings []models.Listing) []models.Listing {
	index := make(map[string]int, len(listings))
	out := make([]models.Listing, 0, len(listings))

	for _, l := range listings {
		key := strings.TrimSpace(l.Name)
		if i, seen := index[key]; seen {
			out[i] = l
			continue
		}
		index[key] = len(out)
		out = append(out, l)
	}
	return out
}
