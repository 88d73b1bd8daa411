package models

import (
	"time"

	"github.com/rs/zerolog"
)

// RawRecord is one product container as read off the page, before any validation
type RawRecord struct {
	Name     string
	RawPrice string
	URL      string
	Image    string
}

// Listing is a validated product. Price is always > 0 and Name is never empty;
// use catalog.NewListing to build one.
type Listing struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	URL   string  `json:"url,omitempty"`
	Image string  `json:"image,omitempty"`
}

// Snapshot is an immutable, timestamped catalog result
type Snapshot struct {
	Listings  []Listing `json:"listings"`
	FetchedAt time.Time `json:"fetched_at"`
}

// MarkedUpListing is the display view of a Listing after the markup policy
type MarkedUpListing struct {
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	OriginalPrice float64 `json:"originalPrice"`
	MarkupRate    float64 `json:"markup"`
	URL           string  `json:"url,omitempty"`
	Image         string  `json:"image,omitempty"`
}

// PaymentInfo is the static payment record handed to the storefront
type PaymentInfo struct {
	Method        string `json:"method"`
	VenmoUsername string `json:"venmoUsername"`
	Instructions  string `json:"instructions"`
}

// Credentials identify the vendor account used by the Navigator.
// They are held for one navigation only and must never be logged or stored.
type Credentials struct {
	Identifier string
	Secret     string
}

// Empty reports whether there is nothing to log in with
func (c *Credentials) Empty() bool {
	return c == nil || c.Identifier == "" || c.Secret == ""
}

// String redacts both fields so credentials can't leak through %v
func (c Credentials) String() string {
	if c.Identifier == "" && c.Secret == "" {
		return "Credentials{}"
	}
	return "Credentials{[redacted]}"
}

// GoString covers %#v
func (c Credentials) GoString() string {
	return c.String()
}

// MarshalZerologObject keeps credentials out of structured logs
func (c Credentials) MarshalZerologObject(e *zerolog.Event) {
	e.Bool("has_identifier", c.Identifier != "").Bool("has_secret", c.Secret != "")
}
