package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Strategy is one named way of finding a field inside a product container.
// Find reports whether the strategy produced a non-empty value.
type Strategy struct {
	Name string
	Find func(container *goquery.Selection) (string, bool)
}

// ContainerStrategy names a CSS selector that marks a plausible product container
type ContainerStrategy struct {
	Name     string
	Selector string
}

// DefaultContainers matches anything plausibly tagged as a product container.
// The vendor controls class names, so the last entry is deliberately broad.
var DefaultContainers = []ContainerStrategy{
	{Name: "product-item", Selector: ".product-item"},
	{Name: "product-card", Selector: ".product-card"},
	{Name: "product-class", Selector: `[class*="product"]`},
}

// DefaultName lists heading and label-like patterns in priority order
var DefaultName = []Strategy{
	TextOf("name-class", `[class*="name"]`),
	TextOf("title-class", `[class*="title"]`),
	TextOf("h2", "h2"),
	TextOf("h3", "h3"),
}

// DefaultPrice lists price-like patterns in priority order
var DefaultPrice = []Strategy{
	TextOrAttrOf("price-class", `[class*="price"]`, "data-price"),
	TextOf("cost", ".cost"),
	TextOrAttrOf("data-price", "[data-price]", "data-price"),
}

// DefaultLink takes the first anchor
var DefaultLink = []Strategy{
	AttrOf("anchor", "a[href]", "href"),
}

// DefaultImage covers eager, lazy-loaded and responsive images
var DefaultImage = []Strategy{
	AttrOf("img-src", "img[src]", "src"),
	AttrOf("img-data-src", "img[data-src]", "data-src"),
	SrcsetOf("img-srcset", "img[srcset]", "srcset"),
	SrcsetOf("img-data-srcset", "img[data-srcset]", "data-srcset"),
}

// TextOf returns the normalised text of the first match with any text
func TextOf(name, selector string) Strategy {
	return Strategy{Name: name, Find: func(c *goquery.Selection) (string, bool) {
		var out string
		c.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			out = normaliseText(s.Text())
			return out == ""
		})
		return out, out != ""
	}}
}

// TextOrAttrOf is TextOf falling back to an attribute when the element is empty
// (price cells that carry the amount only in data-price)
func TextOrAttrOf(name, selector, attr string) Strategy {
	return Strategy{Name: name, Find: func(c *goquery.Selection) (string, bool) {
		var out string
		c.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			out = normaliseText(s.Text())
			if out == "" {
				out = strings.TrimSpace(s.AttrOr(attr, ""))
			}
			return out == ""
		})
		return out, out != ""
	}}
}

// AttrOf returns the first non-empty attribute value among matches
func AttrOf(name, selector, attr string) Strategy {
	return Strategy{Name: name, Find: func(c *goquery.Selection) (string, bool) {
		var out string
		c.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			out = strings.TrimSpace(s.AttrOr(attr, ""))
			return out == ""
		})
		return out, out != ""
	}}
}

// SrcsetOf returns the first URL listed in a srcset-style attribute
func SrcsetOf(name, selector, attr string) Strategy {
	inner := AttrOf(name, selector, attr)
	return Strategy{Name: name, Find: func(c *goquery.Selection) (string, bool) {
		v, ok := inner.Find(c)
		if !ok {
			return "", false
		}
		first := strings.TrimSpace(strings.Split(v, ",")[0])
		fields := strings.Fields(first)
		if len(fields) == 0 {
			return "", false
		}
		return fields[0], true
	}}
}

// firstMatch runs strategies in order and returns the first hit with its strategy name
func firstMatch(strategies []Strategy, c *goquery.Selection) (value, strategy string, ok bool) {
	for _, st := range strategies {
		if v, found := st.Find(c); found {
			return v, st.Name, true
		}
	}
	return "", "", false
}

// normaliseText trims and collapses internal whitespace
func normaliseText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
