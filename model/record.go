// Package model holds the catalog's domain types and their wire decoding.
package model

import (
	"strings"
)

// Attribute is a named base value in the 0..255 range (e.g. "hp" → 45).
type Attribute struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Images groups the image references of a record.
type Images struct {
	Sprite  string `json:"sprite,omitempty"`
	Artwork string `json:"artwork,omitempty"`
}

// Record is an immutable catalog entry. ID uniquely identifies it.
type Record struct {
	ID         int         `json:"id"`
	Name       string      `json:"name"`
	Categories []string    `json:"categories"`
	Attributes []Attribute `json:"attributes"`
	Images     Images      `json:"images"`
	Height     int         `json:"height,omitempty"`
	Weight     int         `json:"weight,omitempty"`
}

// HasCategory reports whether the record carries the category (case-insensitive).
func (r Record) HasCategory(name string) bool {
	for _, c := range r.Categories {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// Attribute returns the value of the named attribute.
func (r Record) Attribute(name string) (int, bool) {
	for _, a := range r.Attributes {
		if strings.EqualFold(a.Name, name) {
			return a.Value, true
		}
	}
	return 0, false
}

// AttributeTotal sums all attribute values.
func (r Record) AttributeTotal() int {
	total := 0
	for _, a := range r.Attributes {
		total += a.Value
	}
	return total
}

// Species carries the descriptive data shown in a detail view.
type Species struct {
	ID                int           `json:"id"`
	Name              string        `json:"name"`
	Descriptions      []Description `json:"descriptions"`
	EvolutionChainURL string        `json:"evolution_chain_url"`
}

// Description is a localized flavor text.
type Description struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Description returns the first description in lang with whitespace
// (including form feeds used by the API) collapsed to single spaces.
func (s Species) Description(lang string) (string, bool) {
	for _, d := range s.Descriptions {
		if d.Language == lang {
			return strings.Join(strings.Fields(d.Text), " "), true
		}
	}
	return "", false
}

// EvolutionChain is a flattened evolution chain, base stage first.
type EvolutionChain struct {
	ID     int      `json:"id"`
	Stages []string `json:"stages"`
}

// Category is a named record tag as listed by the category endpoint.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
