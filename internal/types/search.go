package types

import (
	"encoding/json"
	"sort"
)

// ImageFields are the search-item keys that would trigger incidental image fetches.
var ImageFields = []string{"image", "thumb_image", "images"}

// SearchItem is a lightweight product summary returned by a keyword search.
// Unknown keys are preserved in Fields so the audit artifact stays faithful.
type SearchItem struct {
	Slug               string
	Name               string
	SKU                string
	BrandCode          string
	BrandName          string
	IsPrescriptionDrug bool
	IsDrug             bool

	Fields map[string]json.RawMessage
}

// UnmarshalJSON keeps every key and tolerates loosely typed known fields.
func (s *SearchItem) UnmarshalJSON(data []byte) error {
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	s.Fields = fields
	s.Slug = rawString(fields["slug"])
	s.Name = rawString(fields["name"])
	s.SKU = rawString(fields["sku"])
	s.BrandCode = rawString(fields["brand_code"])
	s.BrandName = rawString(fields["brand_name"])
	s.IsPrescriptionDrug = rawBool(fields["is_prescription_drug"])
	s.IsDrug = rawBool(fields["is_drug"])
	return nil
}

// MarshalJSON writes the preserved fields, or the typed summary when none exist.
func (s SearchItem) MarshalJSON() ([]byte, error) {
	if s.Fields != nil {
		return json.Marshal(s.Fields)
	}
	return json.Marshal(map[string]any{
		"slug":                 s.Slug,
		"name":                 s.Name,
		"sku":                  s.SKU,
		"brand_code":           s.BrandCode,
		"brand_name":           s.BrandName,
		"is_prescription_drug": s.IsPrescriptionDrug,
		"is_drug":              s.IsDrug,
	})
}

// StripImages removes every image-bearing key.
func (s *SearchItem) StripImages() {
	for _, k := range ImageFields {
		delete(s.Fields, k)
	}
}

// Has reports whether the raw item carried key.
func (s *SearchItem) Has(key string) bool {
	_, ok := s.Fields[key]
	return ok
}

// Keys returns the sorted raw keys.
func (s *SearchItem) Keys() []string {
	keys := make([]string, 0, len(s.Fields))
	for k := range s.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Metadata converts the summary into the record's search metadata.
func (s *SearchItem) Metadata(keyword string) *SearchMetadata {
	return &SearchMetadata{
		MatchedKeyword:     keyword,
		SKU:                s.SKU,
		BrandCode:          s.BrandCode,
		BrandName:          s.BrandName,
		IsPrescriptionDrug: s.IsPrescriptionDrug,
		IsDrug:             s.IsDrug,
	}
}

// SearchResultPage is the ephemeral result of one keyword query.
type SearchResultPage struct {
	Total int          `json:"total"`
	Items []SearchItem `json:"items"`
}

// EmptyPage is what a failed or empty search degrades to.
func EmptyPage() *SearchResultPage {
	return &SearchResultPage{Total: 0, Items: []SearchItem{}}
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func rawBool(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n != 0
	}
	return false
}
