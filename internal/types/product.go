package types

import (
	"encoding/json"
	"time"
)

// NotFound is the sentinel stored in scalar fields the page did not expose.
const NotFound = "Not found"

// ProductRecord is one scraped product, keyed by Slug across the whole run.
type ProductRecord struct {
	Slug              string   `json:"slug"`
	Name              string   `json:"name"`
	Price             string   `json:"price"`
	PriceValue        int64    `json:"price_value,omitempty"`
	PriceUnit         string   `json:"price_unit,omitempty"`
	SKU               string   `json:"sku"`
	Brand             string   `json:"brand"`
	Description       string   `json:"description"`
	Ingredients       []string `json:"ingredients"`
	Usage             []string `json:"usage"`
	UsageInstructions []string `json:"usage_instructions,omitempty"`
	UsageMethod       string   `json:"usage_method,omitempty"`
	SideEffects       []string `json:"side_effects"`
	Contraindications []string `json:"contraindications"`
	Precautions       []string `json:"precautions,omitempty"`
	Images            []string `json:"images"`

	SearchMetadata   *SearchMetadata `json:"search_metadata,omitempty"`
	ChatbotQuestions []string        `json:"chatbot_questions,omitempty"`
	OCRLocations     []Location      `json:"ocr_locations,omitempty"`

	ScrapedAt time.Time `json:"scraped_at"`
}

// NewProductRecord returns a record whose scalar fields hold the NotFound sentinel
// and whose list fields are empty, so partially rendered pages still yield a record.
func NewProductRecord(slug string) *ProductRecord {
	return &ProductRecord{
		Slug:              slug,
		Name:              NotFound,
		Price:             NotFound,
		SKU:               NotFound,
		Brand:             NotFound,
		Description:       NotFound,
		Ingredients:       []string{},
		Usage:             []string{},
		SideEffects:       []string{},
		Contraindications: []string{},
		Images:            []string{},
		ScrapedAt:         time.Now(),
	}
}

// SearchMetadata records how the product was discovered.
type SearchMetadata struct {
	MatchedKeyword     string `json:"matched_keyword"`
	SKU                string `json:"sku"`
	BrandCode          string `json:"brand_code"`
	BrandName          string `json:"brand_name"`
	IsPrescriptionDrug bool   `json:"is_prescription_drug"`
	IsDrug             bool   `json:"is_drug"`
}

// Clone returns a deep copy of the record.
func (p *ProductRecord) Clone() *ProductRecord {
	b, err := json.Marshal(p)
	if err != nil {
		c := *p
		return &c
	}
	var c ProductRecord
	if err := json.Unmarshal(b, &c); err != nil {
		c = *p
	}
	return &c
}

// Text returns the record's descriptive text for prompts ("name\ndescription").
func (p *ProductRecord) Text() string {
	if p.Description == "" || p.Description == NotFound {
		return p.Name + "\n"
	}
	return p.Name + "\n" + p.Description
}
