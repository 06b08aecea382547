package types

import "strings"

// Word is one recognised token with its pixel box.
type Word struct {
	Text   string  `json:"WordText"`
	Left   float64 `json:"Left"`
	Top    float64 `json:"Top"`
	Width  float64 `json:"Width"`
	Height float64 `json:"Height"`
}

// TextLine is an ordered sequence of words.
type TextLine struct {
	Words []Word `json:"Words"`
}

// Text joins the line's words, lowercased, separated by spaces.
func (l TextLine) Text() string {
	parts := make([]string, len(l.Words))
	for i, w := range l.Words {
		parts[i] = w.Text
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// Top is the vertical position of the line's first word, or 0 for empty lines.
func (l TextLine) Top() float64 {
	if len(l.Words) == 0 {
		return 0
	}
	return l.Words[0].Top
}

// BoundingBox is a YOLO-style normalised detection label.
type BoundingBox struct {
	XCenter float64 `json:"x_center"`
	YCenter float64 `json:"y_center"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// DefaultBox is used whenever no text geometry is available.
func DefaultBox() BoundingBox {
	return BoundingBox{XCenter: 0.5, YCenter: 0.5, Width: 0.8, Height: 0.8}
}

// DrugInfo is the language model's reading of OCR text.
type DrugInfo struct {
	DrugName         *string `json:"drug_name"`
	ActiveIngredient string  `json:"active_ingredient,omitempty"`
	Dosage           string  `json:"dosage,omitempty"`
	Confidence       float64 `json:"confidence"`
}

// Name returns the drug name or "".
func (d DrugInfo) Name() string {
	if d.DrugName == nil {
		return ""
	}
	return *d.DrugName
}

// Location is the per-image output of the localization engine.
type Location struct {
	ImageIndex int         `json:"image_index"`
	URL        string      `json:"url"`
	Box        BoundingBox `json:"location"`
	DrugInfo   DrugInfo    `json:"drug_info"`
	Success    bool        `json:"success"`
	Error      string      `json:"error,omitempty"`
}
