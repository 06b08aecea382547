package ocr

import (
	"math"
	"sort"
	"strings"

	"github.com/IshaanNene/PharmaScrape/internal/types"
)

// Padding applied around the text union. Packaging usually extends well below
// the printed name and only a little above it.
const (
	sidePaddingRatio   = 0.2
	topPaddingWords    = 1.5
	bottomPaddingRatio = 2.0
	minTokenLen        = 3
	minBoxSide         = 0.1
)

// Canvas is the pixel size boxes are normalised against.
type Canvas struct {
	Width  float64
	Height float64
}

// DefaultCanvas is the assumed source image size when real dimensions are unknown.
var DefaultCanvas = Canvas{Width: 1000, Height: 1000}

// Rect is a pixel-space rectangle.
type Rect struct {
	Left, Top, Right, Bottom float64
}

// PaddedRect unions every word in lines and pads it asymmetrically.
// ok is false when the lines carry no words.
func PaddedRect(lines []types.TextLine) (r Rect, ok bool) {
	minLeft, minTop := math.Inf(1), math.Inf(1)
	var maxRight, maxBottom, maxWordHeight float64

	for _, line := range lines {
		for _, w := range line.Words {
			ok = true
			minLeft = math.Min(minLeft, w.Left)
			minTop = math.Min(minTop, w.Top)
			maxRight = math.Max(maxRight, w.Left+w.Width)
			maxBottom = math.Max(maxBottom, w.Top+w.Height)
			maxWordHeight = math.Max(maxWordHeight, w.Height)
		}
	}
	if !ok {
		return Rect{}, false
	}

	side := (maxRight - minLeft) * sidePaddingRatio
	top := maxWordHeight * topPaddingWords
	bottom := (maxBottom - minTop) * bottomPaddingRatio

	return Rect{
		Left:   math.Max(0, minLeft-side),
		Top:    math.Max(0, minTop-top),
		Right:  maxRight + side,
		Bottom: maxBottom + bottom,
	}, true
}

// Normalize converts a pixel rect to an unclamped center/size box on canvas.
func (r Rect) Normalize(c Canvas) types.BoundingBox {
	left, top := r.Left/c.Width, r.Top/c.Height
	right, bottom := r.Right/c.Width, r.Bottom/c.Height
	w, h := right-left, bottom-top
	return types.BoundingBox{
		XCenter: left + w/2,
		YCenter: top + h/2,
		Width:   w,
		Height:  h,
	}
}

// Clamp forces centers into [0,1] and sides into [0.1,1].
func Clamp(b types.BoundingBox) types.BoundingBox {
	return types.BoundingBox{
		XCenter: clamp(b.XCenter, 0, 1),
		YCenter: clamp(b.YCenter, 0, 1),
		Width:   clamp(b.Width, minBoxSide, 1),
		Height:  clamp(b.Height, minBoxSide, 1),
	}
}

// BoxFromLines is the padded, normalised, clamped box around lines.
func BoxFromLines(lines []types.TextLine, c Canvas) types.BoundingBox {
	r, ok := PaddedRect(lines)
	if !ok || c.Width <= 0 || c.Height <= 0 {
		return types.DefaultBox()
	}
	return Clamp(r.Normalize(c))
}

// BoxFromAllLines sorts lines top to bottom and boxes the first
// max(3, n/3) of them, where the product name usually sits.
func BoxFromAllLines(lines []types.TextLine, c Canvas) types.BoundingBox {
	if len(lines) == 0 {
		return types.DefaultBox()
	}
	sorted := make([]types.TextLine, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Top() < sorted[j].Top()
	})

	n := len(sorted) / 3
	if n < 3 {
		n = 3
	}
	if n > len(sorted) {
		n = len(sorted)
	}
	return BoxFromLines(sorted[:n], c)
}

// NameTokens lowercases name and keeps whitespace-separated tokens of at
// least three characters.
func NameTokens(name string) []string {
	var tokens []string
	for _, t := range strings.Fields(strings.ToLower(name)) {
		if len([]rune(t)) >= minTokenLen {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// MatchLines returns the lines whose lowercased text contains any usable
// token of drugName.
func MatchLines(lines []types.TextLine, drugName string) []types.TextLine {
	tokens := NameTokens(drugName)
	if len(tokens) == 0 {
		return nil
	}
	var matched []types.TextLine
	for _, line := range lines {
		if len(line.Words) == 0 {
			continue
		}
		text := line.Text()
		for _, tok := range tokens {
			if strings.Contains(text, tok) {
				matched = append(matched, line)
				break
			}
		}
	}
	return matched
}

// DetermineBox picks the region for one image: the default box without text,
// the matching lines when the drug name is found, else the top lines.
func DetermineBox(lines []types.TextLine, drugName string, c Canvas) types.BoundingBox {
	if len(lines) == 0 {
		return types.DefaultBox()
	}
	if drugName != "" {
		if matched := MatchLines(lines, drugName); len(matched) > 0 {
			return BoxFromLines(matched, c)
		}
	}
	return BoxFromAllLines(lines, c)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(hi, math.Max(lo, v))
}
