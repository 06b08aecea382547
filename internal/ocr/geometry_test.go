package ocr

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/PharmaScrape/internal/types"
)

func line(words ...types.Word) types.TextLine {
	return types.TextLine{Words: words}
}

func word(text string, left, top, width, height float64) types.Word {
	return types.Word{Text: text, Left: left, Top: top, Width: width, Height: height}
}

func assertBoxInRange(t *testing.T, b types.BoundingBox) {
	t.Helper()
	assert.GreaterOrEqual(t, b.XCenter, 0.0)
	assert.LessOrEqual(t, b.XCenter, 1.0)
	assert.GreaterOrEqual(t, b.YCenter, 0.0)
	assert.LessOrEqual(t, b.YCenter, 1.0)
	assert.GreaterOrEqual(t, b.Width, 0.1)
	assert.LessOrEqual(t, b.Width, 1.0)
	assert.GreaterOrEqual(t, b.Height, 0.1)
	assert.LessOrEqual(t, b.Height, 1.0)
}

func TestSingleWordAsymmetricPadding(t *testing.T) {
	lines := []types.TextLine{line(word("Panadol", 100, 100, 50, 20))}

	r, ok := PaddedRect(lines)
	require.True(t, ok)

	padAbove := 100 - r.Top
	padBelow := r.Bottom - 120
	assert.InDelta(t, 30, padAbove, 1e-9)
	assert.InDelta(t, 40, padBelow, 1e-9)
	assert.Greater(t, padBelow, padAbove)
	assert.InDelta(t, 10, 100-r.Left, 1e-9)
	assert.InDelta(t, 10, r.Right-150, 1e-9)

	raw := r.Normalize(DefaultCanvas)
	assert.Greater(t, raw.XCenter, 0.1)
	assert.Greater(t, raw.YCenter, 0.1)
	assert.InDelta(t, 0.125, raw.XCenter, 1e-9)
	assert.InDelta(t, 0.115, raw.YCenter, 1e-9)

	box := BoxFromLines(lines, DefaultCanvas)
	assert.InDelta(t, 0.1, box.Width, 1e-9)
	assert.InDelta(t, 0.1, box.Height, 1e-9)
	assertBoxInRange(t, box)
}

func TestPaddingClampsAtImageEdge(t *testing.T) {
	r, ok := PaddedRect([]types.TextLine{line(word("X", 5, 5, 100, 40))})
	require.True(t, ok)
	assert.Equal(t, 0.0, r.Left)
	assert.Equal(t, 0.0, r.Top)
}

func TestBoxesAlwaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		var lines []types.TextLine
		for n := rng.Intn(8); n >= 0; n-- {
			lines = append(lines, line(word("w",
				rng.Float64()*3000-500,
				rng.Float64()*3000-500,
				rng.Float64()*800,
				rng.Float64()*200,
			)))
		}
		assertBoxInRange(t, BoxFromLines(lines, DefaultCanvas))
		assertBoxInRange(t, BoxFromAllLines(lines, DefaultCanvas))
		assertBoxInRange(t, DetermineBox(lines, "w", DefaultCanvas))
	}
}

func TestEmptyInputsUseDefaultBox(t *testing.T) {
	assert.Equal(t, types.DefaultBox(), DetermineBox(nil, "Panadol", DefaultCanvas))
	assert.Equal(t, types.DefaultBox(), BoxFromAllLines(nil, DefaultCanvas))
	assert.Equal(t, types.DefaultBox(), BoxFromLines([]types.TextLine{{}}, DefaultCanvas))
}

func TestMatchLines(t *testing.T) {
	lines := []types.TextLine{
		line(word("panadol", 10, 10, 80, 20), word("500mg", 100, 10, 60, 20)),
		line(word("Hộp", 10, 200, 40, 20), word("10", 60, 200, 20, 20)),
	}

	matched := MatchLines(lines, "Panadol Extra")
	require.Len(t, matched, 1)
	assert.Equal(t, "panadol 500mg", matched[0].Text())

	assert.Empty(t, MatchLines(lines, "Là"))
	assert.Empty(t, MatchLines(lines, ""))
}

func TestShortNameFallsBackToTopLines(t *testing.T) {
	lines := []types.TextLine{
		line(word("bottom", 0, 900, 100, 20)),
		line(word("top", 400, 10, 100, 20)),
		line(word("mid", 400, 300, 100, 20)),
		line(word("upper", 400, 100, 100, 20)),
	}
	// "Là" has no usable token, so the box comes from the three topmost lines.
	got := DetermineBox(lines, "Là", DefaultCanvas)
	want := BoxFromLines([]types.TextLine{lines[1], lines[3], lines[2]}, DefaultCanvas)
	assert.Equal(t, want, got)
	assert.Equal(t, BoxFromAllLines(lines, DefaultCanvas), got)
}

func TestBoxFromAllLinesTakesThird(t *testing.T) {
	var lines []types.TextLine
	for i := 11; i >= 0; i-- {
		lines = append(lines, line(word("l", 100, float64(i*50), 100, 10)))
	}
	// 12 lines -> max(3, 4) = 4 topmost: tops 0,50,100,150.
	got := BoxFromAllLines(lines, DefaultCanvas)
	want := BoxFromLines([]types.TextLine{lines[11], lines[10], lines[9], lines[8]}, DefaultCanvas)
	assert.Equal(t, want, got)
	// input order untouched
	assert.Equal(t, 550.0, lines[0].Top())
}

func TestRealCanvas(t *testing.T) {
	lines := []types.TextLine{line(word("x", 100, 100, 50, 20))}
	small := BoxFromLines(lines, Canvas{Width: 500, Height: 500})
	big := BoxFromLines(lines, DefaultCanvas)
	assert.Greater(t, small.XCenter, big.XCenter)
	assert.Equal(t, types.DefaultBox(), BoxFromLines(lines, Canvas{}))
}
