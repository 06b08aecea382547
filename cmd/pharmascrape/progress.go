package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/IshaanNene/PharmaScrape/internal/engine"
)

// keywordProgress renders one bar tick per finished keyword.
type keywordProgress struct {
	bar *progressbar.ProgressBar
}

func newKeywordProgress() *keywordProgress {
	bar := progressbar.NewOptions(
		-1,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("keywords"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &keywordProgress{bar: bar}
}

// Func adapts the bar to the collector's progress callback.
func (p *keywordProgress) Func() engine.ProgressFunc {
	return func(done, total int, keyword string) {
		if p.bar.GetMax() != total {
			p.bar.ChangeMax(total)
		}
		p.bar.Describe(fmt.Sprintf("keywords (%s)", keyword))
		_ = p.bar.Set(done)
	}
}

func (p *keywordProgress) Finish() {
	_ = p.bar.Finish()
}
