// Package pipeline normalises scraped product records before they are persisted.
package pipeline

import (
	"log/slog"
	"strings"

	"github.com/IshaanNene/PharmaScrape/internal/types"
)

// Middleware processes a record and returns the (possibly modified) record.
// Return nil to drop the record from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms a record. Return nil to drop it.
	Process(rec *types.ProductRecord) (*types.ProductRecord, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Default is the chain every scraped record goes through.
func Default(logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(&RequiredFieldsMiddleware{})
	p.Use(NewSanitizeMiddleware())
	p.Use(&TrimMiddleware{})
	p.Use(NewPriceMiddleware())
	p.Use(&ListDedupMiddleware{})
	p.Use(&DefaultsMiddleware{})
	return p
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the record through all middleware in order.
func (p *Pipeline) Process(rec *types.ProductRecord) (*types.ProductRecord, error) {
	current := rec

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage:  mw.Name(),
				Record: current,
				Err:    err,
			}
		}
		if result == nil {
			p.logger.Debug("record dropped", "stage", mw.Name(), "slug", rec.Slug)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// --- Built-in Middleware ---

// RequiredFieldsMiddleware drops records without a slug.
type RequiredFieldsMiddleware struct{}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(rec *types.ProductRecord) (*types.ProductRecord, error) {
	if strings.TrimSpace(rec.Slug) == "" {
		return nil, nil
	}
	return rec, nil
}

// TrimMiddleware trims whitespace from every text field and drops blank list entries.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(rec *types.ProductRecord) (*types.ProductRecord, error) {
	eachScalar(rec, strings.TrimSpace)
	eachList(rec, func(list []string) []string {
		out := list[:0]
		for _, s := range list {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	})
	return rec, nil
}

// ListDedupMiddleware removes repeated entries inside list fields, keeping the first.
type ListDedupMiddleware struct{}

func (m *ListDedupMiddleware) Name() string { return "list_dedup" }

func (m *ListDedupMiddleware) Process(rec *types.ProductRecord) (*types.ProductRecord, error) {
	eachList(rec, func(list []string) []string {
		seen := make(map[string]struct{}, len(list))
		out := list[:0]
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
		return out
	})
	return rec, nil
}

// DefaultsMiddleware puts the NotFound sentinel into empty scalar fields and
// replaces nil lists with empty ones.
type DefaultsMiddleware struct{}

func (m *DefaultsMiddleware) Name() string { return "default_values" }

func (m *DefaultsMiddleware) Process(rec *types.ProductRecord) (*types.ProductRecord, error) {
	for _, f := range []*string{&rec.Name, &rec.Price, &rec.SKU, &rec.Brand, &rec.Description} {
		if *f == "" {
			*f = types.NotFound
		}
	}
	for _, l := range []*[]string{&rec.Ingredients, &rec.Usage, &rec.SideEffects, &rec.Contraindications, &rec.Images} {
		if *l == nil {
			*l = []string{}
		}
	}
	return rec, nil
}

// eachScalar applies fn to the record's free-text scalar fields.
func eachScalar(rec *types.ProductRecord, fn func(string) string) {
	for _, f := range []*string{&rec.Name, &rec.Price, &rec.SKU, &rec.Brand, &rec.Description, &rec.UsageMethod} {
		*f = fn(*f)
	}
}

// eachList applies fn to the record's text list fields. Image URLs are left alone.
func eachList(rec *types.ProductRecord, fn func([]string) []string) {
	lists := []*[]string{
		&rec.Ingredients, &rec.Usage, &rec.UsageInstructions,
		&rec.SideEffects, &rec.Contraindications, &rec.Precautions,
	}
	for _, l := range lists {
		if *l != nil {
			*l = fn(*l)
		}
	}
}
