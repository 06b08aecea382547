package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"

	"github.com/IshaanNene/PharmaScrape/internal/config"
	"github.com/IshaanNene/PharmaScrape/internal/fetcher"
	"github.com/IshaanNene/PharmaScrape/internal/observability"
	"github.com/IshaanNene/PharmaScrape/internal/types"
)

// Enricher wraps the language model with the collector's prompts. Every
// method degrades to an empty or neutral value on failure.
type Enricher struct {
	gen     Generator
	policy  RetryPolicy
	limiter *rate.Limiter
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewEnricher creates an Enricher. Calls are spaced by llm.call_delay.
func NewEnricher(cfg *config.Config, gen Generator, metrics *observability.Metrics, logger *slog.Logger) *Enricher {
	e := &Enricher{
		gen:     gen,
		limiter: fetcher.NewPacer(cfg.LLM.CallDelay),
		metrics: metrics,
		logger:  logger.With("component", "enricher"),
	}
	e.policy = RetryPolicy{
		MaxRetries:     cfg.LLM.MaxRetries,
		InitialBackoff: cfg.LLM.InitialBackoff,
		OnRetry: func(int, time.Duration, error) {
			e.metrics.LLMRetries.Add(1)
		},
	}
	return e
}

func (e *Enricher) call(ctx context.Context, task, prompt string) (string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", err
	}
	e.metrics.LLMCalls.Add(1)
	out, err := WithRetry(ctx, e.policy, e.logger.With("task", task), func(ctx context.Context) (string, error) {
		return e.gen.Generate(ctx, prompt)
	})
	if err != nil {
		e.metrics.LLMFailures.Add(1)
		e.logger.Error("llm call failed", "task", task, "error", err)
		return "", err
	}
	return out, nil
}

// ExpandKeywords asks for count new search keywords related to seed.
func (e *Enricher) ExpandKeywords(ctx context.Context, seed []string, count int) []string {
	if count <= 0 {
		return []string{}
	}
	out, err := e.call(ctx, "expand_keywords", keywordPrompt(seed, count))
	if err != nil {
		return []string{}
	}

	var raw []string
	if err := decodeInto(out, '[', &raw); err != nil {
		e.logger.Warn("could not parse keywords", "error", err)
		return []string{}
	}
	keywords := make([]string, 0, len(raw))
	for _, k := range raw {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	e.logger.Info("keywords generated", "requested", count, "received", len(keywords))
	return keywords
}

// MergeKeywords concatenates lists, dropping repeats. Order of first
// appearance is kept. Keywords compare equal after NFC normalisation.
func MergeKeywords(lists ...[]string) []string {
	seen := make(map[string]bool)
	merged := []string{}
	for _, list := range lists {
		for _, k := range list {
			key := norm.NFC.String(strings.TrimSpace(k))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, key)
		}
	}
	return merged
}

// Categorize groups descriptions into named categories of indices. Indices
// outside the input are dropped.
func (e *Enricher) Categorize(ctx context.Context, descriptions []string) map[string][]int {
	categories := map[string][]int{}
	if len(descriptions) == 0 {
		return categories
	}
	out, err := e.call(ctx, "categorize", categoryPrompt(descriptions))
	if err != nil {
		return categories
	}

	var raw map[string][]int
	if err := decodeInto(out, '{', &raw); err != nil {
		e.logger.Warn("could not parse categories", "error", err)
		return categories
	}
	for name, idxs := range raw {
		var valid []int
		for _, i := range idxs {
			if i >= 0 && i < len(descriptions) {
				valid = append(valid, i)
			}
		}
		if len(valid) > 0 {
			categories[name] = valid
		}
	}
	return categories
}

// GenerateQuestions returns patient questions about p, five in Vietnamese
// and five in English.
func (e *Enricher) GenerateQuestions(ctx context.Context, p *types.ProductRecord) []string {
	out, err := e.call(ctx, "questions", questionPrompt(p))
	if err != nil {
		return []string{}
	}
	var questions []string
	if err := decodeInto(out, '[', &questions); err != nil {
		e.logger.Warn("could not parse questions", "slug", p.Slug, "error", err)
		return []string{}
	}
	return questions
}

type drugResponse struct {
	DrugName         *string         `json:"drugName"`
	ActiveIngredient string          `json:"activeIngredient"`
	Dosage           string          `json:"dosage"`
	Confidence       json.RawMessage `json:"confidence"`
}

// AnalyzeDrug reads a drug name, active ingredient and dosage out of OCR text.
// Empty text, a failed call or a malformed answer give a nil name and zero confidence.
func (e *Enricher) AnalyzeDrug(ctx context.Context, text string) types.DrugInfo {
	if strings.TrimSpace(text) == "" {
		return types.DrugInfo{}
	}
	out, err := e.call(ctx, "analyze_drug", drugPrompt(text))
	if err != nil {
		return types.DrugInfo{}
	}

	var resp drugResponse
	if err := decodeInto(out, '{', &resp); err != nil {
		e.logger.Warn("could not parse drug analysis", "error", err)
		return types.DrugInfo{}
	}

	info := types.DrugInfo{
		ActiveIngredient: resp.ActiveIngredient,
		Dosage:           resp.Dosage,
		Confidence:       parseConfidence(resp.Confidence),
	}
	if resp.DrugName != nil {
		if name := strings.TrimSpace(*resp.DrugName); name != "" {
			info.DrugName = &name
		}
	}
	if info.DrugName == nil {
		info.Confidence = 0
	}
	e.logger.Debug("drug identified", "drug", info.Name(), "confidence", info.Confidence)
	return info
}

// parseConfidence accepts 85, 85.5, "85" or "85%" and clamps to 0..100.
func parseConfidence(raw json.RawMessage) float64 {
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

func keywordPrompt(seed []string, count int) string {
	var sb strings.Builder
	sb.WriteString("In Vietnam, I'm collecting data about medications from Pharmacity.\n")
	sb.WriteString("(Tôi đang thu thập dữ liệu về thuốc từ Pharmacity tại Việt Nam.)\n\n")
	if len(seed) > 0 {
		fmt.Fprintf(&sb, "I already have these keywords: %s\n", strings.Join(seed, ", "))
		fmt.Fprintf(&sb, "Tôi đã có những từ khóa sau: %s\n\n", strings.Join(seed, ", "))
	}
	fmt.Fprintf(&sb, "Generate %d Vietnamese search keywords related to different medical conditions, "+
		"symptoms, or medication types that people might search for at a pharmacy.\n", count)
	fmt.Fprintf(&sb, "(Tạo %d từ khóa tìm kiếm bằng tiếng Việt liên quan đến các tình trạng y tế, "+
		"triệu chứng, hoặc loại thuốc khác nhau mà mọi người có thể tìm kiếm tại nhà thuốc.)\n\n", count)
	sb.WriteString("Return only a JSON array of strings without any other text.\n")
	sb.WriteString(`Example format: ["keyword1", "keyword2", "keyword3"]` + "\n")
	sb.WriteString("Make sure to include a diverse range of medical conditions, common health issues, and medication categories.\n")
	return sb.String()
}

func categoryPrompt(descriptions []string) string {
	var sb strings.Builder
	sb.WriteString("I have collected descriptions of different medications from a pharmacy.\n")
	sb.WriteString("(Tôi đã thu thập mô tả về các loại thuốc khác nhau từ nhà thuốc.)\n\n")
	sb.WriteString("Based on these descriptions, categorize them into logical drug categories.\n\n")
	sb.WriteString("Descriptions:\n")
	for i, d := range descriptions {
		fmt.Fprintf(&sb, "[%d] %s\n\n", i, d)
	}
	sb.WriteString("Return a JSON object where keys are category names and values are arrays of indices ")
	sb.WriteString("corresponding to the order of the descriptions I provided.\n")
	sb.WriteString(`Example format: {"Pain Relief": [0, 3, 5], "Antibiotics": [1, 6], "Cold & Flu": [2, 4]}` + "\n")
	return sb.String()
}

func questionPrompt(p *types.ProductRecord) string {
	list := func(v []string) string {
		if len(v) == 0 {
			return "N/A"
		}
		return strings.Join(v, ", ")
	}
	desc := p.Description
	if desc == "" || desc == types.NotFound {
		desc = "N/A"
	}

	var sb strings.Builder
	sb.WriteString("I have information about a medication:\n")
	sb.WriteString("(Tôi có thông tin về một loại thuốc:)\n\n")
	fmt.Fprintf(&sb, "Name (Tên): %s\n", p.Name)
	fmt.Fprintf(&sb, "Description (Mô tả): %s\n", desc)
	fmt.Fprintf(&sb, "Ingredients (Thành phần): %s\n", list(p.Ingredients))
	fmt.Fprintf(&sb, "Usage (Công dụng): %s\n", list(p.Usage))
	fmt.Fprintf(&sb, "Side Effects (Tác dụng phụ): %s\n\n", list(p.SideEffects))
	sb.WriteString("Generate 10 potential questions that patients might ask about this medication for chatbot training.\n")
	sb.WriteString("Generate 5 questions in Vietnamese and 5 questions in English.\n")
	sb.WriteString("Return only a JSON array of strings without any other text.\n")
	sb.WriteString(`Example format: ["Question 1?", "Question 2?", "Question 3?"]` + "\n")
	return sb.String()
}

func drugPrompt(text string) string {
	var sb strings.Builder
	sb.WriteString("Dựa vào văn bản được trích xuất từ ảnh sản phẩm dược phẩm dưới đây, hãy xác định tên của loại thuốc.\n")
	sb.WriteString("Nếu có thể, hãy cung cấp:\n")
	sb.WriteString("1. Tên thuốc/sản phẩm dược phẩm (bắt buộc)\n")
	sb.WriteString("2. Thành phần hoạt chất chính và liều lượng (nếu có)\n")
	sb.WriteString("3. Mức độ tin cậy về việc xác định đúng tên thuốc (0-100%)\n\n")
	fmt.Fprintf(&sb, "Đây là văn bản OCR từ ảnh:\n%q\n\n", text)
	sb.WriteString("Trả về kết quả dưới định dạng JSON có cấu trúc như sau:\n")
	sb.WriteString(`{"drugName": "Tên thuốc/sản phẩm", "activeIngredient": "Thành phần hoạt chất chính", "dosage": "Liều lượng", "confidence": <0-100>}` + "\n")
	sb.WriteString("Hãy chỉ trả về JSON, không có văn bản phụ trước hoặc sau.\n")
	return sb.String()
}
