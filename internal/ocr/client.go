// Package ocr recognises text on product images and infers where the product sits.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/IshaanNene/PharmaScrape/internal/config"
	"github.com/IshaanNene/PharmaScrape/internal/fetcher"
	"github.com/IshaanNene/PharmaScrape/internal/observability"
	"github.com/IshaanNene/PharmaScrape/internal/types"
)

// Result is the recognised text of one image.
type Result struct {
	Text           string           `json:"text"`
	Lines          []types.TextLine `json:"lines"`
	ExitCode       int              `json:"exit_code"`
	ProcessingTime time.Duration    `json:"processing_time"`
}

// Recognizer turns an image file into text lines with word boxes.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (*Result, error)
}

// Client calls the OCR.space parse endpoint.
type Client struct {
	fetcher fetcher.Fetcher
	cfg     *config.OCRConfig
	apiKey  string
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewClient creates an OCR.space client. Without a configured key the shared
// public key is used and a warning is logged.
func NewClient(cfg *config.Config, f fetcher.Fetcher, metrics *observability.Metrics, logger *slog.Logger) *Client {
	logger = logger.With("component", "ocr_client")
	key, fallback := cfg.OCR.OCRKey()
	if fallback {
		logger.Warn("OCR_SPACE_API_KEY not set, using the public demo key; not for production use")
	}
	return &Client{
		fetcher: f,
		cfg:     &cfg.OCR,
		apiKey:  key,
		metrics: metrics,
		logger:  logger,
	}
}

// parseResponse mirrors the OCR.space JSON envelope. ErrorMessage is a string
// or an array of strings depending on the failure.
type parseResponse struct {
	ParsedResults []struct {
		ParsedText  string `json:"ParsedText"`
		TextOverlay struct {
			Lines []types.TextLine `json:"Lines"`
		} `json:"TextOverlay"`
	} `json:"ParsedResults"`
	OCRExitCode                  int             `json:"OCRExitCode"`
	IsErroredOnProcessing        bool            `json:"IsErroredOnProcessing"`
	ErrorMessage                 json.RawMessage `json:"ErrorMessage"`
	ProcessingTimeInMilliseconds json.RawMessage `json:"ProcessingTimeInMilliseconds"`
}

// Recognize uploads the image and returns its text lines.
func (c *Client) Recognize(ctx context.Context, imagePath string) (*Result, error) {
	body, contentType, err := c.buildForm(imagePath)
	if err != nil {
		return nil, err
	}

	req, err := types.NewRequest(c.cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	req.Method = "POST"
	req.Body = body
	req.Headers.Set("Content-Type", contentType)

	c.metrics.OCRRequests.Add(1)
	resp, err := c.fetcher.Fetch(ctx, req)
	if err != nil {
		c.metrics.OCRFailures.Add(1)
		return nil, err
	}

	var pr parseResponse
	if err := json.Unmarshal(resp.Body, &pr); err != nil {
		c.metrics.OCRFailures.Add(1)
		return nil, &types.FetchError{URL: c.cfg.Endpoint, Kind: types.KindDecode, Err: err}
	}
	if pr.IsErroredOnProcessing {
		c.metrics.OCRFailures.Add(1)
		return nil, fmt.Errorf("ocr processing failed (exit %d): %s", pr.OCRExitCode, errorMessage(pr.ErrorMessage))
	}

	res := &Result{
		ExitCode:       pr.OCRExitCode,
		ProcessingTime: processingTime(pr.ProcessingTimeInMilliseconds),
		Lines:          []types.TextLine{},
	}
	if len(pr.ParsedResults) > 0 {
		res.Text = pr.ParsedResults[0].ParsedText
		if lines := pr.ParsedResults[0].TextOverlay.Lines; lines != nil {
			res.Lines = lines
		}
	}

	c.logger.Debug("ocr complete",
		"image", filepath.Base(imagePath),
		"lines", len(res.Lines),
		"chars", len(res.Text),
		"processing_time", res.ProcessingTime,
	)
	return res, nil
}

func (c *Client) buildForm(imagePath string) ([]byte, string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"apikey", c.apiKey},
		{"language", c.cfg.Language},
		{"OCREngine", strconv.Itoa(c.cfg.Engine)},
		{"isOverlayRequired", "true"},
		{"detectOrientation", "true"},
		{"scale", "true"},
		{"isTable", "false"},
		{"isCreateSearchablePdf", "false"},
	}
	for _, kv := range fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", err
		}
	}
	part, err := w.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func errorMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "unknown error"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return strings.Join(list, "; ")
	}
	return "unknown error"
}

func processingTime(raw json.RawMessage) time.Duration {
	s := strings.Trim(string(raw), `"`)
	ms, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}
