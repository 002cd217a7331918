package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/warrantyvault/backend/pkg/anthropic"
	pkgerrors "github.com/warrantyvault/backend/pkg/errors"
	"github.com/warrantyvault/backend/pkg/logger"
	"github.com/warrantyvault/backend/pkg/metrics"
)

// extractionPrompt asks for a fixed JSON shape so the response can be parsed
// without free-text interpretation. Null means "not present in the document".
const extractionPrompt = `Analyze this warranty document (receipt, warranty slip, or invoice) and extract the following fields as a JSON object:
- productName (string)
- brand (string)
- model (string)
- serialNumber (string)
- purchaseDate (YYYY-MM-DD)
- warrantyDuration (string, e.g. "1 year", "24 months")
- expiryDate (YYYY-MM-DD, only if explicitly stated on the document)
Use null for any field that is not present in the document. Return ONLY the JSON object, no markdown fences or explanation.`

// Document is the input to an extraction call: a short-lived signed URL (or
// raw bytes when no URL is available) plus the sniffed mime type.
type Document struct {
	SignedURL string
	Data      string // base64, used only when SignedURL is empty
	MimeType  string
}

// Result carries the normalized field set plus audit metadata. Every field
// in Fields may be null; that is a valid outcome for a low-quality scan,
// not an error.
type Result struct {
	Fields ExtractedFields
	Raw    json.RawMessage
	Source string
	Usage  anthropic.TokenUsage
}

// Service runs schema-constrained vision extraction against the model
// backend. It never mutates any store and never fabricates a value.
type Service interface {
	Extract(ctx context.Context, doc Document) (*Result, error)
}

type service struct {
	client    anthropic.Client
	logg      *logger.Logger
	pipeline  *metrics.PipelineMetrics
	model     string
	maxTokens int64
	timeout   time.Duration
}

// NewService builds an extraction service bound to the given model.
func NewService(client anthropic.Client, logg *logger.Logger, pipeline *metrics.PipelineMetrics, model string, maxTokens int64, timeout time.Duration) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("anthropic client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if model == "" {
		return nil, fmt.Errorf("model required")
	}
	if maxTokens <= 0 {
		return nil, fmt.Errorf("max tokens must be positive")
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive")
	}
	return &service{
		client:    client,
		logg:      logg,
		pipeline:  pipeline,
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
	}, nil
}

func (s *service) Extract(ctx context.Context, doc Document) (*Result, error) {
	if doc.SignedURL == "" && doc.Data == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "document url or data required")
	}
	if doc.MimeType == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "document mime type required")
	}

	// The call is bounded by its own timeout, independent of how long the
	// signed URL stays valid.
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// Extraction wants the same answer for the same document, so sampling
	// temperature is pinned to zero.
	temperature := 0.0
	started := time.Now()
	resp, err := s.client.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:       s.model,
		MaxTokens:   s.maxTokens,
		Temperature: &temperature,
		System:      []anthropic.SystemBlock{{Text: extractionPrompt}},
		Messages: []anthropic.Message{
			{
				Role:    "user",
				Content: "Extract the warranty fields from the attached document.",
				Attachments: []anthropic.Attachment{
					{URL: doc.SignedURL, Data: doc.Data, MediaType: doc.MimeType},
				},
			},
		},
	})
	if err != nil {
		s.observe("unreachable", started, nil)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "extraction backend call failed")
	}

	text := resp.FirstText()
	if text == "" {
		s.observe("empty", started, resp)
		return nil, pkgerrors.New(pkgerrors.CodeExtraction, "extraction returned an empty response")
	}

	rawJSON, ok := firstJSONObject(text)
	if !ok {
		s.observe("no_json", started, resp)
		return nil, pkgerrors.New(pkgerrors.CodeExtraction, "no JSON object in extraction response")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(rawJSON), &payload); err != nil {
		s.observe("malformed", started, resp)
		return nil, pkgerrors.Wrap(pkgerrors.CodeExtraction, err, "extraction response is not valid JSON")
	}

	s.observe("completed", started, resp)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"model":          resp.Model,
		"input_tokens":   resp.Usage.InputTokens,
		"output_tokens":  resp.Usage.OutputTokens,
		"estimated_cost": resp.Usage.EstimateCost(resp.Model),
	}), "extraction completed")
	return &Result{
		Fields: normalizeFields(payload),
		Raw:    json.RawMessage(rawJSON),
		Source: resp.Model,
		Usage:  resp.Usage,
	}, nil
}

func (s *service) observe(outcome string, started time.Time, resp *anthropic.MessageResponse) {
	s.pipeline.IncExtraction(outcome)
	s.pipeline.ObserveExtractionDuration(outcome, time.Since(started))
	if resp != nil {
		s.pipeline.AddExtractionTokens(resp.Usage.InputTokens, resp.Usage.OutputTokens)
	}
}

// firstJSONObject scans the text for the first balanced JSON object,
// tolerating markdown fences and surrounding prose.
func firstJSONObject(text string) (string, bool) {
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
	}
	return "", false
}
