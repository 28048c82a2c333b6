package enrich

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dalbodeule/noticecal/internal/config"
	"github.com/dalbodeule/noticecal/internal/model"
)

// timeLayout is the wall-clock format the prompts demand from the model.
const timeLayout = "2006-01-02 15:04:05"

// nullValue is the string the prompts use for unextractable fields.
const nullValue = "null"

// AnthropicOracle implements Oracle against the Anthropic Messages API.
//
// Sampling is pinned to temperature 0 so repeated runs over unchanged
// content stay stable within the model's own tolerance. Rate-limit and
// overload responses are retried indefinitely on a fixed interval; any
// other API error is returned as-is (fatal for the run).
type AnthropicOracle struct {
	client        anthropic.Client
	model         anthropic.Model
	maxTokens     int64
	retryInterval time.Duration
	loc           *time.Location
	logger        *log.Logger
}

// NewAnthropicOracle builds an oracle from the enrichment configuration.
// Times in model output carry no zone, so they are interpreted in loc.
func NewAnthropicOracle(cfg config.EnrichConfig, loc *time.Location, logger *log.Logger) *AnthropicOracle {
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	return &AnthropicOracle{
		client:        anthropic.NewClient(opts...),
		model:         anthropic.Model(cfg.Model),
		maxTokens:     int64(cfg.MaxTokens),
		retryInterval: cfg.RetryInterval,
		loc:           loc,
		logger:        logger,
	}
}

// ExtractScheduleBatch implements Oracle.ExtractScheduleBatch.
func (o *AnthropicOracle) ExtractScheduleBatch(ctx context.Context, bodies []string) ([]Schedule, error) {
	if len(bodies) == 0 {
		return nil, nil
	}

	content := fmt.Sprintf("공고 개수 : %d\n======================\n%s",
		len(bodies), strings.Join(bodies, "\n"+strings.Repeat("=", 30)+"\n"))

	raw, err := o.complete(ctx, schedulePrompt, anthropic.NewTextBlock(content))
	if err != nil {
		return nil, fmt.Errorf("schedule extraction failed: %w", err)
	}

	var parsed struct {
		Result []struct {
			Application wireWindow `json:"application"`
			Approved    wireWindow `json:"approved"`
		} `json:"result"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("malformed schedule response: %w", err)
	}

	if len(parsed.Result) != len(bodies) {
		return nil, fmt.Errorf("%w: got %d results for %d notices",
			ErrCardinality, len(parsed.Result), len(bodies))
	}

	schedules := make([]Schedule, len(parsed.Result))
	for i, r := range parsed.Result {
		schedules[i] = Schedule{
			Application: o.parseWindow(r.Application),
			Result:      o.parseWindow(r.Approved),
		}
	}

	return schedules, nil
}

// ExtractAttachment implements Oracle.ExtractAttachment. The PDF travels
// inline as a base64 document block; empty input short-circuits to the
// sentinel without a remote call.
func (o *AnthropicOracle) ExtractAttachment(ctx context.Context, pdf []byte) (*SupplyMetadata, error) {
	if len(pdf) == 0 {
		return &SupplyMetadata{Presentation: PresentationUnknown}, nil
	}

	raw, err := o.complete(ctx, attachmentPrompt,
		anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{
			Data: base64.StdEncoding.EncodeToString(pdf),
		}),
		anthropic.NewTextBlock("공고 PDF를 포맷에 맞추어 요약해 주세요."),
	)
	if err != nil {
		return nil, fmt.Errorf("attachment extraction failed: %w", err)
	}

	var parsed struct {
		SupplyMetadata
		Homepage string `json:"homepage"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("malformed attachment response: %w", err)
	}

	meta := parsed.SupplyMetadata
	if parsed.Homepage != "" && parsed.Homepage != nullValue {
		homepage := parsed.Homepage
		meta.Homepage = &homepage
	}
	if meta.Presentation == "" {
		meta.Presentation = PresentationUnknown
	}

	return &meta, nil
}

// complete sends one user turn and returns the concatenated text output,
// retrying indefinitely on rate-limit or overload signals.
func (o *AnthropicOracle) complete(ctx context.Context, system string, blocks ...anthropic.ContentBlockParamUnion) (string, error) {
	for {
		msg, err := o.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:       o.model,
			MaxTokens:   o.maxTokens,
			Temperature: anthropic.Float(0),
			System: []anthropic.TextBlockParam{
				{Text: system},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(blocks...),
			},
		})
		if err != nil {
			if !isRetryable(err) {
				return "", err
			}

			o.logger.Printf("Oracle rate-limited, retrying in %v: %v", o.retryInterval, err)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(o.retryInterval):
			}
			continue
		}

		var b strings.Builder
		for _, block := range msg.Content {
			if block.Type == "text" {
				b.WriteString(block.Text)
			}
		}

		text := strings.TrimSpace(b.String())
		if text == "" {
			return "", fmt.Errorf("empty completion from model")
		}

		return text, nil
	}
}

// isRetryable classifies rate-limit (429) and overload (529 or an
// overloaded_error body) responses as retryable.
func isRetryable(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 || apiErr.StatusCode == 529 {
			return true
		}
	}
	return strings.Contains(err.Error(), "overloaded")
}

// wireWindow is the window shape the prompts specify.
type wireWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// parseWindow turns a wire window into a model window, mapping the "null"
// sentinel (or any unparsable value) on either bound to an absent window.
func (o *AnthropicOracle) parseWindow(w wireWindow) *model.Window {
	if w.Start == "" || w.Start == nullValue || w.End == "" || w.End == nullValue {
		return nil
	}

	start, err := time.ParseInLocation(timeLayout, w.Start, o.loc)
	if err != nil {
		return nil
	}
	end, err := time.ParseInLocation(timeLayout, w.End, o.loc)
	if err != nil {
		return nil
	}

	return &model.Window{Start: start, End: end}
}

// stripCodeFence removes a markdown code fence wrapper if the model added
// one despite the JSON-only instruction.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	lines := strings.Split(s, "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}

	return strings.Join(lines, "\n")
}
