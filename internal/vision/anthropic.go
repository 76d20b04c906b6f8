package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"
)

// extractionPayload is the JSON shape every model in the chain is asked to
// return: the employee name, passport readings and raw day readings. Kept
// intentionally loose — SemanticGate does the plausibility work
// downstream, not the model.
type extractionPayload struct {
	EmployeeName       string   `json:"employee_name"`
	PassportID         string   `json:"passport_id"`
	PassportCandidates []string `json:"passport_candidates"`
	Days               []struct {
		DayOfMonth int      `json:"day_of_month"`
		FromTime   *string  `json:"from_time"`
		ToTime     *string  `json:"to_time"`
		TotalHours *float64 `json:"total_hours"`
		RowState   string   `json:"row_state"`
		MarkType   string   `json:"mark_type"`
		Confidence float64  `json:"row_confidence"`
		Evidence   []string `json:"evidence"`
	} `json:"days"`
}

const pipelineVersion = "1.0.0"

// AnthropicExtractor is the production Extractor: it sends the card image
// to each model in the configured chain in turn, stopping at the first
// model that returns a parseable extraction.
type AnthropicExtractor struct {
	client *anthropic.Client
	chain  []string
	log    *logrus.Logger
}

// NewAnthropicExtractor builds an extractor over the given model chain.
func NewAnthropicExtractor(apiKey string, chain []string, log *logrus.Logger) *AnthropicExtractor {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AnthropicExtractor{client: &client, chain: chain, log: log}
}

const extractionPrompt = `You are reading a handwritten monthly work-hours card from a photograph.
Return ONLY a JSON object with this exact shape, no prose:
{
  "employee_name": string,
  "passport_id": string,
  "passport_candidates": [string],
  "days": [
    {
      "day_of_month": int,
      "from_time": "HH:MM"|null,
      "to_time": "HH:MM"|null,
      "total_hours": number|null,
      "row_state": "WORKED"|"OFF_MARK"|"EMPTY",
      "mark_type": string|null,
      "row_confidence": number,
      "evidence": [string]
    }
  ]
}
Read every day row present on the card. row_state is WORKED when the row
shows worked time or hours, OFF_MARK when the row is marked with something
other than a time range (e.g. a single line, "X", "OFF", a leave code),
and EMPTY when the row shows nothing at all. mark_type names what the
off-mark row actually shows (e.g. "SINGLE_LINE", "OFF", "LEAVE"); leave it
null for WORKED/EMPTY rows. row_confidence is your own certainty in [0,1]
for the row as a whole. evidence lists short phrases or marks from the
image that support your reading. Leave any other field null if the card
doesn't show it.`

// Extract tries each model in the chain until one returns a parseable
// extraction, matching the original pipeline's primary/fallback/fast chain.
func (e *AnthropicExtractor) Extract(ctx context.Context, imageBytes []byte, mimeType string) (*ExtractedCard, error) {
	var lastErr error
	for _, model := range e.chain {
		card, err := e.tryModel(ctx, model, imageBytes, mimeType)
		if err == nil {
			return card, nil
		}
		e.log.WithFields(logrus.Fields{"model": model, "error": err}).Warn("vision model attempt failed, trying next in chain")
		lastErr = err
	}
	return nil, fmt.Errorf("all models in chain exhausted: %w", lastErr)
}

func (e *AnthropicExtractor) tryModel(ctx context.Context, model string, imageBytes []byte, mimeType string) (*ExtractedCard, error) {
	encoded := base64.StdEncoding.EncodeToString(imageBytes)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mimeType, encoded),
				anthropic.NewTextBlock(extractionPrompt),
			),
		},
	}

	resp, err := e.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", model, err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			text += block.Text
		}
	}
	if text == "" {
		return nil, fmt.Errorf("model %s: empty response", model)
	}

	var payload extractionPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("model %s: unparseable extraction: %w", model, err)
	}

	card := &ExtractedCard{
		EmployeeName:       payload.EmployeeName,
		PassportID:         payload.PassportID,
		PassportCandidates: payload.PassportCandidates,
		ModelUsed:          model,
		ModelVersion:       pipelineVersion,
	}
	for _, d := range payload.Days {
		card.Days = append(card.Days, DayReading{
			DayOfMonth: d.DayOfMonth,
			FromTime:   d.FromTime,
			ToTime:     d.ToTime,
			TotalHours: d.TotalHours,
			Confidence: d.Confidence,
			RowState:   RowState(d.RowState),
			MarkType:   d.MarkType,
			Evidence:   d.Evidence,
		})
	}
	return card, nil
}
