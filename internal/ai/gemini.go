// README: Gemini-backed leave-time predictor (JSON mode).
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"commute/internal/prediction"
)

// GeminiPredictor implements prediction.Predictor using Google's Gemini models.
type GeminiPredictor struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiPredictor initializes a new Gemini client.
// apiKey should be provided from environment variables.
func NewGeminiPredictor(ctx context.Context, apiKey, modelName string) (*GeminiPredictor, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}
	model := client.GenerativeModel(modelName)

	// Force JSON response for structured parsing.
	model.ResponseMIMEType = "application/json"
	// Low temperature: the same inputs should give the same leave time.
	model.SetTemperature(0.1)

	return &GeminiPredictor{
		client: client,
		model:  model,
	}, nil
}

// Close cleans up the Gemini client resources.
func (p *GeminiPredictor) Close() {
	p.client.Close()
}

// Predict asks the model for a leave time given the route and weather features.
func (p *GeminiPredictor) Predict(ctx context.Context, in prediction.Input) (prediction.Prediction, error) {
	resp, err := p.model.GenerateContent(ctx, genai.Text(buildPrompt(in)))
	if err != nil {
		return prediction.Prediction{}, fmt.Errorf("gemini generation error: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return prediction.Prediction{}, fmt.Errorf("no response candidates from Gemini")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		}
	}

	return parseAdvice(responseText.String(), in)
}

// parseAdvice converts the model's JSON answer into a Prediction and rejects
// answers that would not get the user there on time.
func parseAdvice(raw string, in prediction.Input) (prediction.Prediction, error) {
	cleanJSON := cleanJSONString(raw)

	var advice LeaveAdvice
	if err := json.Unmarshal([]byte(cleanJSON), &advice); err != nil {
		return prediction.Prediction{}, fmt.Errorf("failed to parse JSON response: %w. Raw: %s", err, cleanJSON)
	}

	leave, err := time.Parse(time.RFC3339, advice.LeaveTime)
	if err != nil {
		return prediction.Prediction{}, fmt.Errorf("invalid leave_time %q: %w", advice.LeaveTime, err)
	}
	if !leave.Before(in.ArrivalTime) {
		return prediction.Prediction{}, fmt.Errorf("leave_time %s is not before arrival %s", leave, in.ArrivalTime)
	}

	confidence := advice.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	predictedAt := in.CurrentTime
	if predictedAt.IsZero() {
		predictedAt = time.Now()
	}

	out := prediction.Prediction{
		LeaveTime:     leave.UTC(),
		Confidence:    confidence,
		Explanation:   advice.Explanation,
		BufferMinutes: advice.BufferMinutes,
		Source:        prediction.SourceModel,
		PredictedAt:   predictedAt.UTC(),
	}
	for _, alt := range advice.Alternatives {
		t, err := time.Parse(time.RFC3339, alt.LeaveTime)
		if err != nil {
			continue
		}
		out.Alternatives = append(out.Alternatives, prediction.Alternative{
			LeaveTime:          t.UTC(),
			ArrivalProbability: alt.ArrivalProbability,
			Description:        alt.Description,
		})
	}
	return out, nil
}

// buildPrompt constructs the instructions for the model.
func buildPrompt(in prediction.Input) string {
	now := in.CurrentTime
	if now.IsZero() {
		now = time.Now()
	}
	return fmt.Sprintf(`Role: You estimate when a commuter must leave to arrive on time.
Context:
- Current time (UTC): %s
- Required arrival (UTC): %s
- Origin: %s
- Destination: %s
- Route: distance %.0f m, free-flow duration %.0f s, current traffic delay %.0f s, %d incidents, congestion level %d of 4
- Weather: score %.0f of 100, precipitation probability %.0f%%, visibility %.1f km

RULES:
1. leave_time MUST be strictly before the required arrival.
2. Include a buffer for uncertainty; larger when congestion >= 3 or precipitation > 50%%.
3. confidence is your probability (0..1) of on-time arrival when leaving at leave_time.
4. Give up to three alternatives (earlier and later) with arrival_probability.

Output JSON Schema:
{
  "leave_time": "RFC3339 UTC",
  "confidence": number,
  "buffer_minutes": integer,
  "explanation": "short string, e.g. '42 min travel, heavy traffic, 9 min buffer'",
  "alternatives": [{"leave_time": "RFC3339 UTC", "arrival_probability": number, "description": "string"}]
}
`,
		now.UTC().Format(time.RFC3339),
		in.ArrivalTime.UTC().Format(time.RFC3339),
		in.Origin, in.Destination,
		in.Route.Distance, in.Route.BaselineDuration, in.Route.CurrentTrafficDelay,
		in.Route.IncidentCount, in.Route.CongestionLevel,
		in.Weather.WeatherScore, in.Weather.PrecipitationProbability, in.Weather.Visibility,
	)
}

// cleanJSONString removes markdown code blocks if present (e.g. ```json ... ```)
func cleanJSONString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}
