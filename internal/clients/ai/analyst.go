// Package ai asks a Gemini model for the two judgement calls the pipeline
// outsources: promise-score metric weights and per-stock thematic scores.
// Everything the model returns is validated before use; the caller falls
// back to defaults when the model never produces a valid answer.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/fundscope/fundscope/internal/domain"
	"github.com/fundscope/fundscope/internal/modules/scoring"
	"github.com/fundscope/fundscope/internal/reliability"
)

type generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Analyst wraps the model behind validated, typed calls.
type Analyst struct {
	gen          generator
	weightsRetry reliability.RetryPolicy
	scoresRetry  reliability.RetryPolicy
	log          zerolog.Logger
}

// NewAnalyst builds an analyst for the given Gemini model, or returns nil
// when no API key is configured.
func NewAnalyst(ctx context.Context, apiKey, model string, log zerolog.Logger) (*Analyst, error) {
	if apiKey == "" {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return newAnalyst(&genaiGenerator{client: client, model: model}, log), nil
}

func newAnalyst(gen generator, log zerolog.Logger) *Analyst {
	return &Analyst{
		gen: gen,
		// Weight responses are cheap to regenerate, so retry often with a
		// short fixed wait
		weightsRetry: reliability.RetryPolicy{
			MaxAttempts:    7,
			InitialBackoff: time.Second,
			Multiplier:     1,
		},
		scoresRetry: reliability.RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     60 * time.Second,
			Multiplier:     2,
		},
		log: log.With().Str("component", "analyst").Logger(),
	}
}

// PromiseWeights asks the model for promise-score weights for the quarter.
// Responses that fail weight validation are retried; the last validation
// error is returned when attempts run out.
func (a *Analyst) PromiseWeights(ctx context.Context, quarter domain.Quarter) (scoring.Weights, error) {
	prompt := promiseWeightsPrompt(quarter)

	var weights scoring.Weights
	err := a.weightsRetry.Do(ctx, func() error {
		text, err := a.gen.Generate(ctx, prompt)
		if err != nil {
			return err
		}

		parsed := scoring.Weights{}
		if err := extractJSON(text, &parsed); err != nil {
			return err
		}
		if err := parsed.Validate(); err != nil {
			a.log.Warn().Err(err).Msg("Model returned invalid weights, retrying")
			return err
		}
		weights = parsed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to obtain valid promise weights: %w", err)
	}

	a.log.Info().Interface("weights", weights).Msg("Model selected promise weights")
	return weights, nil
}

var requiredScoreKeys = []string{
	"sub_industry", "momentum_score", "low_volatility_score", "risk_score", "growth_potential_score",
}

// QuantitativeScores asks the model to classify and score the given stocks
// relative to the reference date. Every ticker entry must carry all score
// fields (null is acceptable); partial responses are retried.
func (a *Analyst) QuantitativeScores(ctx context.Context, stocks []scoring.StockRef, referenceDate time.Time) (map[string]scoring.StockScores, error) {
	if len(stocks) == 0 {
		return map[string]scoring.StockScores{}, nil
	}
	prompt := quantitativeScoresPrompt(stocks, referenceDate)

	var scores map[string]scoring.StockScores
	err := a.scoresRetry.Do(ctx, func() error {
		text, err := a.gen.Generate(ctx, prompt)
		if err != nil {
			return err
		}

		var raw map[string]map[string]json.RawMessage
		if err := extractJSON(text, &raw); err != nil {
			return err
		}
		if len(raw) == 0 {
			return fmt.Errorf("model returned no data")
		}
		for ticker, fields := range raw {
			for _, key := range requiredScoreKeys {
				if _, ok := fields[key]; !ok {
					return fmt.Errorf("response for %s is missing %s", ticker, key)
				}
			}
		}

		parsed := map[string]scoring.StockScores{}
		if err := extractJSON(text, &parsed); err != nil {
			return err
		}
		scores = parsed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to obtain stock scores: %w", err)
	}

	a.log.Info().Int("tickers", len(scores)).Msg("Model scored stocks")
	return scores, nil
}

type genaiGenerator struct {
	client *genai.Client
	model  string
}

func (g *genaiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("model returned an empty response")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
