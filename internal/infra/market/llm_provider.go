package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	domainmarket "bagsy/internal/domain/market"
	"bagsy/internal/infra/governor"
)

// LLMProvider resolves comparable-pricing snapshots through an LLM completion
// endpoint, behind the process-wide request governor. Any failure on this
// path degrades to a synthetic snapshot derived from the listing's own price:
// the decision engine always needs a snapshot and pricing errors must never
// leak into the negotiation flow.
type LLMProvider struct {
	Client   *resty.Client
	Endpoint string
	Model    string
	Governor *governor.Governor
	Logger   *slog.Logger
}

type completionRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
}

type snapshotPayload struct {
	AveragePrice    float64 `json:"average_price"`
	MedianPrice     float64 `json:"median_price"`
	PriceRangeMin   float64 `json:"price_range_min"`
	PriceRangeMax   float64 `json:"price_range_max"`
	CompetitorCount int     `json:"competitor_count"`
	DemandLevel     string  `json:"demand_level"`
	SeasonalFactor  float64 `json:"seasonal_factor"`
}

// Snapshot implements market.Provider. It never returns an error.
func (p *LLMProvider) Snapshot(ctx context.Context, q domainmarket.Query) domainmarket.Snapshot {
	snap, err := p.fetch(ctx, q)
	if err != nil {
		p.logFallback(q, err)
		return domainmarket.SyntheticSnapshot(q.ListingPrice)
	}
	return snap
}

func (p *LLMProvider) fetch(ctx context.Context, q domainmarket.Query) (domainmarket.Snapshot, error) {
	var zero domainmarket.Snapshot
	if p == nil || p.Client == nil || p.Endpoint == "" {
		return zero, errors.New("market: llm client not configured")
	}
	if p.Governor == nil {
		return zero, governor.ErrNotConfigured
	}

	var payload snapshotPayload
	label := fmt.Sprintf("market-snapshot %s/%s", q.SpaceCategory, q.Location)
	err := p.Governor.ExecuteWithRetry(ctx, label, func(callCtx context.Context) error {
		resp, err := p.Client.R().
			SetContext(callCtx).
			SetBody(completionRequest{
				Model:       p.Model,
				Prompt:      p.prompt(q),
				MaxTokens:   300,
				Temperature: 0.2,
			}).
			SetResult(&completionResponse{}).
			Post(p.Endpoint)
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("market: completion service returned status %d", resp.StatusCode())
		}
		completion, ok := resp.Result().(*completionResponse)
		if !ok || len(completion.Choices) == 0 {
			return errors.New("market: empty completion")
		}
		return parseSnapshotText(completion.Choices[0].Text, &payload)
	})
	if err != nil {
		return zero, err
	}

	snap := domainmarket.Snapshot{
		AveragePrice:    decimal.NewFromFloat(payload.AveragePrice).Round(2),
		MedianPrice:     decimal.NewFromFloat(payload.MedianPrice).Round(2),
		PriceRange:      domainmarket.PriceRange{Min: decimal.NewFromFloat(payload.PriceRangeMin).Round(2), Max: decimal.NewFromFloat(payload.PriceRangeMax).Round(2)},
		CompetitorCount: payload.CompetitorCount,
		DemandLevel:     domainmarket.DemandLevel(strings.ToLower(payload.DemandLevel)),
		SeasonalFactor:  decimal.NewFromFloat(payload.SeasonalFactor),
	}
	if snap.SeasonalFactor.IsZero() {
		snap.SeasonalFactor = decimal.NewFromInt(1)
	}
	// Coerce or reject loosely-typed model output at this boundary.
	if err := snap.Validate(); err != nil {
		return zero, err
	}
	return snap, nil
}

func (p *LLMProvider) prompt(q domainmarket.Query) string {
	return fmt.Sprintf(
		"Provide current rental market statistics for %s spaces near %s as a JSON object with keys "+
			"average_price, median_price, price_range_min, price_range_max, competitor_count, "+
			"demand_level (low|medium|high) and seasonal_factor. Prices are hourly USD. "+
			"Respond with JSON only.",
		q.SpaceCategory, q.Location,
	)
}

// parseSnapshotText tolerates completions that wrap the JSON object in prose
// or code fences; anything without a parseable object is an error.
func parseSnapshotText(text string, out *snapshotPayload) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return errors.New("market: completion contains no JSON object")
	}
	return json.Unmarshal([]byte(text[start:end+1]), out)
}

func (p *LLMProvider) logFallback(q domainmarket.Query, err error) {
	if p == nil || p.Logger == nil {
		return
	}
	p.Logger.Warn("market data unavailable, using synthetic snapshot",
		"category", q.SpaceCategory,
		"location", q.Location,
		"error", err,
	)
}

var _ domainmarket.Provider = (*LLMProvider)(nil)
