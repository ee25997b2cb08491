package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	domainmarket "bagsy/internal/domain/market"
	"bagsy/internal/infra/governor"
)

func newProvider(t *testing.T, handler http.HandlerFunc, budget int) (*LLMProvider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &LLMProvider{
		Client:   resty.New().SetTimeout(2 * time.Second),
		Endpoint: srv.URL,
		Model:    "test-model",
		Governor: governor.New(budget, []time.Duration{time.Millisecond}, nil),
	}, srv
}

func query() domainmarket.Query {
	return domainmarket.Query{
		SpaceCategory: "driveway",
		Location:      "Seattle, WA",
		ListingPrice:  decimal.RequireFromString("20"),
	}
}

func TestSnapshotParsesCompletion(t *testing.T) {
	p, _ := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"text":"Here are the stats:\n{\"average_price\": 18.5, \"median_price\": 18, \"price_range_min\": 12, \"price_range_max\": 25, \"competitor_count\": 14, \"demand_level\": \"HIGH\", \"seasonal_factor\": 1.1}"}]}`))
	}, 5)

	snap := p.Snapshot(context.Background(), query())
	if snap.Synthetic {
		t.Fatal("valid completion must not fall back")
	}
	if !snap.AveragePrice.Equal(decimal.RequireFromString("18.5")) {
		t.Fatalf("average: got %s", snap.AveragePrice)
	}
	if snap.DemandLevel != domainmarket.DemandHigh {
		t.Fatalf("demand level must be coerced to lower case, got %q", snap.DemandLevel)
	}
	if snap.CompetitorCount != 14 {
		t.Fatalf("competitors: got %d", snap.CompetitorCount)
	}
}

func TestSnapshotFallsBackOnGarbage(t *testing.T) {
	p, _ := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"text":"sorry, I cannot help with that"}]}`))
	}, 5)

	snap := p.Snapshot(context.Background(), query())
	if !snap.Synthetic {
		t.Fatal("unparseable completion must degrade to synthetic data")
	}
	// 0.95 x 20
	if !snap.AveragePrice.Equal(decimal.RequireFromString("19")) {
		t.Fatalf("synthetic average: got %s", snap.AveragePrice)
	}
	if snap.DemandLevel != domainmarket.DemandMedium {
		t.Fatalf("synthetic demand must be medium, got %q", snap.DemandLevel)
	}
}

func TestSnapshotFallsBackOnServerError(t *testing.T) {
	calls := 0
	p, _ := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}, 5)

	snap := p.Snapshot(context.Background(), query())
	if !snap.Synthetic {
		t.Fatal("server error must degrade to synthetic data")
	}
	if calls != 2 {
		t.Fatalf("governor should retry once before giving up, got %d calls", calls)
	}
	if p.Governor.Used() != 1 {
		t.Fatalf("failed fetch must still consume one budget slot, got %d", p.Governor.Used())
	}
}

func TestSnapshotFallsBackWhenBudgetSpent(t *testing.T) {
	calls := 0
	p, _ := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}, 0)

	snap := p.Snapshot(context.Background(), query())
	if !snap.Synthetic {
		t.Fatal("quota exhaustion must degrade to synthetic data, not error")
	}
	if calls != 0 {
		t.Fatalf("blocked request must never hit the wire, got %d calls", calls)
	}
}

func TestSnapshotRejectsInvalidStats(t *testing.T) {
	p, _ := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"text":"{\"average_price\": -4, \"demand_level\": \"medium\"}"}]}`))
	}, 5)

	snap := p.Snapshot(context.Background(), query())
	if !snap.Synthetic {
		t.Fatal("negative prices must be rejected at the boundary")
	}
}
