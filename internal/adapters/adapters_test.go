package adapters

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-pipeline/internal/model"
	"github.com/sells-group/prospect-pipeline/internal/resilience"
	"github.com/sells-group/prospect-pipeline/pkg/directory"
	"github.com/sells-group/prospect-pipeline/pkg/places"
	"github.com/sells-group/prospect-pipeline/pkg/reviews"
	"github.com/sells-group/prospect-pipeline/pkg/strategy"
	"github.com/sells-group/prospect-pipeline/pkg/webresearch"
)

type stubPlaces struct {
	place *places.Place
	err   error
	name  string
	loc   string
}

func (s *stubPlaces) FindBusiness(_ context.Context, name, location string) (*places.Place, error) {
	s.name, s.loc = name, location
	return s.place, s.err
}

type stubWeb struct {
	page *webresearch.Page
	err  error
}

func (s *stubWeb) Read(context.Context, string) (*webresearch.Page, error) {
	return s.page, s.err
}

type stubReviews struct {
	summary *reviews.Summary
	bench   *reviews.Benchmark
	err     error
	trade   string
	region  string
}

func (s *stubReviews) PlaceReviews(context.Context, string) (*reviews.Summary, error) {
	return s.summary, s.err
}

func (s *stubReviews) CompetitorBenchmark(_ context.Context, trade, region string) (*reviews.Benchmark, error) {
	s.trade, s.region = trade, region
	return s.bench, s.err
}

type stubDirectory struct {
	rec *directory.Record
	err error
}

func (s *stubDirectory) Lookup(context.Context, string, string) (*directory.Record, error) {
	return s.rec, s.err
}

type stubStrategy struct {
	text string
	err  error
	req  strategy.Request
}

func (s *stubStrategy) Generate(_ context.Context, req strategy.Request) (string, error) {
	s.req = req
	return s.text, s.err
}

func TestLocationAdapter(t *testing.T) {
	stub := &stubPlaces{place: &places.Place{
		ID:               "ChIJabc",
		FormattedAddress: "100 Main St, Knoxville, TN 37902",
		AddressComponents: []places.AddressComponent{
			{ShortText: "TN", Types: []string{"administrative_area_level_1"}},
		},
		BusinessStatus: "OPERATIONAL",
	}}
	a := NewLocation(stub)
	assert.Equal(t, model.PassLocationData, a.Pass())

	out, err := a.Invoke(context.Background(), map[string]any{
		model.KeyBusinessName: "Smoky Mountain Plumbing",
		model.KeyLocation:     "Knoxville, TN",
	})
	require.NoError(t, err)
	assert.Equal(t, "Smoky Mountain Plumbing", stub.name)
	assert.Equal(t, "Knoxville, TN", stub.loc)
	assert.Equal(t, "ChIJabc", out[model.KeyPlaceID])
	assert.Equal(t, "TN", out[model.KeyRegion])
	assert.Equal(t, true, out[model.KeyHasGoogleBusiness])
}

func TestLocationAdapter_Error(t *testing.T) {
	a := NewLocation(&stubPlaces{err: places.ErrNoMatch})
	out, err := a.Invoke(context.Background(), map[string]any{})
	assert.ErrorIs(t, err, places.ErrNoMatch)
	assert.Nil(t, out)
}

func TestWebAdapter(t *testing.T) {
	a := NewWeb(&stubWeb{page: &webresearch.Page{
		Content: "Visit https://www.facebook.com/smoky for updates.",
	}})

	out, err := a.Invoke(context.Background(), map[string]any{
		model.KeyWebsiteURL: "https://example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, true, out[model.KeyHasWebsite])
	assert.Equal(t, true, out[model.KeyHasSocialMedia])
	assert.Equal(t, []string{"https://www.facebook.com/smoky"}, out[model.KeySocialLinks])
}

func TestWebAdapter_UnreachableSiteIsAFinding(t *testing.T) {
	a := NewWeb(&stubWeb{err: webresearch.ErrUnreachable})

	out, err := a.Invoke(context.Background(), map[string]any{
		model.KeyWebsiteURL: "https://gone.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, false, out[model.KeyHasWebsite])
	assert.Equal(t, false, out[model.KeyHasSocialMedia])
}

func TestWebAdapter_ProviderError(t *testing.T) {
	a := NewWeb(&stubWeb{err: errors.New("status 500")})
	_, err := a.Invoke(context.Background(), map[string]any{})
	assert.Error(t, err)
}

func TestReviewsAdapter(t *testing.T) {
	stub := &stubReviews{
		summary: &reviews.Summary{Rating: 4.1, ReviewCount: 18},
		bench:   &reviews.Benchmark{AvgRating: 4.5, Sampled: 12},
	}
	a := NewReviews(stub, "plumbing")

	out, err := a.Invoke(context.Background(), map[string]any{
		model.KeyPlaceID: "ChIJabc",
		model.KeyRegion:  "TN",
	})
	require.NoError(t, err)
	assert.Equal(t, "plumbing", stub.trade)
	assert.Equal(t, "TN", stub.region)
	assert.Equal(t, 18, out[model.KeyReviewCount])
	assert.Equal(t, 4.1, out[model.KeyRating])
	assert.Equal(t, 4.5, out[model.KeyCompetitorAvgRating])
	assert.Equal(t, true, out[model.KeyHasOnlineReviews])
}

func TestReviewsAdapter_DefaultTrade(t *testing.T) {
	stub := &stubReviews{
		summary: &reviews.Summary{},
		bench:   &reviews.Benchmark{},
	}
	a := NewReviews(stub, "")

	out, err := a.Invoke(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "home services", stub.trade)
	assert.Equal(t, false, out[model.KeyHasOnlineReviews])
}

func TestSupplementaryAdapter(t *testing.T) {
	a := NewSupplementary(&stubDirectory{rec: &directory.Record{
		Industry:        "plumbing",
		EmployeeCount:   12,
		RevenueEstimate: 1_400_000,
	}})

	out, err := a.Invoke(context.Background(), map[string]any{
		model.KeyBusinessName: "Smoky Mountain Plumbing",
		model.KeyRegion:       "TN",
	})
	require.NoError(t, err)
	assert.Equal(t, "plumbing", out[model.KeyIndustry])
	assert.Equal(t, 12, out[model.KeyEmployeeCount])
}

func TestStrategyAdapter_CoercesLedgerNumbers(t *testing.T) {
	stub := &stubStrategy{text: "Lead with review recovery."}
	a := NewStrategy(stub)

	// Values read back from the ledger arrive as JSON float64.
	out, err := a.Invoke(context.Background(), map[string]any{
		model.KeyBusinessName:        "Smoky Mountain Plumbing",
		model.KeyRating:              4.1,
		model.KeyReviewCount:         float64(18),
		model.KeyCompetitorAvgRating: 4.5,
	})
	require.NoError(t, err)
	assert.Equal(t, "Lead with review recovery.", out[model.KeyStrategyText])
	assert.Equal(t, 18, stub.req.ReviewCount)
	assert.InDelta(t, 4.5, stub.req.CompetitorAvgRating, 0.001)
}

func TestStrategyAdapter_ForwardsOptionalContext(t *testing.T) {
	stub := &stubStrategy{text: "Lead with the missing booking page."}
	a := NewStrategy(stub)

	_, err := a.Invoke(context.Background(), map[string]any{
		model.KeyBusinessName:        "Smoky Mountain Plumbing",
		model.KeyIndustry:            "plumbing",
		model.KeyRegion:              "TN",
		model.KeyRating:              4.1,
		model.KeyReviewCount:         18,
		model.KeyCompetitorAvgRating: 4.5,
		model.KeyHasWebsite:          true,
		model.KeyPageSummary:         "Residential plumbing services.",
	})
	require.NoError(t, err)
	assert.Equal(t, "plumbing", stub.req.Industry)
	assert.Equal(t, "TN", stub.req.Region)
	assert.True(t, stub.req.HasWebsite)
	assert.Equal(t, "Residential plumbing services.", stub.req.PageSummary)
}

func TestStrategyAdapter_OptionalContextAbsent(t *testing.T) {
	stub := &stubStrategy{text: "Lead with review recovery."}
	a := NewStrategy(stub)

	_, err := a.Invoke(context.Background(), map[string]any{
		model.KeyBusinessName: "Smoky Mountain Plumbing",
		model.KeyRating:       4.1,
	})
	require.NoError(t, err)
	assert.Empty(t, stub.req.Industry)
	assert.Empty(t, stub.req.Region)
	assert.False(t, stub.req.HasWebsite)
	assert.Empty(t, stub.req.PageSummary)
}

func TestNewRegistry_CoversEveryPass(t *testing.T) {
	r := NewRegistry(Clients{
		Places:    &stubPlaces{},
		Web:       &stubWeb{},
		Reviews:   &stubReviews{},
		Directory: &stubDirectory{},
		Strategy:  &stubStrategy{},
	}, "plumbing")

	for _, id := range []model.PassID{
		model.PassLocationData,
		model.PassWebResearch,
		model.PassReviewsAnalysis,
		model.PassSupplementary,
		model.PassStrategy,
	} {
		assert.NotNil(t, r.Get(id), "pass %s", id)
	}
}

func TestNewRegistry_BreakerOpensOnProviderOutage(t *testing.T) {
	outage := resilience.MarkRetryable(errors.New("upstream 503"), 503)
	r := NewRegistry(Clients{
		Places:    &stubPlaces{err: outage},
		Web:       &stubWeb{page: &webresearch.Page{}},
		Reviews:   &stubReviews{},
		Directory: &stubDirectory{},
		Strategy:  &stubStrategy{},
	}, "plumbing")

	location := r.Get(model.PassLocationData)
	trip := resilience.DefaultBreakerConfig().TripAfter
	for i := 0; i < trip; i++ {
		_, err := location.Invoke(context.Background(), map[string]any{})
		require.ErrorIs(t, err, outage)
	}

	_, err := location.Invoke(context.Background(), map[string]any{})
	assert.ErrorIs(t, err, resilience.ErrBreakerOpen)

	// Each pass has its own breaker, so the other providers stay reachable.
	_, err = r.Get(model.PassWebResearch).Invoke(context.Background(), map[string]any{
		model.KeyWebsiteURL: "https://example.com",
	})
	assert.NoError(t, err)
}

func TestNewRegistry_PermanentErrorsDontTripBreaker(t *testing.T) {
	r := NewRegistry(Clients{
		Places:    &stubPlaces{err: places.ErrNoMatch},
		Web:       &stubWeb{},
		Reviews:   &stubReviews{},
		Directory: &stubDirectory{},
		Strategy:  &stubStrategy{},
	}, "plumbing")

	location := r.Get(model.PassLocationData)
	for i := 0; i < 20; i++ {
		_, err := location.Invoke(context.Background(), map[string]any{})
		require.ErrorIs(t, err, places.ErrNoMatch)
	}
}
