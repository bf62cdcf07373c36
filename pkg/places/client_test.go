package places

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-pipeline/internal/resilience"
)

func samplePlace() Place {
	return Place{
		ID:               "ChIJtest123",
		DisplayName:      DisplayName{Text: "Smoky Mountain Plumbing"},
		FormattedAddress: "100 Main St, Knoxville, TN 37902, USA",
		AddressComponents: []AddressComponent{
			{LongText: "Knoxville", ShortText: "Knoxville", Types: []string{"locality"}},
			{LongText: "Tennessee", ShortText: "TN", Types: []string{"administrative_area_level_1"}},
		},
		Rating:          4.1,
		UserRatingCount: 18,
		BusinessStatus:  "OPERATIONAL",
	}
}

func TestFindBusiness_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/places:searchText", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "places.addressComponents")

		var body textSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Smoky Mountain Plumbing Knoxville, TN", body.TextQuery)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(textSearchResponse{Places: []Place{samplePlace()}})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	place, err := client.FindBusiness(context.Background(), "Smoky Mountain Plumbing", "Knoxville, TN")

	require.NoError(t, err)
	assert.Equal(t, "ChIJtest123", place.ID)
	assert.Equal(t, "TN", place.Region())
	assert.True(t, place.Listed())
	assert.InDelta(t, 4.1, place.Rating, 0.001)
}

func TestFindBusiness_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(textSearchResponse{})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	place, err := client.FindBusiness(context.Background(), "Nonexistent Corp", "")

	assert.ErrorIs(t, err, ErrNoMatch)
	assert.Nil(t, place)
}

func TestFindBusiness_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(textSearchResponse{Places: []Place{samplePlace()}})
	}))
	defer srv.Close()

	retry := resilience.Policy{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
	client := NewClient("test-key", WithBaseURL(srv.URL), WithRetryPolicy(retry))
	place, err := client.FindBusiness(context.Background(), "Smoky Mountain Plumbing", "Knoxville, TN")

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "ChIJtest123", place.ID)
}

func TestFindBusiness_PermanentStatusNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": "invalid API key"}`))
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL))
	_, err := client.FindBusiness(context.Background(), "test", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Equal(t, int32(1), calls.Load())
}

func TestRegion_MissingComponent(t *testing.T) {
	p := Place{AddressComponents: []AddressComponent{
		{ShortText: "Knoxville", Types: []string{"locality"}},
	}}
	assert.Empty(t, p.Region())
}
