package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rewardsearch/codec"
	"github.com/hupe1980/rewardsearch/internal/resource"
	"github.com/hupe1980/rewardsearch/particle"
)

func particles(n int) *particle.Batch {
	b := particle.New(n, particle.Shape{C: 3, H: 2, W: 2})
	for i := 0; i < n; i++ {
		for j := range b.At(i) {
			b.At(i)[j] = float32(i) / float32(n)
		}
	}
	return b
}

func TestClient_Rank(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a red barn", req.Prompt)

		scores := make([]float64, len(req.Images))
		for i, img := range req.Images {
			assert.NotEmpty(t, img)
			scores[i] = float64(i) * 0.5
		}
		_ = json.NewEncoder(w).Encode(Response{Scores: scores})
	}))
	defer srv.Close()

	for _, c := range []codec.Codec{codec.JSON{}, codec.GoJSON{}} {
		t.Run(c.Name(), func(t *testing.T) {
			client := New(srv.URL, WithCodec(c), WithAPIKey("secret"))
			scores, err := client.Rank(context.Background(), "a red barn", particles(3))
			require.NoError(t, err)
			assert.Equal(t, []float64{0, 0.5, 1}, scores)
		})
	}
}

func TestClient_ScoreCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"scores":[1]}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Rank(context.Background(), "p", particles(2))
	assert.Error(t, err)
}

func TestClient_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New(srv.URL, WithBreaker(BreakerConfig{
		MaxRequests:  1,
		Timeout:      time.Minute,
		MinRequests:  2,
		FailureRatio: 0.5,
	}))

	for range 2 {
		_, err := client.Rank(context.Background(), "p", particles(1))
		assert.ErrorIs(t, err, ErrStatus)
	}
	assert.Equal(t, gobreaker.StateOpen, client.State())

	_, err := client.Rank(context.Background(), "p", particles(1))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_RateLimitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"scores":[1]}`))
	}))
	defer srv.Close()

	rc := resource.NewController(resource.Config{RequestsPerSec: 0.001, Burst: 1})
	client := New(srv.URL, WithResourceController(rc))

	_, err := client.Rank(context.Background(), "p", particles(1))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Rank(ctx, "p", particles(1))
	assert.Error(t, err)
}
