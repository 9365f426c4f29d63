package moderation

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/minhng-dev/social-moderation-api/models"
)

// ErrScorerUnavailable is returned when the risk scorer cannot produce a
// score. Callers fail open: content parks as pending instead of bouncing.
var ErrScorerUnavailable = errors.New("risk scorer unavailable")

// SevereScore always rejects regardless of author trust
const SevereScore = 100

// Scorer scores submitted content for policy risk
type Scorer interface {
	Score(ctx context.Context, text string, imageURLs []string) (*models.ModerationScore, error)
}

type scoreRequest struct {
	Text      string   `json:"text"`
	ImageURLs []string `json:"imageUrls,omitempty"`
}

// HTTPScorer calls the external risk scorer service. Identical submissions
// within the cache TTL reuse the previous score.
type HTTPScorer struct {
	url    string
	client *http.Client
	cache  *expirable.LRU[string, models.ModerationScore]
}

// NewHTTPScorer builds a scorer client with retries and a short result
// cache
func NewHTTPScorer(url string, timeout time.Duration) *HTTPScorer {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = time.Second
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil

	return &HTTPScorer{
		url:    url,
		client: rc.StandardClient(),
		cache:  expirable.NewLRU[string, models.ModerationScore](2048, nil, 5*time.Minute),
	}
}

func (s *HTTPScorer) Score(ctx context.Context, text string, imageURLs []string) (*models.ModerationScore, error) {
	key := cacheKey(text, imageURLs)
	if cached, ok := s.cache.Get(key); ok {
		return &cached, nil
	}

	body, err := json.Marshal(scoreRequest{Text: text, ImageURLs: imageURLs})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal score request, %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url+"/score", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build score request, %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		zap.S().Errorw("risk scorer request failed", "error", err)
		return nil, ErrScorerUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		zap.S().Errorw("risk scorer returned non-200", "status", resp.StatusCode)
		return nil, ErrScorerUnavailable
	}

	var score models.ModerationScore
	if err := json.NewDecoder(resp.Body).Decode(&score); err != nil {
		zap.S().Errorw("risk scorer returned malformed body", "error", err)
		return nil, ErrScorerUnavailable
	}

	s.cache.Add(key, score)
	return &score, nil
}

func cacheKey(text string, imageURLs []string) string {
	h := sha256.New()
	h.Write([]byte(text))
	for _, u := range imageURLs {
		h.Write([]byte{0})
		h.Write([]byte(u))
	}
	return hex.EncodeToString(h.Sum(nil))
}
