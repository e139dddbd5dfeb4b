package ml

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/forest-guardian/wooded-mask/internal/raster"
	"github.com/forest-guardian/wooded-mask/internal/tiling"

	"golang.org/x/oauth2/clientcredentials"
)

var ErrUnauthorized = errors.New("unauthorized access, check your client ID and secret")

// OAuthConfig enables client-credentials authentication against the model
// endpoint. A zero value means unauthenticated requests.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

func (o OAuthConfig) enabled() bool {
	return o.ClientID != "" && o.ClientSecret != "" && o.TokenURL != ""
}

// HTTPClassifier posts each batch as a float32 tensor to URL and expects the
// probability tensor back in the response body.
type HTTPClassifier struct {
	URL        string
	Channels   int
	Retries    int
	RetryDelay time.Duration
	client     *http.Client
}

func NewHTTPClassifier(ctx context.Context, url string, channels int, auth OAuthConfig) *HTTPClassifier {
	client := http.DefaultClient
	if auth.enabled() {
		config := &clientcredentials.Config{
			ClientID:     auth.ClientID,
			ClientSecret: auth.ClientSecret,
			TokenURL:     auth.TokenURL,
		}
		client = config.Client(ctx)
	}
	return &HTTPClassifier{
		URL:        url,
		Channels:   channels,
		Retries:    10,
		RetryDelay: 5 * time.Second,
		client:     client,
	}
}

func (h *HTTPClassifier) ExpectedChannels() int {
	return h.Channels
}

func (h *HTTPClassifier) Infer(ctx context.Context, batch []tiling.Patch) ([]raster.Plane, error) {
	payload, shape, err := encodePatches(batch)
	if err != nil {
		return nil, err
	}

	var body []byte
	for attempt := 1; attempt <= max(1, h.Retries); attempt++ {
		body, err = h.post(ctx, payload, shape)
		if err == nil || errors.Is(err, ErrUnauthorized) || ctx.Err() != nil {
			break
		}
		fmt.Printf("Attempt %d failed: %v\n", attempt, err)
		if attempt < h.Retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(h.RetryDelay):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to run inference after %d attempts: %w", h.Retries, err)
	}

	probabilities, err := decodeProbabilities(body, shape[0], shape[2])
	if err != nil {
		return nil, fmt.Errorf("invalid inference response: %w", err)
	}
	return probabilities, nil
}

func (h *HTTPClassifier) post(ctx context.Context, payload []byte, shape []int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Batch-Shape", formatShape(shape))

	response, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	switch {
	case response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case response.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("status %d: %s", response.StatusCode, bytes.TrimSpace(body))
	}
	return body, nil
}

// InferenceHandler serves classifier over HTTP using the same tensor framing.
func InferenceHandler(classifier Classifier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		shape, err := parseShape(r.Header.Get("X-Batch-Shape"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		payload, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		batch, err := decodePatches(payload, shape)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		probabilities, err := classifier.Infer(r.Context(), batch)
		if err == nil {
			err = CheckBatch(batch, probabilities)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(encodeProbabilities(probabilities))
	})
}
