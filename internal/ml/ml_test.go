package ml

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/forest-guardian/wooded-mask/internal/raster"
	"github.com/forest-guardian/wooded-mask/internal/tiling"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func constantPatch(channels, size int, value float64) tiling.Patch {
	data := make([]float64, channels*size*size)
	for i := range data {
		data[i] = value
	}
	return tiling.Patch{Channels: channels, Size: size, Data: data}
}

func TestNDVIClassifierCrossesHalfAtThreshold(t *testing.T) {
	c := NDVIClassifier{Channels: 1, NDVIChannel: 0, Threshold: 0.4}
	// rescaled 0.75 is raw NDVI 0.5, rescaled 0.65 is raw 0.3
	out, err := c.Infer(context.Background(), []tiling.Patch{constantPatch(1, 2, 0.75), constantPatch(1, 2, 0.65)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].At(0, 0) <= 0.5 {
		t.Errorf("expected wooded probability above 0.5, got %f", out[0].At(0, 0))
	}
	if out[1].At(1, 1) >= 0.5 {
		t.Errorf("expected probability below 0.5, got %f", out[1].At(1, 1))
	}
}

func TestNDVIClassifierMissingChannel(t *testing.T) {
	c := NDVIClassifier{NDVIChannel: 4}
	_, err := c.Infer(context.Background(), []tiling.Patch{constantPatch(2, 2, 0)})
	if !errors.Is(err, raster.ErrChannelCountMismatch) {
		t.Errorf("expected channel mismatch, got %v", err)
	}
}

func TestCheckBatch(t *testing.T) {
	batch := []tiling.Patch{constantPatch(1, 4, 0)}
	if err := CheckBatch(batch, nil); err == nil {
		t.Errorf("expected error for missing planes")
	}
	if err := CheckBatch(batch, []raster.Plane{raster.NewPlane(3, 3)}); !errors.Is(err, raster.ErrShapeMismatch) {
		t.Errorf("expected shape mismatch, got %v", err)
	}
	if err := CheckBatch(batch, []raster.Plane{raster.NewPlane(4, 4)}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTensorRoundTrip(t *testing.T) {
	batch := []tiling.Patch{constantPatch(3, 4, 0.25), constantPatch(3, 4, 0.5)}
	payload, shape, err := encodePatches(batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed, err := parseShape(formatShape(shape))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decoded, err := decodePatches(payload, parsed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decoded) != 2 || decoded[1].At(2, 3, 3) != 0.5 {
		t.Errorf("unexpected decoded batch %+v", decoded)
	}

	if _, _, err := encodePatches([]tiling.Patch{constantPatch(3, 4, 0), constantPatch(2, 4, 0)}); err == nil {
		t.Errorf("expected error for mixed patch shapes")
	}
}

func startBufconnServer(t *testing.T, classifier Classifier) *GRPCClassifier {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	server := grpc.NewServer()
	RegisterInferenceServer(server, classifier)
	go server.Serve(lis)
	t.Cleanup(server.Stop)

	client, err := NewGRPCClassifier("passthrough:///bufnet", ExpectedChannels(classifier),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestGRPCClassifierRoundTrip(t *testing.T) {
	client := startBufconnServer(t, ConstantClassifier(2, 0.75))

	out, err := client.Infer(context.Background(), []tiling.Patch{constantPatch(2, 4, 0), constantPatch(2, 4, 1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 planes, got %d", len(out))
	}
	for _, p := range out {
		if p.Height != 4 || p.Width != 4 || math.Abs(p.At(3, 3)-0.75) > 1e-6 {
			t.Errorf("unexpected plane %dx%d value %f", p.Height, p.Width, p.At(3, 3))
		}
	}
	if client.ExpectedChannels() != 2 {
		t.Errorf("expected 2 channels, got %d", client.ExpectedChannels())
	}
}

func TestGRPCClassifierChannelMismatch(t *testing.T) {
	client := startBufconnServer(t, ConstantClassifier(6, 0.5))
	if _, err := client.Infer(context.Background(), []tiling.Patch{constantPatch(2, 4, 0)}); err == nil {
		t.Errorf("expected the server to reject a 2-channel batch")
	}
}

func TestDecodeRejectsOversizedShapes(t *testing.T) {
	shapes := []string{
		"1,4611686018427387905,1,1",
		"4611686018427387904,1,1,1",
		"2,1,3037000500,3037000500",
	}
	for _, raw := range shapes {
		shape, err := parseShape(raw)
		if err != nil {
			t.Fatalf("failed to parse %s: %v", raw, err)
		}
		if _, err := decodePatches(make([]byte, 4), shape); !errors.Is(err, raster.ErrShapeMismatch) {
			t.Errorf("shape %s: expected shape mismatch, got %v", raw, err)
		}
	}
	if _, err := decodeProbabilities(make([]byte, 4), 4611686018427387905, 1); !errors.Is(err, raster.ErrShapeMismatch) {
		t.Errorf("expected shape mismatch for oversized probabilities, got %v", err)
	}
	if _, err := decodeProbabilities(make([]byte, 6), 1, 1); !errors.Is(err, raster.ErrShapeMismatch) {
		t.Errorf("expected shape mismatch for a partial float, got %v", err)
	}
}

func TestGRPCServerRejectsOversizedShape(t *testing.T) {
	client := startBufconnServer(t, ConstantClassifier(1, 0.5))

	ctx := metadata.AppendToOutgoingContext(context.Background(), batchShapeKey, "1,4611686018427387905,1,1")
	err := client.conn.Invoke(ctx, inferMethod, wrapperspb.Bytes(make([]byte, 4)), &wrapperspb.BytesValue{})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}

	// The server keeps serving after the bad request.
	if _, err := client.Infer(context.Background(), []tiling.Patch{constantPatch(1, 2, 0)}); err != nil {
		t.Errorf("expected a healthy server, got %v", err)
	}
}

func TestHTTPClassifierWithOAuth(t *testing.T) {
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	}))
	defer tokens.Close()

	var calls atomic.Int32
	model := InferenceHandler(ConstantClassifier(1, 0.9))
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		model.ServeHTTP(w, r)
	}))
	defer api.Close()

	c := NewHTTPClassifier(context.Background(), api.URL, 1, OAuthConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     tokens.URL,
	})
	c.RetryDelay = time.Millisecond

	out, err := c.Infer(context.Background(), []tiling.Patch{constantPatch(1, 3, 0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(out[0].At(2, 2)-0.9) > 1e-6 {
		t.Errorf("expected 0.9, got %f", out[0].At(2, 2))
	}
	if calls.Load() != 2 {
		t.Errorf("expected one retry, got %d calls", calls.Load())
	}
}

func TestHTTPClassifierUnauthorizedStopsRetrying(t *testing.T) {
	var calls atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer api.Close()

	c := NewHTTPClassifier(context.Background(), api.URL, 1, OAuthConfig{})
	c.RetryDelay = time.Millisecond

	_, err := c.Infer(context.Background(), []tiling.Patch{constantPatch(1, 3, 0)})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected unauthorized error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", calls.Load())
	}
}
