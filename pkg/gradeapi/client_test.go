package gradeapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorplex-labs/segeval/internal/scoring"
)

// startServer serves s on a random local port until the test ends.
func startServer(t *testing.T, s *Server) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		_ = s.App.Listener(ln)
	}()
	t.Cleanup(func() {
		_ = s.App.Shutdown()
	})

	return "http://" + ln.Addr().String()
}

func newTestClient(t *testing.T, baseURL string, compressed bool) *Client {
	t.Helper()
	client, err := NewClient(&ClientConfig{BaseURL: baseURL, ZstdCompression: compressed})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(nil)
	assert.Error(t, err)

	_, err = NewClient(&ClientConfig{})
	assert.Error(t, err)
}

func TestClientAgainstServer(t *testing.T) {
	baseURL := startServer(t, NewServer(nil, nil, &fakeRecorder{}))

	for _, compressed := range []bool{false, true} {
		name := "plain"
		if compressed {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, baseURL, compressed)
			ctx := context.Background()

			health, err := client.Health(ctx)
			require.NoError(t, err)
			assert.Equal(t, "ok", health.Status)

			evalResp, err := client.Evaluate(ctx, &EvaluateRequest{
				Candidates: []MaskPayload{mask("c", []int{0, 255})},
				References: []MaskPayload{mask("r", []int{0, 255})},
			})
			require.NoError(t, err)
			assert.Equal(t, "run-1", evalResp.RunID)
			assert.Equal(t, 1.0, evalResp.Aggregate)

			noNeighbours := false
			scoreResp, err := client.Score(ctx, &ScoreRequest{
				A:      mask("a", []int{0, 0}),
				B:      mask("b", []int{0, 255}),
				Params: &ParamsPayload{CheckEightSurroundingPixels: &noNeighbours},
			})
			require.NoError(t, err)
			assert.Equal(t, 0.5, scoreResp.Score)
		})
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	baseURL := startServer(t, NewServer(nil, nil, nil))
	client := newTestClient(t, baseURL, true)

	_, err := client.Evaluate(context.Background(), &EvaluateRequest{})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, scoring.ErrNoCandidates.Error())
}

func TestClientServerErrorIsNotSwallowedByRetries(t *testing.T) {
	baseURL := startServer(t, NewServer(nil, nil, &fakeRecorder{err: errors.New("disk full")}))
	client := newTestClient(t, baseURL, false)

	_, err := client.Evaluate(context.Background(), &EvaluateRequest{
		Candidates: []MaskPayload{mask("c", []int{0})},
	})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "disk full")
}

func TestMaskPayloadFromImage(t *testing.T) {
	img, err := scoring.NewIntensityImage("m", [][]int{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)

	payload := MaskPayloadFromImage(img)
	assert.Equal(t, "m", payload.Name)
	assert.Equal(t, [][]int{{1, 2, 3}, {4, 5, 6}}, payload.Pixels)
}

func TestEvaluateResponseResult(t *testing.T) {
	resp := &EvaluateResponse{
		Candidates: []CandidateResult{
			{Name: "a", Score: 0.4, BestReference: 1, BestReferenceName: "r2"},
			{Name: "b", Score: 0, BestReference: -1},
		},
		Aggregate: 0.2,
	}

	result := resp.Result()
	require.Len(t, result.Candidates, 2)
	assert.Equal(t, 1, result.Candidates[1].Position)
	assert.Equal(t, "r2", result.Candidates[0].BestReferenceName)
	assert.Equal(t, []float64{0.4, 0}, result.Scores())
	assert.Nil(t, result.PairScores)
}
