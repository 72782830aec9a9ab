package diagnose

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veydev/autocare/internal/models"
)

func newTestClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  "test-key",
		model:   "test-model",
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func completionWith(content string) string {
	raw, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(raw)
}

func TestClient_Diagnose(t *testing.T) {
	answer := `{"message":"Two likely causes.","results":[` +
		`{"diagnosis":"Worn brake pads","confidence":0.8,"risk":"high","urgency":"this week","estimatedCost":"$150-300"},` +
		`{"diagnosis":"Glazed rotors","confidence":0.4,"risk":"medium","urgency":"this month","estimatedCost":"$200-400"}]}`

	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(completionWith(answer)))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	resp, err := client.Diagnose(context.Background(), models.DiagnoseRequest{
		Text:    "squealing noise when braking",
		CarInfo: &models.CarInfo{Make: "Honda", Model: "Civic", Year: 2019, Mileage: 78000},
	})
	require.NoError(t, err)
	assert.Equal(t, "Two likely causes.", resp.Message)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "Worn brake pads", resp.Results[0].Diagnosis)
	assert.Equal(t, "$150-300", resp.Results[0].EstimatedCost)

	// The vehicle context rides along in the user message.
	require.Len(t, gotReq.Messages, 2)
	userMsg, ok := gotReq.Messages[1].Content.(string)
	require.True(t, ok)
	assert.Contains(t, userMsg, "Honda Civic 2019")
	assert.Contains(t, userMsg, "78000 km")
}

func TestClient_DiagnoseWithImage(t *testing.T) {
	var gotReq map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte(completionWith(`{"results":[]}`)))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Diagnose(context.Background(), models.DiagnoseRequest{
		Text:  "what is this warning light",
		Image: "aGVsbG8=",
	})
	require.NoError(t, err)

	messages := gotReq["messages"].([]interface{})
	userMsg := messages[1].(map[string]interface{})
	parts := userMsg["content"].([]interface{})
	require.Len(t, parts, 2)
	imagePart := parts[1].(map[string]interface{})
	assert.Equal(t, "image_url", imagePart["type"])
}

func TestClient_QuotaError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"You exceeded your current quota","type":"insufficient_quota"}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Diagnose(context.Background(), models.DiagnoseRequest{Text: "engine stalls"})
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestClient_QuotaErrorByType(t *testing.T) {
	// Some gateways return quota failures with a 400-series status but a
	// quota-typed error body.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"message":"quota exhausted","type":"insufficient_quota"}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Diagnose(context.Background(), models.DiagnoseRequest{Text: "engine stalls"})
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestClient_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"server melted","type":"server_error"}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Diagnose(context.Background(), models.DiagnoseRequest{Text: "engine stalls"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrQuotaExceeded)
}

func TestParseAnswer_FreeTextFallback(t *testing.T) {
	out := parseAnswer("I could not produce structured output, sorry.")
	assert.Equal(t, "I could not produce structured output, sorry.", out.Message)
	assert.NotNil(t, out.Results)
	assert.Empty(t, out.Results)
}

func TestParseAnswer_CodeFence(t *testing.T) {
	out := parseAnswer("```json\n{\"message\":\"ok\",\"results\":[]}\n```")
	assert.Equal(t, "ok", out.Message)
}
