package vision_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"floorplan-render-backend/internal/common"
	"floorplan-render-backend/internal/models"
	"floorplan-render-backend/internal/vision"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 1, 2, 3, 4}

func chatServer(t *testing.T, content string, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, map[string]interface{}{"type": "json_object"}, req["response_format"])

		resp := map[string]interface{}{
			"choices": []interface{}{
				map[string]interface{}{"message": map[string]interface{}{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(url, key string) *vision.Client {
	return vision.NewClient(vision.Config{BaseURL: url, APIKey: key, Model: "gpt-4o", Timeout: time.Second}, nil, nil)
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    vision.Verdict
	}{
		{
			name:    "complete",
			content: `{"is_faithful": true, "score": 92, "reason": "walls match", "source_room_count": 5, "generated_room_count": 5}`,
			want:    vision.Verdict{IsFaithful: true, Score: 92, Reason: "walls match", SourceRooms: 5, GeneratedRooms: 5},
		},
		{
			name:    "empty",
			content: "",
			want:    vision.Verdict{Reason: vision.DefaultReason},
		},
		{
			name:    "not json",
			content: "The rendering looks great!",
			want:    vision.Verdict{Reason: vision.DefaultReason},
		},
		{
			name:    "fenced with string score",
			content: "```json\n{\"is_faithful\": \"true\", \"score\": \"87.6\", \"reason\": \" \"}\n```",
			want:    vision.Verdict{IsFaithful: true, Score: 88, Reason: vision.DefaultReason},
		},
		{
			name:    "score above range",
			content: `{"is_faithful": true, "score": 140}`,
			want:    vision.Verdict{IsFaithful: true, Score: 100, Reason: vision.DefaultReason},
		},
		{
			name:    "negative score",
			content: `{"is_faithful": false, "score": -3, "reason": "missing kitchen"}`,
			want:    vision.Verdict{Score: 0, Reason: "missing kitchen"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, vision.ParseVerdict(tt.content))
		})
	}
}

func TestVerdict_RoomCountsMatch(t *testing.T) {
	assert.True(t, vision.Verdict{}.RoomCountsMatch())
	assert.True(t, vision.Verdict{SourceRooms: 4, GeneratedRooms: 4}.RoomCountsMatch())
	assert.False(t, vision.Verdict{SourceRooms: 4, GeneratedRooms: 3}.RoomCountsMatch())
}

func TestClient_Evaluate(t *testing.T) {
	srv := chatServer(t, `{"is_faithful": true, "score": 91, "reason": "ok", "source_room_count": 3, "generated_room_count": 3}`, nil)

	v, err := newClient(srv.URL, "sk-test").Evaluate(context.Background(), pngBytes, pngBytes, models.RenderTypeIsometric)
	require.NoError(t, err)
	assert.True(t, v.IsFaithful)
	assert.Equal(t, 91, v.Score)
	assert.True(t, v.RoomCountsMatch())
}

func TestClient_EvaluateEmptyContent(t *testing.T) {
	srv := chatServer(t, "", nil)

	v, err := newClient(srv.URL, "sk-test").Evaluate(context.Background(), pngBytes, pngBytes, models.RenderTypeRoomWise)
	require.NoError(t, err)
	assert.False(t, v.IsFaithful)
	assert.Equal(t, 0, v.Score)
	assert.Equal(t, vision.DefaultReason, v.Reason)
}

func TestClient_EvaluateInvalidEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway</html>"))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, "sk-test").Evaluate(context.Background(), pngBytes, pngBytes, models.RenderTypeIsometric)
	assert.True(t, common.IsServiceError(err))
}

func TestClient_EvaluateUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Rate limit reached"}}`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, "sk-test").Evaluate(context.Background(), pngBytes, pngBytes, models.RenderTypeIsometric)
	var se *common.ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Rate limit reached", se.Message)
}

func TestClient_DetectRooms(t *testing.T) {
	srv := chatServer(t, `{"rooms": ["Kitchen", " kitchen ", "Living  Room", "", "Bedroom 1"]}`, nil)

	rooms, err := newClient(srv.URL, "sk-test").DetectRooms(context.Background(), pngBytes)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kitchen", "Living Room", "Bedroom 1"}, rooms)
}

func TestClient_WithoutCredentialMakesNoCalls(t *testing.T) {
	var calls int32
	srv := chatServer(t, `{"rooms": ["Kitchen"]}`, &calls)
	client := newClient(srv.URL, "")

	_, err := client.DetectRooms(context.Background(), pngBytes)
	var ce *common.ConfigurationError
	assert.True(t, errors.As(err, &ce))

	_, err = client.Evaluate(context.Background(), pngBytes, pngBytes, models.RenderTypeIsometric)
	assert.True(t, errors.As(err, &ce))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestNormalizeRooms_Caps(t *testing.T) {
	names := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		names = append(names, "Room "+string(rune('A'+i)))
	}
	assert.Len(t, vision.NormalizeRooms(names), vision.MaxRooms)
}
