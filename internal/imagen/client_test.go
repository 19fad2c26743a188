package imagen_test

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"floorplan-render-backend/internal/common"
	"floorplan-render-backend/internal/imagen"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 1, 2, 3, 4}

func newClient(baseURL, key string, timeout time.Duration) *imagen.Client {
	return imagen.NewClient(imagen.Config{
		BaseURL: baseURL,
		APIKey:  key,
		Model:   "gpt-image-1",
		Size:    "1024x1024",
		Quality: "high",
		Timeout: timeout,
	}, nil, nil)
}

func TestClient_EditInlineImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/edits", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "gpt-image-1", r.FormValue("model"))
		assert.Equal(t, "style it", r.FormValue("prompt"))
		assert.Equal(t, "1536x1024", r.FormValue("size"))

		file, _, err := r.FormFile("image")
		require.NoError(t, err)
		file.Close()

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"b64_json":"` + base64.StdEncoding.EncodeToString(pngBytes) + `"}]}`))
	}))
	defer srv.Close()

	client := newClient(srv.URL+"/", "sk-test", time.Second)
	result, err := client.Edit(context.Background(), imagen.EditRequest{Image: pngBytes, Prompt: "style it", Size: "1536x1024"})
	require.NoError(t, err)
	assert.Equal(t, pngBytes, result.Image)
	assert.Empty(t, result.URL)
}

func TestClient_EditFetchesURLResult(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/images/edits", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"url":"` + srv.URL + `/files/out.png"}]}`))
	})
	mux.HandleFunc("/files/out.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes)
	})

	result, err := newClient(srv.URL, "sk-test", time.Second).Edit(context.Background(), imagen.EditRequest{Image: pngBytes, Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, pngBytes, result.Image)
	assert.Equal(t, srv.URL+"/files/out.png", result.URL)
}

func TestClient_EditUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid image file","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, "sk-test", time.Second).Edit(context.Background(), imagen.EditRequest{Image: pngBytes, Prompt: "p"})
	var se *common.ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.Equal(t, "Invalid image file", se.Message)
	assert.False(t, common.IsTimeout(err))
}

func TestClient_EditEmptyPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, "sk-test", time.Second).Edit(context.Background(), imagen.EditRequest{Image: pngBytes, Prompt: "p"})
	assert.True(t, common.IsServiceError(err))
}

func TestClient_EditTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := newClient(srv.URL, "sk-test", 50*time.Millisecond).Edit(context.Background(), imagen.EditRequest{Image: pngBytes, Prompt: "p"})

	var te *common.TimeoutError
	require.True(t, errors.As(err, &te))
	assert.True(t, common.IsServiceError(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClient_EditWithoutCredential(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	client := newClient(srv.URL, "", time.Second)
	assert.False(t, client.Available())

	_, err := client.Edit(context.Background(), imagen.EditRequest{Image: pngBytes, Prompt: "p"})
	var ce *common.ConfigurationError
	assert.True(t, errors.As(err, &ce))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}
