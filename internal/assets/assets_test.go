package assets_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"floorplan-render-backend/internal/assets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func TestDataURI(t *testing.T) {
	uri := assets.DataURI("", pngHeader)
	assert.True(t, assets.IsDataURI(uri))
	assert.Contains(t, uri, "data:image/png;base64,")

	data, contentType, err := assets.DecodeDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, pngHeader, data)
}

func TestDecodeDataURI_Malformed(t *testing.T) {
	for _, ref := range []string{
		"https://cdn.example/a.png",
		"data:image/png;base64",
		"data:image/png,raw",
		"data:image/png;base64,!!!",
	} {
		_, _, err := assets.DecodeDataURI(ref)
		assert.Error(t, err, ref)
	}
}

func TestResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/a.png" {
			http.NotFound(w, r)
			return
		}
		w.Write(pngHeader)
	}))
	defer srv.Close()

	ctx := context.Background()

	data, err := assets.Resolve(ctx, srv.Client(), srv.URL+"/a.png")
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)

	_, err = assets.Resolve(ctx, srv.Client(), srv.URL+"/missing.png")
	assert.Error(t, err)

	data, err = assets.Resolve(ctx, nil, assets.DataURI("image/png", pngHeader))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)

	_, err = assets.Resolve(ctx, nil, "ftp://example/a.png")
	assert.Error(t, err)
}
