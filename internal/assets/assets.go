// Package assets moves image bytes between data URIs, remote URLs and
// memory.
package assets

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MaxFetchBytes bounds a remote image download.
const MaxFetchBytes = 50 << 20

// ContentType sniffs the MIME type of image bytes.
func ContentType(data []byte) string {
	return http.DetectContentType(data)
}

// DataURI encodes data as a base64 data URI. An empty content type is
// sniffed from the bytes.
func DataURI(contentType string, data []byte) string {
	if contentType == "" {
		contentType = ContentType(data)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func IsDataURI(ref string) bool {
	return strings.HasPrefix(ref, "data:")
}

// DecodeDataURI returns the payload and content type of a base64 data URI.
func DecodeDataURI(ref string) ([]byte, string, error) {
	if !IsDataURI(ref) {
		return nil, "", fmt.Errorf("not a data URI")
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("malformed data URI")
	}
	contentType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return nil, "", fmt.Errorf("data URI is not base64 encoded")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode data URI: %w", err)
	}
	return data, contentType, nil
}

// Fetch downloads a remote image.
func Fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxFetchBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > MaxFetchBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", MaxFetchBytes)
	}
	return data, nil
}

// Resolve returns the bytes behind a stored image reference, which is either
// a data URI or a remote URL.
func Resolve(ctx context.Context, client *http.Client, ref string) ([]byte, error) {
	if IsDataURI(ref) {
		data, _, err := DecodeDataURI(ref)
		return data, err
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return Fetch(ctx, client, ref)
	}
	return nil, fmt.Errorf("unsupported image reference")
}
