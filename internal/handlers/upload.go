package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// readUpload returns the contents of the multipart file field, refusing
// bodies larger than maxBytes.
func readUpload(c *gin.Context, field string, maxBytes int64) ([]byte, string, error) {
	if c.Request.ContentLength > maxBytes {
		return nil, "", &http.MaxBytesError{Limit: maxBytes}
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

	file, err := c.FormFile(field)
	if err != nil {
		return nil, "", fmt.Errorf("file field %q is required: %w", field, err)
	}

	src, err := file.Open()
	if err != nil {
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file data: %w", err)
	}
	return data, file.Filename, nil
}
