package supabase

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	storage "github.com/supabase-community/storage-go"
)

// StorageClient keeps floor plan originals and rendered images in a
// Supabase Storage bucket.
type StorageClient struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

func NewStorageClient(supabaseURL, serviceRoleKey, bucket string) (*StorageClient, error) {
	if supabaseURL == "" || serviceRoleKey == "" {
		return nil, fmt.Errorf("supabase url and service role key are required")
	}
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	client := storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil)

	return &StorageClient{
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
	}, nil
}

// FloorPlanPath is projects/{project_id}/original/{filename}.
func FloorPlanPath(projectID uuid.UUID, filename string) string {
	return fmt.Sprintf("projects/%s/original/%s", projectID, path.Base(filename))
}

// RenderPath is projects/{project_id}/renders/{render_id}.png.
func RenderPath(projectID, renderID uuid.UUID) string {
	return fmt.Sprintf("projects/%s/renders/%s.png", projectID, renderID)
}

func (s *StorageClient) UploadFloorPlan(projectID uuid.UUID, filename, contentType string, data []byte) (string, error) {
	return s.upload(FloorPlanPath(projectID, filename), contentType, data)
}

func (s *StorageClient) UploadRender(projectID, renderID uuid.UUID, data []byte) (string, error) {
	return s.upload(RenderPath(projectID, renderID), "image/png", data)
}

func (s *StorageClient) upload(storagePath, contentType string, data []byte) (string, error) {
	upsert := true
	_, err := s.client.UploadFile(s.bucket, storagePath, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", storagePath, err)
	}

	return s.GetPublicURL(storagePath), nil
}

func (s *StorageClient) GetPublicURL(storagePath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, storagePath)
}

// PathFromURL returns the object path of a public URL pointing into this
// bucket.
func (s *StorageClient) PathFromURL(publicURL string) (string, bool) {
	prefix := fmt.Sprintf("%s/storage/v1/object/public/%s/", s.baseURL, s.bucket)
	if !strings.HasPrefix(publicURL, prefix) {
		return "", false
	}
	return strings.TrimPrefix(publicURL, prefix), true
}

// DeleteProjectFiles removes the original and every render stored for the
// project.
func (s *StorageClient) DeleteProjectFiles(projectID uuid.UUID) error {
	var paths []string
	for _, folder := range []string{"original", "renders"} {
		prefix := fmt.Sprintf("projects/%s/%s", projectID, folder)
		files, err := s.client.ListFiles(s.bucket, prefix, storage.FileSearchOptions{
			Limit: 1000,
		})
		if err != nil {
			return fmt.Errorf("failed to list files: %w", err)
		}
		for _, file := range files {
			paths = append(paths, prefix+"/"+file.Name)
		}
	}

	if len(paths) == 0 {
		return nil
	}
	if _, err := s.client.RemoveFile(s.bucket, paths); err != nil {
		return fmt.Errorf("failed to delete files: %w", err)
	}
	return nil
}

func (s *StorageClient) DownloadFile(storagePath string) ([]byte, error) {
	data, err := s.client.DownloadFile(s.bucket, storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}

	return data, nil
}
