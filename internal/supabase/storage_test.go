package supabase_test

import (
	"testing"

	"floorplan-render-backend/internal/models"
	"floorplan-render-backend/internal/supabase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoragePaths(t *testing.T) {
	projectID := uuid.New()
	renderID := uuid.New()

	assert.Equal(t, "projects/"+projectID.String()+"/renders/"+renderID.String()+".png",
		supabase.RenderPath(projectID, renderID))
	assert.Equal(t, "projects/"+projectID.String()+"/original/plan.png",
		supabase.FloorPlanPath(projectID, "../../plan.png"))
}

func TestStorageClient_PublicURLRoundTrip(t *testing.T) {
	client, err := supabase.NewStorageClient("https://abc.supabase.co/", "service-key", "renders")
	require.NoError(t, err)

	url := client.GetPublicURL("projects/p/renders/r.png")
	assert.Equal(t, "https://abc.supabase.co/storage/v1/object/public/renders/projects/p/renders/r.png", url)

	path, ok := client.PathFromURL(url)
	assert.True(t, ok)
	assert.Equal(t, "projects/p/renders/r.png", path)

	_, ok = client.PathFromURL("https://elsewhere.example/r.png")
	assert.False(t, ok)
}

func TestNewStorageClient_RequiresCredentials(t *testing.T) {
	_, err := supabase.NewStorageClient("", "", "renders")
	assert.Error(t, err)
}

func TestRealtimeClient_NilIsNoop(t *testing.T) {
	var rt *supabase.RealtimeClient
	assert.NoError(t, rt.Publish(models.RenderEvent{ProjectID: uuid.New(), Status: models.RenderStatusCompleted}))

	rt = supabase.NewRealtimeClient(nil, nil)
	assert.NoError(t, rt.Publish(models.RenderEvent{ProjectID: uuid.New(), Status: models.RenderStatusFailed}))
}
