package supabase_test

import (
	"context"
	"testing"
	"time"

	"floorplan-render-backend/internal/common"
	"floorplan-render-backend/internal/models"
	"floorplan-render-backend/internal/supabase"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var renderCols = []string{
	"id", "floor_plan_id", "render_type", "room_name", "image_url",
	"prompt_used", "status", "error_message", "created_at", "completed_at",
}

func newMockClient(t *testing.T) (*supabase.DatabaseClient, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return supabase.NewDatabaseClientWithDB(db), mock
}

func TestDatabaseClient_CreateProject(t *testing.T) {
	client, mock := newMockClient(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery("INSERT INTO projects").
		WithArgs(sqlmock.AnyArg(), "Harbor loft", "open plan").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "created_at", "updated_at"}).
			AddRow(id.String(), "Harbor loft", "open plan", now, now))

	p, err := client.CreateProject(context.Background(), "Harbor loft", "open plan")
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)
	assert.Equal(t, "Harbor loft", p.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseClient_GetProjectNotFound(t *testing.T) {
	client, mock := newMockClient(t)
	mock.ExpectQuery("FROM projects").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "created_at", "updated_at"}))

	_, err := client.GetProject(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseClient_UpdateRenderCompleted(t *testing.T) {
	client, mock := newMockClient(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE renders").
		WithArgs("completed", "https://cdn.example/r.png", nil, sqlmock.AnyArg(), "prompt", id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := client.UpdateRender(context.Background(), id, models.CompletedUpdate("https://cdn.example/r.png", "prompt", time.Now()))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseClient_UpdateRenderAlreadySettled(t *testing.T) {
	client, mock := newMockClient(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE renders").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM renders").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("completed"))

	err := client.UpdateRender(context.Background(), id, models.FailedUpdate("late", ""))
	assert.ErrorIs(t, err, common.ErrRenderSettled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseClient_UpdateRenderMissing(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectExec("UPDATE renders").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM renders").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))

	err := client.UpdateRender(context.Background(), uuid.New(), models.FailedUpdate("boom", ""))
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseClient_UpdateRenderRejectsMixedState(t *testing.T) {
	client, mock := newMockClient(t)

	err := client.UpdateRender(context.Background(), uuid.New(), models.RenderUpdate{Status: models.RenderStatusCompleted})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseClient_ListRendersByFloorPlan(t *testing.T) {
	client, mock := newMockClient(t)
	fpID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("FROM renders").
		WithArgs(fpID).
		WillReturnRows(sqlmock.NewRows(renderCols).
			AddRow(uuid.New().String(), fpID.String(), "isometric", nil, "https://cdn.example/i.png", "p", "completed", nil, now, now).
			AddRow(uuid.New().String(), fpID.String(), "room_wise", "Kitchen", nil, "p", "failed", "score 40", now, nil))

	renders, err := client.ListRendersByFloorPlan(context.Background(), fpID)
	require.NoError(t, err)
	require.Len(t, renders, 2)

	assert.Equal(t, models.RenderTypeIsometric, renders[0].RenderType)
	assert.Equal(t, models.RenderStatusCompleted, renders[0].Status)
	assert.True(t, renders[0].CompletedAt.Valid)
	assert.NoError(t, renders[0].Validate())

	assert.Equal(t, "Kitchen", renders[1].Label())
	assert.Equal(t, "score 40", renders[1].ErrorMessage.String)
	assert.NoError(t, renders[1].Validate())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseClient_DeleteProjectMissing(t *testing.T) {
	client, mock := newMockClient(t)
	mock.ExpectExec("DELETE FROM projects").WillReturnResult(sqlmock.NewResult(0, 0))

	err := client.DeleteProject(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
