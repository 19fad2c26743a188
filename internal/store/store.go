// Package store defines the render job store and an in-process
// implementation of it. The Postgres implementation lives in
// internal/supabase.
package store

import (
	"context"

	"floorplan-render-backend/internal/models"

	"github.com/google/uuid"
)

// Store persists projects, floor plans and renders. Implementations must
// validate every RenderUpdate before writing it, reject settlement writes on
// renders that are already completed or failed with common.ErrRenderSettled,
// and return common.ErrNotFound for missing records.
type Store interface {
	CreateProject(ctx context.Context, name, description string) (*models.Project, error)
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListProjects(ctx context.Context, limit int) ([]models.Project, error)
	DeleteProject(ctx context.Context, id uuid.UUID) error

	CreateFloorPlan(ctx context.Context, fp *models.FloorPlan) (*models.FloorPlan, error)
	GetFloorPlanByProject(ctx context.Context, projectID uuid.UUID) (*models.FloorPlan, error)
	GetFloorPlan(ctx context.Context, id uuid.UUID) (*models.FloorPlan, error)

	CreateRender(ctx context.Context, r *models.Render) (*models.Render, error)
	GetRender(ctx context.Context, id uuid.UUID) (*models.Render, error)
	UpdateRender(ctx context.Context, id uuid.UUID, update models.RenderUpdate) error
	ListRendersByFloorPlan(ctx context.Context, floorPlanID uuid.UUID) ([]models.Render, error)

	Ping(ctx context.Context) error
}
