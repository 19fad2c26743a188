package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"floorplan-render-backend/internal/common"
	"floorplan-render-backend/internal/models"

	"github.com/google/uuid"
)

// Memory is a Store kept in process memory. It is used when no database is
// configured and in tests.
type Memory struct {
	mu         sync.RWMutex
	projects   map[uuid.UUID]models.Project
	floorPlans map[uuid.UUID]models.FloorPlan
	renders    map[uuid.UUID]models.Render
	now        func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		projects:   make(map[uuid.UUID]models.Project),
		floorPlans: make(map[uuid.UUID]models.FloorPlan),
		renders:    make(map[uuid.UUID]models.Render),
		now:        time.Now,
	}
}

func (m *Memory) CreateProject(ctx context.Context, name, description string) (*models.Project, error) {
	now := m.now()
	p := models.Project{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	m.mu.Lock()
	m.projects[p.ID] = p
	m.mu.Unlock()
	return &p, nil
}

func (m *Memory) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, common.ErrNotFound)
	}
	return &p, nil
}

func (m *Memory) ListProjects(ctx context.Context, limit int) ([]models.Project, error) {
	m.mu.RLock()
	projects := make([]models.Project, 0, len(m.projects))
	for _, p := range m.projects {
		projects = append(projects, p)
	}
	m.mu.RUnlock()

	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
	if limit > 0 && len(projects) > limit {
		projects = projects[:limit]
	}
	return projects, nil
}

// DeleteProject removes the project and cascades to its floor plans and
// their renders.
func (m *Memory) DeleteProject(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return fmt.Errorf("project %s: %w", id, common.ErrNotFound)
	}
	delete(m.projects, id)
	for fpID, fp := range m.floorPlans {
		if fp.ProjectID != id {
			continue
		}
		delete(m.floorPlans, fpID)
		for rID, r := range m.renders {
			if r.FloorPlanID == fpID {
				delete(m.renders, rID)
			}
		}
	}
	return nil
}

func (m *Memory) CreateFloorPlan(ctx context.Context, fp *models.FloorPlan) (*models.FloorPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[fp.ProjectID]; !ok {
		return nil, fmt.Errorf("project %s: %w", fp.ProjectID, common.ErrNotFound)
	}

	created := *fp
	if created.ID == uuid.Nil {
		created.ID = uuid.New()
	}
	if created.UploadedAt.IsZero() {
		created.UploadedAt = m.now()
	}
	m.floorPlans[created.ID] = created
	return &created, nil
}

func (m *Memory) GetFloorPlanByProject(ctx context.Context, projectID uuid.UUID) (*models.FloorPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found *models.FloorPlan
	for _, fp := range m.floorPlans {
		if fp.ProjectID != projectID {
			continue
		}
		if found == nil || fp.UploadedAt.Before(found.UploadedAt) {
			fp := fp
			found = &fp
		}
	}
	if found == nil {
		return nil, fmt.Errorf("floor plan for project %s: %w", projectID, common.ErrNotFound)
	}
	return found, nil
}

func (m *Memory) GetFloorPlan(ctx context.Context, id uuid.UUID) (*models.FloorPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fp, ok := m.floorPlans[id]
	if !ok {
		return nil, fmt.Errorf("floor plan %s: %w", id, common.ErrNotFound)
	}
	return &fp, nil
}

func (m *Memory) CreateRender(ctx context.Context, r *models.Render) (*models.Render, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid render: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.floorPlans[r.FloorPlanID]; !ok {
		return nil, fmt.Errorf("floor plan %s: %w", r.FloorPlanID, common.ErrNotFound)
	}

	created := *r
	if created.ID == uuid.Nil {
		created.ID = uuid.New()
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = m.now()
	}
	m.renders[created.ID] = created
	return &created, nil
}

func (m *Memory) GetRender(ctx context.Context, id uuid.UUID) (*models.Render, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.renders[id]
	if !ok {
		return nil, fmt.Errorf("render %s: %w", id, common.ErrNotFound)
	}
	return &r, nil
}

func (m *Memory) UpdateRender(ctx context.Context, id uuid.UUID, update models.RenderUpdate) error {
	if err := update.Validate(); err != nil {
		return fmt.Errorf("invalid render update: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.renders[id]
	if !ok {
		return fmt.Errorf("render %s: %w", id, common.ErrNotFound)
	}
	if r.Status.Terminal() {
		return fmt.Errorf("render %s is %s: %w", id, r.Status, common.ErrRenderSettled)
	}

	r.Apply(update)
	if err := r.Validate(); err != nil {
		return fmt.Errorf("render %s would violate invariants: %w", id, err)
	}
	m.renders[id] = r
	return nil
}

func (m *Memory) ListRendersByFloorPlan(ctx context.Context, floorPlanID uuid.UUID) ([]models.Render, error) {
	m.mu.RLock()
	renders := make([]models.Render, 0)
	for _, r := range m.renders {
		if r.FloorPlanID == floorPlanID {
			renders = append(renders, r)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(renders, func(i, j int) bool {
		if renders[i].CreatedAt.Equal(renders[j].CreatedAt) {
			return renders[i].ID.String() < renders[j].ID.String()
		}
		return renders[i].CreatedAt.Before(renders[j].CreatedAt)
	})
	return renders, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }
