package supabase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"floorplan-render-backend/internal/common"
	"floorplan-render-backend/internal/models"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// DatabaseClient is the Postgres-backed render job store.
type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

// NewDatabaseClientWithDB wraps an already opened connection.
func NewDatabaseClientWithDB(db *sql.DB) *DatabaseClient {
	return &DatabaseClient{db: db}
}

func (d *DatabaseClient) CreateProject(ctx context.Context, name, description string) (*models.Project, error) {
	var project models.Project
	err := d.db.QueryRowContext(ctx, `
		INSERT INTO projects (id, name, description)
		VALUES ($1, $2, $3)
		RETURNING id, name, description, created_at, updated_at
	`, uuid.New(), name, description).Scan(
		&project.ID, &project.Name, &project.Description, &project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	return &project, nil
}

func (d *DatabaseClient) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	err := d.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM projects
		WHERE id = $1
	`, id).Scan(
		&project.ID, &project.Name, &project.Description, &project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", notFound(err))
	}

	return &project, nil
}

func (d *DatabaseClient) ListProjects(ctx context.Context, limit int) ([]models.Project, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM projects
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]models.Project, 0)
	for rows.Next() {
		var project models.Project
		if err := rows.Scan(
			&project.ID, &project.Name, &project.Description, &project.CreatedAt, &project.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	return projects, rows.Err()
}

// DeleteProject removes the project; floor plans, renders and events
// cascade in the database.
func (d *DatabaseClient) DeleteProject(ctx context.Context, id uuid.UUID) error {
	res, err := d.db.ExecContext(ctx, `
		DELETE FROM projects
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to delete project: %w", common.ErrNotFound)
	}
	return nil
}

func (d *DatabaseClient) CreateFloorPlan(ctx context.Context, fp *models.FloorPlan) (*models.FloorPlan, error) {
	id := fp.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	var created models.FloorPlan
	err := d.db.QueryRowContext(ctx, `
		INSERT INTO floor_plans (id, project_id, original_filename, file_url, file_size, width, height)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, project_id, original_filename, file_url, file_size, width, height, uploaded_at
	`, id, fp.ProjectID, fp.OriginalFilename, fp.FileURL, fp.FileSize, fp.Width, fp.Height).Scan(
		&created.ID, &created.ProjectID, &created.OriginalFilename, &created.FileURL,
		&created.FileSize, &created.Width, &created.Height, &created.UploadedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create floor plan: %w", err)
	}

	return &created, nil
}

func (d *DatabaseClient) GetFloorPlanByProject(ctx context.Context, projectID uuid.UUID) (*models.FloorPlan, error) {
	return d.scanFloorPlan(d.db.QueryRowContext(ctx, `
		SELECT id, project_id, original_filename, file_url, file_size, width, height, uploaded_at
		FROM floor_plans
		WHERE project_id = $1
		ORDER BY uploaded_at ASC
		LIMIT 1
	`, projectID))
}

func (d *DatabaseClient) GetFloorPlan(ctx context.Context, id uuid.UUID) (*models.FloorPlan, error) {
	return d.scanFloorPlan(d.db.QueryRowContext(ctx, `
		SELECT id, project_id, original_filename, file_url, file_size, width, height, uploaded_at
		FROM floor_plans
		WHERE id = $1
	`, id))
}

func (d *DatabaseClient) scanFloorPlan(row *sql.Row) (*models.FloorPlan, error) {
	var fp models.FloorPlan
	err := row.Scan(
		&fp.ID, &fp.ProjectID, &fp.OriginalFilename, &fp.FileURL,
		&fp.FileSize, &fp.Width, &fp.Height, &fp.UploadedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get floor plan: %w", notFound(err))
	}
	return &fp, nil
}

func (d *DatabaseClient) CreateRender(ctx context.Context, r *models.Render) (*models.Render, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid render: %w", err)
	}
	id := r.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	var created models.Render
	err := d.db.QueryRowContext(ctx, `
		INSERT INTO renders (id, floor_plan_id, render_type, room_name, prompt_used, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+renderColumns,
		id, r.FloorPlanID, string(r.RenderType), r.RoomName, r.PromptUsed, string(r.Status),
	).Scan(renderFields(&created)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create render: %w", err)
	}

	return &created, nil
}

func (d *DatabaseClient) GetRender(ctx context.Context, id uuid.UUID) (*models.Render, error) {
	var r models.Render
	err := d.db.QueryRowContext(ctx, `
		SELECT `+renderColumns+`
		FROM renders
		WHERE id = $1
	`, id).Scan(renderFields(&r)...)
	if err != nil {
		return nil, fmt.Errorf("failed to get render: %w", notFound(err))
	}
	return &r, nil
}

// UpdateRender writes a settlement. Only rows still pending or processing
// are matched, which makes completed_at write-once and statuses final.
func (d *DatabaseClient) UpdateRender(ctx context.Context, id uuid.UUID, update models.RenderUpdate) error {
	if err := update.Validate(); err != nil {
		return fmt.Errorf("invalid render update: %w", err)
	}

	res, err := d.db.ExecContext(ctx, `
		UPDATE renders
		SET status = $1, image_url = $2, error_message = $3, completed_at = $4,
			prompt_used = COALESCE($5::text, prompt_used)
		WHERE id = $6 AND status IN ('pending', 'processing')
	`, string(update.Status), update.ImageURL, update.ErrorMessage, update.CompletedAt, update.PromptUsed, id)
	if err != nil {
		return fmt.Errorf("failed to update render: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update render: %w", err)
	}
	if n > 0 {
		return nil
	}

	var status string
	err = d.db.QueryRowContext(ctx, `SELECT status FROM renders WHERE id = $1`, id).Scan(&status)
	if err != nil {
		return fmt.Errorf("failed to update render: %w", notFound(err))
	}
	return fmt.Errorf("render %s is %s: %w", id, status, common.ErrRenderSettled)
}

func (d *DatabaseClient) ListRendersByFloorPlan(ctx context.Context, floorPlanID uuid.UUID) ([]models.Render, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+renderColumns+`
		FROM renders
		WHERE floor_plan_id = $1
		ORDER BY created_at ASC
	`, floorPlanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list renders: %w", err)
	}
	defer rows.Close()

	renders := make([]models.Render, 0)
	for rows.Next() {
		var r models.Render
		if err := rows.Scan(renderFields(&r)...); err != nil {
			return nil, fmt.Errorf("failed to scan render: %w", err)
		}
		renders = append(renders, r)
	}

	return renders, rows.Err()
}

func (d *DatabaseClient) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}

const renderColumns = `id, floor_plan_id, render_type, room_name, image_url, prompt_used, status, error_message, created_at, completed_at`

func renderFields(r *models.Render) []interface{} {
	return []interface{}{
		&r.ID, &r.FloorPlanID, &r.RenderType, &r.RoomName, &r.ImageURL,
		&r.PromptUsed, &r.Status, &r.ErrorMessage, &r.CreatedAt, &r.CompletedAt,
	}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	return err
}
