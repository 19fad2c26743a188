package models

import "time"

type ProjectResponse struct {
	ID          string             `json:"project_id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	FloorPlan   *FloorPlanResponse `json:"floor_plan,omitempty"`
	Renders     []RenderResponse   `json:"renders,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

type ProjectListResponse struct {
	Projects []ProjectSummary `json:"projects"`
}

type ProjectSummary struct {
	ID          string    `json:"project_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type FloorPlanResponse struct {
	ID               string    `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	FileURL          string    `json:"file_url"`
	FileSize         int64     `json:"file_size"`
	Width            int64     `json:"width,omitempty"`
	Height           int64     `json:"height,omitempty"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

type RenderResponse struct {
	ID           string     `json:"id"`
	RenderType   string     `json:"render_type"`
	RoomName     string     `json:"room_name,omitempty"`
	ImageURL     string     `json:"image_url,omitempty"`
	PromptUsed   string     `json:"prompt_used,omitempty"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

type RendersResponse struct {
	ProjectID string           `json:"project_id"`
	Renders   []RenderResponse `json:"renders"`
	Settled   bool             `json:"settled"`
}

type RoomsResponse struct {
	Rooms []string `json:"rooms"`
}

type HealthResponse struct {
	Status     string `json:"status"`
	Generator  bool   `json:"generator"`
	Database   string `json:"database"`
	ActiveJobs int64  `json:"active_jobs"`
	MaxJobs    int64  `json:"max_jobs"`
}

func NewProjectSummary(p *Project) ProjectSummary {
	return ProjectSummary{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
	}
}

func NewFloorPlanResponse(fp *FloorPlan) *FloorPlanResponse {
	resp := &FloorPlanResponse{
		ID:               fp.ID.String(),
		OriginalFilename: fp.OriginalFilename,
		FileURL:          fp.FileURL,
		FileSize:         fp.FileSize,
		UploadedAt:       fp.UploadedAt,
	}
	if fp.Width.Valid {
		resp.Width = fp.Width.Int64
	}
	if fp.Height.Valid {
		resp.Height = fp.Height.Int64
	}
	return resp
}

func NewRenderResponse(r *Render) RenderResponse {
	resp := RenderResponse{
		ID:         r.ID.String(),
		RenderType: string(r.RenderType),
		PromptUsed: r.PromptUsed,
		Status:     string(r.Status),
		CreatedAt:  r.CreatedAt,
	}
	if r.RoomName.Valid {
		resp.RoomName = r.RoomName.String
	}
	if r.ImageURL.Valid {
		resp.ImageURL = r.ImageURL.String
	}
	if r.ErrorMessage.Valid {
		resp.ErrorMessage = r.ErrorMessage.String
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time
		resp.CompletedAt = &t
	}
	return resp
}

func NewRenderResponses(renders []Render) []RenderResponse {
	out := make([]RenderResponse, len(renders))
	for i := range renders {
		out[i] = NewRenderResponse(&renders[i])
	}
	return out
}
