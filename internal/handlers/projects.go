package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"floorplan-render-backend/internal/models"
	"floorplan-render-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultProjectLimit = 20
	maxProjectLimit     = 100
)

type ProjectsHandler struct {
	service        *services.RenderService
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewProjectsHandler(service *services.RenderService, maxUploadBytes int64, logger *zap.Logger) *ProjectsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectsHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(zap.String("component", "projects_handler")),
	}
}

// CreateProject godoc
// @Summary     Upload a floor plan
// @Description Stores the plan and starts the isometric render plus one render per room
// @Tags        projects
// @Accept      multipart/form-data
// @Produce     json
// @Success     202 {object} models.ProjectResponse
// @Router      /projects [post]
func (h *ProjectsHandler) CreateProject(c *gin.Context) {
	data, filename, err := readUpload(c, "file", h.maxUploadBytes)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		c.JSON(status, models.ErrorResponse{Error: "invalid upload", Message: err.Error()})
		return
	}

	var req models.CreateProjectRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid form", Message: err.Error()})
		return
	}

	batch, err := h.service.StartProject(c.Request.Context(), services.Upload{
		Name:        req.Name,
		Description: req.Description,
		Style:       req.Style,
		Filename:    filename,
		Data:        data,
		Rooms:       splitRooms(req.Rooms),
		DetectRooms: req.DetectRooms,
	})
	if err != nil {
		h.logger.Warn("failed to start project", zap.Error(err))
		respondError(c, "failed to create project", err)
		return
	}

	c.JSON(http.StatusAccepted, projectResponse(&services.ProjectDetail{
		Project:   batch.Project,
		FloorPlan: batch.FloorPlan,
		Renders:   batch.Renders,
	}))
}

// ListProjects godoc
// @Summary     Project history
// @Tags        projects
// @Produce     json
// @Param       limit query int false "maximum number of projects (default 20, max 100)"
// @Success     200 {object} models.ProjectListResponse
// @Router      /projects [get]
func (h *ProjectsHandler) ListProjects(c *gin.Context) {
	limit := defaultProjectLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = min(n, maxProjectLimit)
	}

	projects, err := h.service.ListProjects(c.Request.Context(), limit)
	if err != nil {
		respondError(c, "failed to list projects", err)
		return
	}

	summaries := make([]models.ProjectSummary, len(projects))
	for i := range projects {
		summaries[i] = models.NewProjectSummary(&projects[i])
	}
	c.JSON(http.StatusOK, models.ProjectListResponse{Projects: summaries})
}

func (h *ProjectsHandler) GetProject(c *gin.Context) {
	projectID, ok := parseID(c, "project_id")
	if !ok {
		return
	}

	detail, err := h.service.GetProject(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, "failed to get project", err)
		return
	}

	c.JSON(http.StatusOK, projectResponse(detail))
}

// GetRenders is the polling endpoint for a project's render jobs.
func (h *ProjectsHandler) GetRenders(c *gin.Context) {
	projectID, ok := parseID(c, "project_id")
	if !ok {
		return
	}

	detail, err := h.service.GetProject(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, "failed to get renders", err)
		return
	}

	c.JSON(http.StatusOK, models.RendersResponse{
		ProjectID: detail.Project.ID.String(),
		Renders:   models.NewRenderResponses(detail.Renders),
		Settled:   detail.Settled(),
	})
}

func (h *ProjectsHandler) DeleteProject(c *gin.Context) {
	projectID, ok := parseID(c, "project_id")
	if !ok {
		return
	}

	if err := h.service.DeleteProject(c.Request.Context(), projectID); err != nil {
		respondError(c, "failed to delete project", err)
		return
	}

	c.Status(http.StatusNoContent)
}

func projectResponse(d *services.ProjectDetail) models.ProjectResponse {
	resp := models.ProjectResponse{
		ID:          d.Project.ID.String(),
		Name:        d.Project.Name,
		Description: d.Project.Description,
		Renders:     models.NewRenderResponses(d.Renders),
		CreatedAt:   d.Project.CreatedAt,
		UpdatedAt:   d.Project.UpdatedAt,
	}
	if d.FloorPlan != nil {
		resp.FloorPlan = models.NewFloorPlanResponse(d.FloorPlan)
	}
	return resp
}

func splitRooms(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid " + param})
		return uuid.Nil, false
	}
	return id, true
}
