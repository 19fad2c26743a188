package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"floorplan-render-backend/internal/assets"
	"floorplan-render-backend/internal/common"
	"floorplan-render-backend/internal/metrics"
	"floorplan-render-backend/internal/models"
	"floorplan-render-backend/internal/pool"
	"floorplan-render-backend/internal/projection"
	"floorplan-render-backend/internal/render"
	"floorplan-render-backend/internal/store"
	"floorplan-render-backend/internal/supabase"
	"floorplan-render-backend/internal/vision"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrRenderNotReady is returned when an image is requested for a render
// that has not completed.
var ErrRenderNotReady = errors.New("render has no image")

// Renderer produces the images of a render job.
type Renderer interface {
	Available() bool
	RenderIsometric(ctx context.Context, plan []byte, style string) (*render.Outcome, error)
	RenderRoom(ctx context.Context, plan []byte, room, style string) (*render.Outcome, error)
}

// RoomDetector lists the rooms of a floor plan.
type RoomDetector interface {
	Available() bool
	DetectRooms(ctx context.Context, plan []byte) ([]string, error)
}

// BlobStore keeps image files and returns their public URLs.
type BlobStore interface {
	UploadFloorPlan(projectID uuid.UUID, filename, contentType string, data []byte) (string, error)
	UploadRender(projectID, renderID uuid.UUID, data []byte) (string, error)
	DeleteProjectFiles(projectID uuid.UUID) error
	PathFromURL(publicURL string) (string, bool)
	DownloadFile(storagePath string) ([]byte, error)
}

// EventPublisher broadcasts render status changes.
type EventPublisher interface {
	Publish(event models.RenderEvent) error
}

// Upload is a floor plan submitted for rendering.
type Upload struct {
	Name        string
	Description string
	Style       string
	Filename    string
	Data        []byte
	Rooms       []string
	DetectRooms bool
}

// Batch is the set of render jobs started for one upload.
type Batch struct {
	Project   *models.Project
	FloorPlan *models.FloorPlan
	Renders   []models.Render
	futures   []*pool.Future
}

// Wait blocks until every job of the batch has settled. It returns the first
// settlement write error; a job's own failure is recorded on its render row.
func (b *Batch) Wait(ctx context.Context) error {
	var g errgroup.Group
	for _, f := range b.futures {
		f := f
		g.Go(func() error { return f.Wait(ctx) })
	}
	return g.Wait()
}

// ProjectDetail is a project with its floor plan and renders.
type ProjectDetail struct {
	Project   *models.Project
	FloorPlan *models.FloorPlan
	Renders   []models.Render
}

// Settled reports whether every render reached completed or failed.
func (d *ProjectDetail) Settled() bool {
	for _, r := range d.Renders {
		if !r.Status.Terminal() {
			return false
		}
	}
	return true
}

type RenderService struct {
	store    store.Store
	renderer Renderer
	detector RoomDetector
	workers  *pool.Pool
	blobs    BlobStore
	events   EventPublisher
	metrics  *metrics.Collector
	logger   *zap.Logger
	backoffs []time.Duration
	now      func() time.Time
}

type Option func(*RenderService)

func WithBlobStore(b BlobStore) Option {
	return func(s *RenderService) { s.blobs = b }
}

func WithEvents(e EventPublisher) Option {
	return func(s *RenderService) { s.events = e }
}

func WithCollector(m *metrics.Collector) Option {
	return func(s *RenderService) { s.metrics = m }
}

// WithBackoffs sets the delays between storage upload retries.
func WithBackoffs(backoffs []time.Duration) Option {
	return func(s *RenderService) { s.backoffs = backoffs }
}

func NewRenderService(
	st store.Store,
	renderer Renderer,
	detector RoomDetector,
	workers *pool.Pool,
	logger *zap.Logger,
	opts ...Option,
) *RenderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RenderService{
		store:    st,
		renderer: renderer,
		detector: detector,
		workers:  workers,
		logger:   logger.With(zap.String("component", "render_service")),
		backoffs: common.DefaultBackoffs,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GeneratorAvailable reports whether styled renders can be produced.
func (s *RenderService) GeneratorAvailable() bool {
	return s.renderer != nil && s.renderer.Available()
}

// StartProject stores the upload, creates its render rows and starts one
// job per render. The returned Batch resolves when every job has settled.
func (s *RenderService) StartProject(ctx context.Context, up Upload) (*Batch, error) {
	if s.workers.Closed() {
		return nil, fmt.Errorf("service is shutting down: %w", pool.ErrPoolClosed)
	}
	plan, err := projection.Decode(up.Data)
	if err != nil {
		return nil, err
	}
	bounds := plan.Bounds()

	rooms := vision.NormalizeRooms(up.Rooms)
	if len(rooms) == 0 && up.DetectRooms {
		rooms, err = s.DetectRooms(ctx, up.Data)
		if err != nil {
			return nil, err
		}
	}

	name := strings.TrimSpace(up.Name)
	if name == "" {
		name = defaultProjectName(up.Filename)
	}
	project, err := s.store.CreateProject(ctx, name, up.Description)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	filename := up.Filename
	if filename == "" {
		filename = "floorplan.png"
	}
	fp, err := s.store.CreateFloorPlan(ctx, &models.FloorPlan{
		ProjectID:        project.ID,
		OriginalFilename: filename,
		FileURL:          s.storeOriginal(ctx, project.ID, filename, up.Data),
		FileSize:         int64(len(up.Data)),
		Width:            sql.NullInt64{Int64: int64(bounds.Dx()), Valid: true},
		Height:           sql.NullInt64{Int64: int64(bounds.Dy()), Valid: true},
	})
	if err != nil {
		s.abandon(ctx, project.ID, nil)
		return nil, fmt.Errorf("failed to create floor plan: %w", err)
	}

	pending := []*models.Render{{
		FloorPlanID: fp.ID,
		RenderType:  models.RenderTypeIsometric,
		PromptUsed:  render.IsometricPrompt(up.Style, 1),
		Status:      models.RenderStatusProcessing,
	}}
	for _, room := range rooms {
		pending = append(pending, &models.Render{
			FloorPlanID: fp.ID,
			RenderType:  models.RenderTypeRoomWise,
			RoomName:    sql.NullString{String: room, Valid: true},
			PromptUsed:  render.RoomPrompt(room, up.Style),
			Status:      models.RenderStatusProcessing,
		})
	}

	batch := &Batch{Project: project, FloorPlan: fp}
	for _, r := range pending {
		created, err := s.store.CreateRender(ctx, r)
		if err != nil {
			s.abandon(ctx, project.ID, batch.Renders)
			return nil, fmt.Errorf("failed to create render: %w", err)
		}
		batch.Renders = append(batch.Renders, *created)
	}

	// Jobs outlive the request that started them.
	jobCtx := context.WithoutCancel(ctx)
	for i := range batch.Renders {
		job := batch.Renders[i]
		f := s.workers.Submit(jobCtx, func(ctx context.Context) error {
			return s.runJob(ctx, project.ID, job, up.Data, up.Style)
		})
		if rejected(f) {
			// The pool closed after the check above; the job never runs.
			update := models.FailedUpdate(msgShuttingDown, "")
			if err := s.store.UpdateRender(jobCtx, job.ID, update); err != nil {
				s.logger.Error("failed to settle unscheduled render", zap.String("render_id", job.ID.String()), zap.Error(err))
			}
			batch.Renders[i].Apply(update)
			continue
		}
		batch.futures = append(batch.futures, f)
	}

	s.logger.Info("project started",
		zap.String("project_id", project.ID.String()),
		zap.Int("renders", len(batch.Renders)),
		zap.Strings("rooms", rooms),
	)
	return batch, nil
}

const (
	msgShuttingDown  = "service is shutting down"
	msgNotStarted    = "render could not be started"
	msgInvalidOutput = "generated image could not be decoded"
)

// rejected reports whether Submit refused the task because the pool closed.
func rejected(f *pool.Future) bool {
	select {
	case <-f.Done():
		return errors.Is(f.Wait(context.Background()), pool.ErrPoolClosed)
	default:
		return false
	}
}

// abandon undoes a partially created project. Removing the project cascades
// to its rows; if that fails the renders already written are settled as
// failed so none stays processing.
func (s *RenderService) abandon(ctx context.Context, projectID uuid.UUID, created []models.Render) {
	ctx = context.WithoutCancel(ctx)
	err := s.store.DeleteProject(ctx, projectID)
	if err == nil {
		if s.blobs != nil {
			if err := s.blobs.DeleteProjectFiles(projectID); err != nil {
				s.logger.Warn("failed to delete project files", zap.String("project_id", projectID.String()), zap.Error(err))
			}
		}
		return
	}
	s.logger.Warn("failed to remove incomplete project", zap.String("project_id", projectID.String()), zap.Error(err))
	for _, r := range created {
		if err := s.store.UpdateRender(ctx, r.ID, models.FailedUpdate(msgNotStarted, "")); err != nil {
			s.logger.Error("failed to settle abandoned render", zap.String("render_id", r.ID.String()), zap.Error(err))
		}
	}
}

func (s *RenderService) storeOriginal(ctx context.Context, projectID uuid.UUID, filename string, data []byte) string {
	contentType := assets.ContentType(data)
	if s.blobs == nil {
		return assets.DataURI(contentType, data)
	}

	var url string
	err := common.RetryWithBackoff(ctx, s.backoffs, len(s.backoffs)+1, func() error {
		var err error
		url, err = s.blobs.UploadFloorPlan(projectID, filename, contentType, data)
		return err
	})
	if err != nil {
		s.logger.Warn("floor plan upload failed, keeping it inline",
			zap.String("project_id", projectID.String()),
			zap.Error(err),
		)
		return assets.DataURI(contentType, data)
	}
	return url
}

// runJob renders one job and writes its settlement. Its error is the
// settlement write error only.
func (s *RenderService) runJob(ctx context.Context, projectID uuid.UUID, job models.Render, plan []byte, style string) error {
	start := s.now()
	s.metrics.RenderStarted()
	log := s.logger.With(
		zap.String("project_id", projectID.String()),
		zap.String("render_id", job.ID.String()),
		zap.String("label", job.Label()),
	)

	var (
		out *render.Outcome
		err error
	)
	if job.RenderType == models.RenderTypeRoomWise {
		out, err = s.renderer.RenderRoom(ctx, plan, job.RoomName.String, style)
	} else {
		out, err = s.renderer.RenderIsometric(ctx, plan, style)
	}

	var image []byte
	msg := ""
	if err != nil {
		msg = render.Message(err)
	} else if image, err = asPNG(out.Image); err != nil {
		msg = msgInvalidOutput
	}

	var (
		update  models.RenderUpdate
		payload map[string]interface{}
		source  string
	)
	if err != nil {
		log.Warn("render failed", zap.Error(err))
		update = models.FailedUpdate(msg, "")
		job.Apply(update)
		payload = supabase.RenderFailedPayload(&job, msg)
	} else {
		source = string(out.Source)
		url := s.storeRender(ctx, projectID, job.ID, image)
		update = models.CompletedUpdate(url, out.Prompt, s.now())
		job.Apply(update)
		payload = supabase.RenderCompletedPayload(&job, source, out.Attempts, out.Score)
		log.Info("render completed",
			zap.String("source", source),
			zap.Int("attempts", out.Attempts),
			zap.Int("score", out.Score),
		)
	}

	if err := s.store.UpdateRender(ctx, job.ID, update); err != nil {
		log.Error("failed to settle render", zap.Error(err))
		return fmt.Errorf("settle render %s: %w", job.ID, err)
	}
	s.metrics.RecordSettlement(string(job.RenderType), string(update.Status), source, s.now().Sub(start))

	if s.events != nil {
		event := models.RenderEvent{
			ProjectID: projectID,
			RenderID:  job.ID,
			Status:    update.Status,
			Payload:   payload,
			CreatedAt: s.now(),
		}
		if err := s.events.Publish(event); err != nil {
			log.Warn("failed to publish render event", zap.Error(err))
		}
	}
	return nil
}

// asPNG re-encodes generator output that arrived as JPEG or WebP, since
// renders are stored and served as PNG.
func asPNG(data []byte) ([]byte, error) {
	if assets.ContentType(data) == "image/png" {
		return data, nil
	}
	img, err := projection.Decode(data)
	if err != nil {
		return nil, err
	}
	return projection.EncodePNG(img)
}

func (s *RenderService) storeRender(ctx context.Context, projectID, renderID uuid.UUID, image []byte) string {
	if s.blobs == nil {
		return assets.DataURI("image/png", image)
	}

	var url string
	err := common.RetryWithBackoff(ctx, s.backoffs, len(s.backoffs)+1, func() error {
		var err error
		url, err = s.blobs.UploadRender(projectID, renderID, image)
		return err
	})
	if err != nil {
		s.logger.Warn("render upload failed, keeping it inline",
			zap.String("render_id", renderID.String()),
			zap.Error(err),
		)
		return assets.DataURI("image/png", image)
	}
	return url
}

// DetectRooms lists the rooms of an uploaded plan.
func (s *RenderService) DetectRooms(ctx context.Context, data []byte) ([]string, error) {
	if s.detector == nil || !s.detector.Available() {
		return nil, &common.ConfigurationError{Setting: "OPENAI_API_KEY"}
	}
	if _, err := projection.Decode(data); err != nil {
		return nil, err
	}
	rooms, err := s.detector.DetectRooms(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to detect rooms: %w", err)
	}
	return rooms, nil
}

func (s *RenderService) ListProjects(ctx context.Context, limit int) ([]models.Project, error) {
	return s.store.ListProjects(ctx, limit)
}

func (s *RenderService) GetProject(ctx context.Context, id uuid.UUID) (*ProjectDetail, error) {
	project, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &ProjectDetail{Project: project, Renders: []models.Render{}}

	fp, err := s.store.GetFloorPlanByProject(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return detail, nil
	}
	if err != nil {
		return nil, err
	}
	detail.FloorPlan = fp

	detail.Renders, err = s.store.ListRendersByFloorPlan(ctx, fp.ID)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// DeleteProject removes the project rows. Stored files are removed on a
// best-effort basis.
func (s *RenderService) DeleteProject(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return err
	}
	if s.blobs != nil {
		if err := s.blobs.DeleteProjectFiles(id); err != nil {
			s.logger.Warn("failed to delete project files", zap.String("project_id", id.String()), zap.Error(err))
		}
	}
	s.logger.Info("project deleted", zap.String("project_id", id.String()))
	return nil
}

// RenderImage returns the PNG of a completed render and its download
// filename.
func (s *RenderService) RenderImage(ctx context.Context, renderID uuid.UUID) ([]byte, string, error) {
	r, err := s.store.GetRender(ctx, renderID)
	if err != nil {
		return nil, "", err
	}
	if r.Status != models.RenderStatusCompleted || !r.ImageURL.Valid {
		return nil, "", fmt.Errorf("render %s is %s: %w", renderID, r.Status, ErrRenderNotReady)
	}

	fp, err := s.store.GetFloorPlan(ctx, r.FloorPlanID)
	if err != nil {
		return nil, "", err
	}
	project, err := s.store.GetProject(ctx, fp.ProjectID)
	if err != nil {
		return nil, "", err
	}

	data, err := s.resolveImage(ctx, r.ImageURL.String)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load render image: %w", err)
	}
	return data, DownloadFilename(project.Name, r.Label()), nil
}

func (s *RenderService) resolveImage(ctx context.Context, ref string) ([]byte, error) {
	if s.blobs != nil {
		if path, ok := s.blobs.PathFromURL(ref); ok {
			return s.blobs.DownloadFile(path)
		}
	}
	return assets.Resolve(ctx, nil, ref)
}

// WorkerStats reports the render pool counters.
func (s *RenderService) WorkerStats() pool.Stats {
	return s.workers.Stats()
}

func (s *RenderService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Shutdown stops accepting jobs and waits for running ones.
func (s *RenderService) Shutdown(ctx context.Context) error {
	s.workers.Close()
	return s.workers.Wait(ctx)
}

// DownloadFilename is {project}-{label}.png with both parts slugified.
func DownloadFilename(projectName, label string) string {
	return slugify(projectName, "floorplan") + "-" + slugify(label, "render") + ".png"
}

func slugify(s, fallback string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return fallback
	}
	return out
}

func defaultProjectName(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if base == "" || base == "." || base == "/" {
		return "Untitled floor plan"
	}
	return base
}
