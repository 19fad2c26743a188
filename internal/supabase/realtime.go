package supabase

import (
	"fmt"
	"time"

	"floorplan-render-backend/internal/models"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"
)

// RealtimeClient publishes render status changes by inserting rows into
// render_events, which Supabase Realtime broadcasts to subscribers. A nil
// client publishes nothing.
type RealtimeClient struct {
	client *supabase.Client
	logger *zap.Logger
}

func NewRealtimeClient(client *supabase.Client, logger *zap.Logger) *RealtimeClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RealtimeClient{
		client: client,
		logger: logger.With(zap.String("component", "realtime")),
	}
}

type renderEventRow struct {
	ID        string                 `json:"id"`
	ProjectID string                 `json:"project_id"`
	RenderID  string                 `json:"render_id"`
	Status    string                 `json:"status"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt string                 `json:"created_at"`
}

func (r *RealtimeClient) Publish(event models.RenderEvent) error {
	if r == nil || r.client == nil {
		return nil
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	row := renderEventRow{
		ID:        event.ID.String(),
		ProjectID: event.ProjectID.String(),
		RenderID:  event.RenderID.String(),
		Status:    string(event.Status),
		Payload:   event.Payload,
		CreatedAt: event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if _, _, err := r.client.From("render_events").Insert(row, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("failed to publish render event: %w", err)
	}

	r.logger.Debug("render event published",
		zap.String("project_id", row.ProjectID),
		zap.String("render_id", row.RenderID),
		zap.String("status", row.Status),
	)
	return nil
}

// Event payloads

func RenderCompletedPayload(r *models.Render, source string, attempts, score int) map[string]interface{} {
	return map[string]interface{}{
		"render_id":   r.ID.String(),
		"render_type": string(r.RenderType),
		"label":       r.Label(),
		"status":      string(models.RenderStatusCompleted),
		"source":      source,
		"attempts":    attempts,
		"score":       score,
	}
}

func RenderFailedPayload(r *models.Render, errorMsg string) map[string]interface{} {
	return map[string]interface{}{
		"render_id":   r.ID.String(),
		"render_type": string(r.RenderType),
		"label":       r.Label(),
		"status":      string(models.RenderStatusFailed),
		"error":       errorMsg,
	}
}
