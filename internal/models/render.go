package models

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type RenderType string

const (
	RenderTypeIsometric RenderType = "isometric"
	RenderTypeRoomWise  RenderType = "room_wise"
)

func (t RenderType) Valid() bool {
	return t == RenderTypeIsometric || t == RenderTypeRoomWise
}

type RenderStatus string

const (
	RenderStatusPending    RenderStatus = "pending"
	RenderStatusProcessing RenderStatus = "processing"
	RenderStatusCompleted  RenderStatus = "completed"
	RenderStatusFailed     RenderStatus = "failed"
)

// Terminal reports whether the status is a settlement status.
func (s RenderStatus) Terminal() bool {
	return s == RenderStatusCompleted || s == RenderStatusFailed
}

func (s RenderStatus) Valid() bool {
	switch s {
	case RenderStatusPending, RenderStatusProcessing, RenderStatusCompleted, RenderStatusFailed:
		return true
	}
	return false
}

// Render is one render job of a floor plan.
type Render struct {
	ID           uuid.UUID
	FloorPlanID  uuid.UUID
	RenderType   RenderType
	RoomName     sql.NullString
	ImageURL     sql.NullString
	PromptUsed   string
	Status       RenderStatus
	ErrorMessage sql.NullString
	CreatedAt    time.Time
	CompletedAt  sql.NullTime
}

// Label names the render in download filenames and events.
func (r *Render) Label() string {
	if r.RenderType == RenderTypeRoomWise && r.RoomName.Valid {
		return r.RoomName.String
	}
	return string(r.RenderType)
}

// RenderUpdate is the settlement write applied to a render row.
type RenderUpdate struct {
	Status       RenderStatus
	ImageURL     sql.NullString
	PromptUsed   sql.NullString
	ErrorMessage sql.NullString
	CompletedAt  sql.NullTime
}

// CompletedUpdate settles a render with its image.
func CompletedUpdate(imageURL, prompt string, at time.Time) RenderUpdate {
	return RenderUpdate{
		Status:      RenderStatusCompleted,
		ImageURL:    sql.NullString{String: imageURL, Valid: true},
		PromptUsed:  sql.NullString{String: prompt, Valid: prompt != ""},
		CompletedAt: sql.NullTime{Time: at, Valid: true},
	}
}

// FailedUpdate settles a render with an error message.
func FailedUpdate(message, prompt string) RenderUpdate {
	return RenderUpdate{
		Status:       RenderStatusFailed,
		PromptUsed:   sql.NullString{String: prompt, Valid: prompt != ""},
		ErrorMessage: sql.NullString{String: message, Valid: true},
	}
}

// Validate enforces image_url <=> completed, error_message <=> failed and
// completed_at <=> completed.
func (u RenderUpdate) Validate() error {
	if !u.Status.Valid() {
		return fmt.Errorf("invalid render status %q", u.Status)
	}
	return checkSettlementFields(u.Status, u.ImageURL, u.ErrorMessage, u.CompletedAt)
}

// Validate checks the record-level invariants of a render row.
func (r *Render) Validate() error {
	if !r.RenderType.Valid() {
		return fmt.Errorf("invalid render type %q", r.RenderType)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("invalid render status %q", r.Status)
	}
	hasRoom := r.RoomName.Valid && r.RoomName.String != ""
	if (r.RenderType == RenderTypeRoomWise) != hasRoom {
		return fmt.Errorf("room_name must be set iff render_type is %s", RenderTypeRoomWise)
	}
	return checkSettlementFields(r.Status, r.ImageURL, r.ErrorMessage, r.CompletedAt)
}

// Apply copies a validated update onto the record.
func (r *Render) Apply(u RenderUpdate) {
	r.Status = u.Status
	r.ImageURL = u.ImageURL
	r.ErrorMessage = u.ErrorMessage
	r.CompletedAt = u.CompletedAt
	if u.PromptUsed.Valid {
		r.PromptUsed = u.PromptUsed.String
	}
}

func checkSettlementFields(status RenderStatus, imageURL, errorMessage sql.NullString, completedAt sql.NullTime) error {
	completed := status == RenderStatusCompleted
	failed := status == RenderStatusFailed

	if completed != (imageURL.Valid && imageURL.String != "") {
		return fmt.Errorf("image_url must be set iff status is completed (status %s)", status)
	}
	if failed != (errorMessage.Valid && errorMessage.String != "") {
		return fmt.Errorf("error_message must be set iff status is failed (status %s)", status)
	}
	if completed != completedAt.Valid {
		return fmt.Errorf("completed_at must be set iff status is completed (status %s)", status)
	}
	return nil
}

// RenderEvent is the status change published for clients watching a project.
type RenderEvent struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	RenderID  uuid.UUID
	Status    RenderStatus
	Payload   map[string]interface{}
	CreatedAt time.Time
}
