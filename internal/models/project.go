package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID          uuid.UUID
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FloorPlan is the uploaded source image of a project. FileURL is either a
// self-contained data URI or a remote URL.
type FloorPlan struct {
	ID               uuid.UUID
	ProjectID        uuid.UUID
	OriginalFilename string
	FileURL          string
	FileSize         int64
	Width            sql.NullInt64
	Height           sql.NullInt64
	UploadedAt       time.Time
}
