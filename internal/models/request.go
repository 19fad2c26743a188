package models

// CreateProjectRequest holds the non-file fields of the upload form.
type CreateProjectRequest struct {
	Name        string `form:"name"`
	Description string `form:"description"`
	// Style is a free-text styling hint, e.g. "scandinavian, warm oak floors".
	Style string `form:"style"`
	// Rooms is a comma-separated list of room names to render individually.
	Rooms string `form:"rooms"`
	// DetectRooms asks the vision model for the room list when Rooms is empty.
	DetectRooms bool `form:"detect_rooms"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
