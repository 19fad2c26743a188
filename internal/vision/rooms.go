package vision

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// MaxRooms caps the number of rooms DetectRooms returns.
const MaxRooms = 12

const detectInstruction = `The image is an architectural floor plan. List the distinct rooms it contains using the labels printed on the plan where present, otherwise short descriptive names such as "Kitchen" or "Bedroom 2". Exclude corridors, closets and balconies.
Answer with a JSON object: {"rooms": [string, ...]}.`

// DetectRooms lists the room names of a floor plan.
func (c *Client) DetectRooms(ctx context.Context, plan []byte) ([]string, error) {
	content, err := c.complete(ctx, "detect_rooms", []contentPart{
		textPart(detectInstruction),
		imagePart(plan),
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Rooms []string `json:"rooms"`
	}
	if err := decodeObject(content, &parsed); err != nil {
		c.logger.Debug("unusable room list", zap.Error(err))
		return []string{}, nil
	}
	return NormalizeRooms(parsed.Rooms), nil
}

// NormalizeRooms trims names, drops blanks and case-insensitive duplicates
// and caps the list at MaxRooms.
func NormalizeRooms(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	rooms := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.Join(strings.Fields(name), " ")
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		rooms = append(rooms, name)
		if len(rooms) == MaxRooms {
			break
		}
	}
	return rooms
}
