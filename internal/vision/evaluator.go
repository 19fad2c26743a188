package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"floorplan-render-backend/internal/common"
	"floorplan-render-backend/internal/models"

	"go.uber.org/zap"
)

// DefaultReason is used when the evaluator gave no usable reason.
const DefaultReason = "No reason provided by validator."

// Verdict is the evaluator's judgment of a generated image.
type Verdict struct {
	IsFaithful     bool
	Score          int
	Reason         string
	SourceRooms    int
	GeneratedRooms int
}

// RoomCountsMatch compares the room counts reported for both images.
// Counts the evaluator omitted are zero on both sides and match.
func (v Verdict) RoomCountsMatch() bool {
	return v.SourceRooms == v.GeneratedRooms
}

const isometricInstruction = `You compare two images. The first is an isometric projection of an architectural floor plan. The second is a styled 3D rendering generated from it.
Judge only structural faithfulness: every wall, partition, room boundary, door and window opening of the first image must be present in the second at the same relative position, and no room may be added, merged, split or removed. Ignore colors, furniture, materials and lighting.
Count the enclosed rooms in each image.
Answer with a JSON object: {"is_faithful": boolean, "score": integer 0-100, "reason": short string, "source_room_count": integer, "generated_room_count": integer}.`

const roomInstruction = `You compare two images. The first is an architectural floor plan. The second is a 3D rendering of a single room of that plan.
Judge whether the rendered room's shape, proportions, entry points and window positions are consistent with that room in the plan, and whether the rendering invents walls, openings or fixtures the plan does not show. Ignore decoration style.
Answer with a JSON object: {"is_faithful": boolean, "score": integer 0-100, "reason": short string}.`

// Evaluate scores generated against source. kind selects the scoring
// instruction.
func (c *Client) Evaluate(ctx context.Context, source, generated []byte, kind models.RenderType) (*Verdict, error) {
	instruction := isometricInstruction
	if kind == models.RenderTypeRoomWise {
		instruction = roomInstruction
	}

	content, err := c.complete(ctx, "evaluate", []contentPart{
		textPart(instruction),
		imagePart(source),
		imagePart(generated),
	})
	if err != nil {
		return nil, err
	}

	verdict, perr := parseVerdict(content)
	if perr != nil {
		c.logger.Debug("unusable evaluator answer", zap.Error(perr))
	}
	return &verdict, nil
}

// ParseVerdict reads the evaluator's JSON answer. Malformed or missing
// content yields an unfaithful zero-score verdict.
func ParseVerdict(content string) Verdict {
	v, _ := parseVerdict(content)
	return v
}

func parseVerdict(content string) (Verdict, error) {
	v := Verdict{Reason: DefaultReason}

	var raw map[string]interface{}
	if err := decodeObject(content, &raw); err != nil {
		return v, &common.ParseError{Body: content, Err: err}
	}

	v.IsFaithful = toBool(raw["is_faithful"])
	if score, ok := toNumber(raw["score"]); ok {
		v.Score = clamp(int(math.Round(score)), 0, 100)
	}
	if reason, ok := raw["reason"].(string); ok && strings.TrimSpace(reason) != "" {
		v.Reason = strings.TrimSpace(reason)
	}
	if n, ok := toNumber(raw["source_room_count"]); ok {
		v.SourceRooms = int(n)
	}
	if n, ok := toNumber(raw["generated_room_count"]); ok {
		v.GeneratedRooms = int(n)
	}
	return v, nil
}

// decodeObject unmarshals the JSON object in content, tolerating markdown
// fences and surrounding prose.
func decodeObject(content string, out interface{}) error {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object in content")
	}
	return json.Unmarshal([]byte(content[start:end+1]), out)
}

func toBool(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return err == nil && parsed
	}
	return false
}

func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
