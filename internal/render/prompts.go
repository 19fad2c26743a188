package render

import (
	"fmt"
	"strings"
)

const defaultStyle = "modern"

const retryInstruction = ` The previous attempt did not preserve the layout. Favor structural accuracy over decoration: keep furniture and materials minimal and reproduce every wall, partition and room boundary exactly where the plan has it.`

// IsometricPrompt is the styling prompt for an attempt of the isometric
// render. Attempts after the first carry the retry instruction.
func IsometricPrompt(style string, attempt int) string {
	prompt := fmt.Sprintf(
		"Turn this isometric floor plan into a photorealistic 3D isometric cutaway rendering in a %s interior style. "+
			"Keep the exact footprint, every wall, partition, door and window opening, and the number and arrangement of rooms. "+
			"Walls are extruded to a uniform height with no ceiling. Furnish each room according to its apparent use. "+
			"Do not add, remove, merge or split rooms. Use a clean white background.",
		styleOrDefault(style),
	)
	if attempt > 1 {
		prompt += retryInstruction
	}
	return prompt
}

// RoomPrompt asks for an eye-level rendering of one room of the plan.
func RoomPrompt(room, style string) string {
	return fmt.Sprintf(
		"Using this floor plan, create a photorealistic eye-level interior rendering of the room labeled %q in a %s style. "+
			"Hard constraints: the room's shape, proportions, door and window positions must match the plan exactly. "+
			"Do not invent walls, openings, stairs or fixtures that the plan does not show. "+
			"If a detail of the room is ambiguous on the plan, keep that area plain and neutral rather than guessing.",
		room, styleOrDefault(style),
	)
}

func styleOrDefault(style string) string {
	style = strings.TrimSpace(style)
	if style == "" {
		return defaultStyle
	}
	return style
}
