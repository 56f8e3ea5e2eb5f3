package grouping

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lmdevv/tabby-sub002/internal/model"
)

// DefaultInstruction is used when the caller gives none.
const DefaultInstruction = "Organize these tabs into a small number of meaningful groups."

// systemPrompt describes the response schema the validator accepts.
var systemPrompt = strings.Join([]string{
	"You organize browser tabs into tab groups.",
	"You receive a JSON object with the current groups, the tabs (id, title, url, optional groupId) and, when there are several browser windows, a map from window id to tab ids.",
	"Reply with a single JSON object and nothing else, using exactly this shape:",
	`{"groups":[{"name":"...","tabIds":[1,2],"color":"blue"}],"ungroupedTabs":[3]}`,
	"Rules:",
	"- Every tab id from the input appears exactly once, either in one group or in ungroupedTabs.",
	"- Never invent tab ids.",
	"- All tabs of one group must come from the same window.",
	"- Group names are unique within a window, ignoring case.",
	"- color is optional and must be one of: " + strings.Join(model.GroupColors, ", ") + ".",
}, "\n")

// SystemPrompt returns the fixed system prompt.
func SystemPrompt() string {
	return systemPrompt
}

// UserPrompt renders the instruction and the serialized context.
func UserPrompt(c *Context, instruction string) (string, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		instruction = DefaultInstruction
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("serialize grouping context: %w", err)
	}
	return instruction + "\n\nTabs:\n" + string(data), nil
}
