package chat

import (
	"fmt"
	"strings"

	"github.com/poiesic/agentmatrix/core"
)

func systemPrompt(agent *core.Agent, profile string) string {
	return strings.TrimSpace(fmt.Sprintf(`
You are %s.
Core/Specialty: %s

Active profile: %s

Rules:
- Use the Knowledge Matrix as your foundation.
- If something is not supported by the Matrix, declare the gap.
- Avoid extrapolation. Be operational and clear.
`, agent.Name, agent.Specialty, profile))
}

func userPayload(agent *core.Agent, history []core.Message, prompt string) string {
	lines := make([]string, len(history))
	for i, m := range history {
		lines[i] = strings.ToUpper(string(m.Role)) + ": " + m.Content
	}
	return strings.TrimSpace(fmt.Sprintf(`
[KNOWLEDGE_MATRIX]
%s

[HISTORY]
%s

[CURRENT_QUESTION]
%s
`, agent.Matrix, strings.Join(lines, "\n"), prompt))
}
