package subtaskmgr

import (
	"fmt"
	"strings"

	"github.com/harrison/orchestrator/internal/models"
)

// BuildPrompt assembles the message delivered to the ModelRunner for a
// sub-task, per spec.md §4.7.1: a metadata table, the verbatim user prompt,
// the expected deliverable, a completion contract, the spawn policy derived
// from depth vs maxDepth, a worktree restriction, and a communication
// contract describing how to notify the parent.
func BuildPrompt(st *models.SubTask, maxDepth int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Task metadata\n\n")
	fmt.Fprintf(&b, "| field | value |\n|---|---|\n")
	fmt.Fprintf(&b, "| agentType | %s |\n", st.AgentType)
	fmt.Fprintf(&b, "| subTaskId | %s |\n", st.ID)
	fmt.Fprintf(&b, "| parentWorkerId | %s |\n", st.ParentWorkerID)
	fmt.Fprintf(&b, "| depth | %d |\n", st.Depth)
	fmt.Fprintf(&b, "| worktreePath | %s |\n", st.WorktreePath)

	fmt.Fprintf(&b, "\n## Prompt\n\n%s\n", st.Prompt)

	if st.ExpectedOutput != "" {
		fmt.Fprintf(&b, "\n## Expected deliverable\n\n%s\n", st.ExpectedOutput)
	}

	fmt.Fprintf(&b, "\n## Completion contract\n\nYou MUST signal completion by invoking the completion tool with a commit message. If you do not, your changes are considered lost.\n")

	canSpawn := st.Depth < maxDepth
	fmt.Fprintf(&b, "\n## Sub-task spawning policy\n\n")
	if canSpawn {
		fmt.Fprintf(&b, "You may spawn further sub-tasks (current depth %d < max %d).\n", st.Depth, maxDepth)
	} else {
		fmt.Fprintf(&b, "You may NOT spawn further sub-tasks (current depth %d has reached max %d).\n", st.Depth, maxDepth)
	}

	fmt.Fprintf(&b, "\n## Worktree restriction\n\nYou MUST only read/write within %s.\n", st.WorktreePath)

	fmt.Fprintf(&b, "\n## Communication contract\n\nNotify your parent worker (id %s) via approval, status, question, or completion messages on the shared message bus.\n", st.ParentWorkerID)

	return b.String()
}
