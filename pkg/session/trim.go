package session

// TrimTurns drops the oldest turns so that at most maxTurns remain.
//
// A tool result turn is never kept without the assistant turn that issued
// its tool call: if the cut would land on a tool turn, it advances past the
// whole result block so the retained history starts on a user or assistant
// turn. The returned slice may therefore be shorter than maxTurns.
func TrimTurns(turns []Turn, maxTurns int) []Turn {
	if maxTurns <= 0 || len(turns) <= maxTurns {
		return turns
	}

	cut := len(turns) - maxTurns
	for cut < len(turns) && turns[cut].Role == RoleTool {
		cut++
	}

	return turns[cut:]
}
