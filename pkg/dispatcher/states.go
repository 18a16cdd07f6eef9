package dispatcher

// State is the lifecycle state of a single dispatch.
type State string

const (
	StateAwaitingInput     State = "awaiting_input"
	StateRouting           State = "routing"
	StateAgentTurn         State = "agent_turn"
	StateToolDispatch      State = "tool_dispatch"
	StateStreamingResponse State = "streaming_response"
	StateDone              State = "done"
	StateError             State = "error"
	StateAborted           State = "aborted"
)

// terminal states never transition further within a dispatch.
func (s State) Terminal() bool {
	switch s {
	case StateDone, StateError, StateAborted:
		return true
	}
	return false
}

var validTransitions = map[State][]State{
	StateAwaitingInput:     {StateRouting},
	StateRouting:           {StateAgentTurn, StateError, StateAborted},
	StateAgentTurn:         {StateToolDispatch, StateStreamingResponse, StateDone, StateError, StateAborted},
	// ToolDispatch reaches StreamingResponse directly when the round
	// budget runs out and the dispatch closes with a best-effort answer.
	StateToolDispatch: {StateAgentTurn, StateStreamingResponse, StateError, StateAborted},
	StateStreamingResponse: {StateDone, StateError, StateAborted},
}

// CanTransition reports whether moving from s to next is a legal step.
func (s State) CanTransition(next State) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
