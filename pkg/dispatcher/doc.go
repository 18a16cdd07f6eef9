// Package dispatcher implements the hub of the assistant: queries are
// routed to one specialist role, the model runs a bounded loop of reasoning
// rounds with concurrent tool dispatch between them, and only the final
// round is streamed to the caller.
//
// Per-session ordering is enforced by serializing dispatches on a command
// queue lane. Tool results are always persisted in the order the model
// requested them, and tool failures flow back to the model as results
// rather than aborting the dispatch.
package dispatcher
