// Package session manages persistent conversation history.
//
// Invariants:
// - Session keys are validated and path-safe.
// - Writes for the same session are serialized.
// - Turns are returned in arrival order.
// - Trimming never keeps a tool result without its issuing assistant turn.
//
// Usage:
//
//	store, _ := session.NewJSONLStore("/tmp/mate/sessions")
//	mgr := session.NewManager(store, 100)
//	_ = mgr.Append(ctx, "chat:1", session.NewUserTurn("hello"))
//	turns, _ := mgr.Get(ctx, "chat:1")
//	_ = turns
package session
