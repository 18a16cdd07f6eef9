// Package toolexec provides the tool registry and executor.
//
// Invariants:
// - The registry is immutable after Freeze.
// - Every request gets a result; failures are results, not aborts.
// - ExecuteAll runs tools concurrently but returns results in request order.
// - Parameter validation uses JSON Schema with additionalProperties: false.
package toolexec
