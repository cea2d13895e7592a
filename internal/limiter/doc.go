// Package limiter paces outbound operations against rate-limited services.
//
// A Limiter admits callers no faster than its rate. Each limiter belongs to a
// Domain:
//
//   - DomainShared keeps a private ledger safe for use from any goroutine.
//   - DomainScoped keeps a private ledger bound to one Scope; a call from any
//     other scope fails with an *IsolationViolation before touching timing.
//   - DomainGlobal paces against a single ledger shared by every global
//     limiter of the same Coordinator.
//
// Every Coordinator carries a SafeMode switch that caps effective rates while
// enabled. Default returns the process-wide coordinator.
//
// Acquire waits are cancellable through the context; a cancelled wait does
// not consume a slot.
package limiter
