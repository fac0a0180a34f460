// Package msgq is an in-process service substrate: independent services
// register with a [Registry], keep typed state under their own identity, and
// exchange asynchronous request/response messages without holding references
// to one another.
//
// The core idea is:
//   - [Register] creates a [Registration], the single owning capability of a
//     service. Closing it unregisters the service and drops all its state.
//   - [Registration.Handle] derives [Handle] values, weak capabilities that can
//     be copied freely. They never keep the registry alive and every operation
//     through a stale handle fails cleanly.
//   - State is stored one value per Go type per service through the generic
//     [Put], [Peek], [Poke], [Clone] and [Remove] functions.
//   - [Handle.Post] queues a request for another service and returns a
//     [Request] future. The destination drains its queue with [Handle.Take]
//     and answers with [Registry.Respond] or [Registry.Reject].
//
// Concurrency model (high level):
//   - One mutex guards the registry. Every operation holds it for its whole
//     duration and never across a suspension point.
//   - The only suspension point is [Request.Await], which waits on a wake
//     channel registered by [Request.Poll]. There is no timeout; pass a
//     context with a deadline if one is wanted.
package msgq
