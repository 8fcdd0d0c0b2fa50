// Package core provides the client-side logic for ingesting tables into the
// table retrieval backend and viewing cited table windows.
//
// This package holds the domain logic independent of any UI or transport
// layer. The viewer server, the terminal client and tests all use it through
// the [Backend] interface.
//
// # Architecture
//
//   - Job Poller: [JobPoller] drives one ingestion job through
//     Idle, Submitted, Polling and a terminal state, one status call per step.
//   - Highlight Projector: [Projector] turns a [Citation] into a row window
//     with context rows and maps the returned slice back onto the cited cells.
//   - Upload Orchestrator: [Orchestrator] submits a file, polls its job on a
//     fixed interval and loads the table list and a preview on success.
//   - Service: [Service] wraps all of the above with background upload
//     sessions, progress fan-out and an optional history store.
//
// # Staleness
//
// Every poller start and every session cancel advances a [Generation].
// Results of a call issued under an older token are discarded, so a slow
// response can never overwrite state for a newer job.
//
// # Projection Window
//
// For cited rows r_min..r_max and padding p the fetched window is
//
//	[max(0, r_min - p), r_max + p + 1)
//
// and a displayed row at local index i maps back to absolute row From+i.
//
// # Error Handling
//
// Backend failures are classified into a [Kind] carried by [*Error]. Only
// transient and timeout failures are retried while polling, up to a bounded
// number of consecutive failures. [MapError] turns any error into a short
// user message with a support code.
package core
