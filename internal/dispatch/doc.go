// Package dispatch routes requests to services and manages their lifecycle.
//
// The Controller is built once at process start from the configured services.
// For every request it:
//   - rejects paths containing "//" with 400
//   - resolves the most specific owner through the ownership table (404 if none)
//   - runs the Basic auth gate when the service or the path asks for it
//     (401 with WWW-Authenticate: Basic realm="<service name>")
//   - calls Service.Handle and returns its response unchanged
//
// A nil response or a panic inside a service becomes a 500; nothing reaches
// the transport as an unhandled fault.
//
// Lifecycle:
//   - Start calls Initialise(all) on every enabled service before any Start
//   - a failed Start stops the services already started, in reverse order
//   - Stop stops services in reverse start order and is idempotent
package dispatch
