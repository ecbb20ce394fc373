// Package server implements the HTTP and WebSocket transport of AniConnect.
//
// The hub owns the live connections and implements dispatch.Transport; each
// client's read pump feeds frames to the dispatcher, and the write pump
// drains its buffered queue. The package also exposes the read-only query
// endpoints and holds the process-wide configuration used for origin checks.
package server
