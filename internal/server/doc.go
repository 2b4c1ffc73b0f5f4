// Package server implements the HTTP surface for HexDrop. It wires the
// upload and download routes to the transfer service, and provides the
// operational endpoints (health, readiness, metrics), middleware, and the
// expired-transfer cleanup job used by the production binary and tests.
package server
