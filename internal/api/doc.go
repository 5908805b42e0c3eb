// Package api hosts the MCP tools over HTTP: the streamable MCP endpoint,
// a liveness probe and the Prometheus exposition endpoint.
package api
