// Package server implements the HTTP API for relay
//
// This package provides REST endpoints for building, running and deleting
// pipelines, reading archived run reports, health checks, and a WebSocket
// stream of run events
package server
