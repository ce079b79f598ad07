// Package api defines the shared data types for pipelines and runs
//
// This package contains the step model persisted in the graph store, the run
// report produced by a pipeline run, run events, and HTTP messages
package api
