// Package pipeline builds linear pipelines of shell-command steps and runs
// them.
//
// A Pipeline is a handle to one named graph. Running a pipeline never
// touches its definition: Run clones the graph into a snapshot, locates the
// single entry step and follows NEXT edges, recording each step's output and
// exit code on the snapshot only.
package pipeline
