// Package relay runs linear shell-command pipelines whose definitions live in
// a FalkorDB graph. Every run executes against a fresh copy of the
// definition, so past runs stay inspectable while the definition evolves
package relay

const (
	// Name is the service name reported in logs
	Name = "relay"

	// Version is the release version reported in logs
	Version = "0.1.0"
)
