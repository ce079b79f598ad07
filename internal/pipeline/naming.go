package pipeline

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Namer derives a snapshot graph name from a pipeline name
type Namer func(pipeline string) string

const snapshotTimeFormat = "20060102T150405.000000Z"

// DefaultNamer appends a UTC timestamp and a random suffix to the pipeline
// name, so two clones requested within the same instant still differ
func DefaultNamer(pipeline string) string {
	ts := time.Now().UTC().Format(snapshotTimeFormat)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return pipeline + "_" + ts + "_" + suffix
}
