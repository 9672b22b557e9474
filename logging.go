package taskgraph

import (
	"io"
	"log/slog"
)

// nopLogger discards everything. It is the default logger for a Task,
// Workflow, or WorkerPool that isn't given one explicitly via WithTaskLogger,
// WithWorkflowLogger, or WithPoolLogger.
var nopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
