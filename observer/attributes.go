package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for task-graph observability spans and metrics.
var (
	AttrTaskID       = attribute.Key("task.id")
	AttrTaskName     = attribute.Key("task.name")
	AttrTaskState    = attribute.Key("task.state")
	AttrWorkflowID   = attribute.Key("workflow.id")
	AttrWorkflowName = attribute.Key("workflow.name")
	AttrTaskError    = attribute.Key("task.error")
)
