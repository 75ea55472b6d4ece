package mcpapi

import "github.com/hylla/tavla/internal/domain"

// taskIDs issues ids for tasks created through MCP without an explicit id.
var taskIDs = domain.NewTaskIDSource(nil)

func nextTaskID() int64 {
	return taskIDs.Next()
}
