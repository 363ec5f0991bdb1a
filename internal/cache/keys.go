package cache

import (
	"fmt"
	"strings"
	"time"
)

const TaskTTL = 24 * time.Hour

// TaskKey generates Redis key for an A2A task
func TaskKey(id string) string {
	return fmt.Sprintf("a2a:task:%s", id)
}

// GetTTL returns the appropriate TTL for a given key
func GetTTL(key string) time.Duration {
	switch {
	case strings.HasPrefix(key, "a2a:task:"):
		return TaskTTL
	default:
		return 5 * time.Minute
	}
}
