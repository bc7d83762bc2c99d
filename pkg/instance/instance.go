package instance

import (
	"os"
	"sync"

	"github.com/google/uuid"
)

var (
	fallbackOnce sync.Once
	fallbackID   string
)

// GetID returns the process instance identifier used to tag lock ownership.
// GROUPBUY_INSTANCE_ID wins, then the host name, then a random id fixed for the process lifetime.
func GetID() string {
	if id := os.Getenv("GROUPBUY_INSTANCE_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	fallbackOnce.Do(func() {
		fallbackID = "instance-" + uuid.NewString()
	})
	return fallbackID
}
