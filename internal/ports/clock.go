// Package ports defines interfaces for external dependencies (Ports and Adapters pattern).
package ports

import "time"

// Clock abstracts the wall clock so recordings can be timestamped
// deterministically in tests.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}
