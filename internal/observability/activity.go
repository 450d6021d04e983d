package observability

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ActivityLog appends one line per notable event to an on-disk log, in the
// format "{timestamp} - {action}". It is a product artifact with a mandated
// format, separate from structured application logging.
type ActivityLog struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewActivityLog creates the log at the given path, creating parent
// directories as needed.
func NewActivityLog(path string) (*ActivityLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create activity log dir: %w", err)
		}
	}
	return &ActivityLog{path: path, now: time.Now}, nil
}

// Record appends a single action line. Failures are returned so callers can
// log them; the log itself never aborts a pipeline.
func (a *ActivityLog) Record(action string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "%s - %s\n", a.now().Format(time.RFC3339), action)
	return err
}

// Recordf formats and appends an action line.
func (a *ActivityLog) Recordf(format string, args ...any) error {
	return a.Record(fmt.Sprintf(format, args...))
}
