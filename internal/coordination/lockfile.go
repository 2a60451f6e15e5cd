package coordination

import (
	"errors"
	"fmt"
	"os"
	"time"

	"mcp-remote/internal/agent/oauth"
)

// LockData is the content of {hash}_lock.json.
type LockData struct {
	PID        int       `json:"pid"`
	Port       int       `json:"port"`
	Timestamp  time.Time `json:"timestamp"`
	InstanceID string    `json:"instance_id"`
}

// Age returns how long ago the lock was written.
func (l *LockData) Age(now time.Time) time.Duration {
	return now.Sub(l.Timestamp)
}

// ReadLock returns the lock at path, or nil when there is none.
func ReadLock(path string) (*LockData, error) {
	var lock LockData
	if err := oauth.ReadJSON(path, &lock); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read lockfile: %w", err)
	}
	return &lock, nil
}

// WriteLock writes lock to path.
func WriteLock(path string, lock *LockData) error {
	if err := oauth.WriteJSON(path, lock); err != nil {
		return fmt.Errorf("failed to write lockfile: %w", err)
	}
	return nil
}

// RemoveLock deletes the lock at path when it still carries instanceID.
func RemoveLock(path, instanceID string) error {
	lock, err := ReadLock(path)
	if err != nil || lock == nil {
		return err
	}
	if lock.InstanceID != instanceID {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove lockfile: %w", err)
	}
	return nil
}
