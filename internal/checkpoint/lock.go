package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const lockOwnerFile = "owner.json"

// ErrLocked reports that another process holds the lock for a checkpoint.
var ErrLocked = errors.New("checkpoint is locked")

// Lock guards one checkpoint path against concurrent runs. It is a plain
// mkdir lock beside the checkpoint file; holding it across processes on one
// machine is the whole contract.
type Lock struct {
	lockDir string
}

type lockOwner struct {
	PID       int    `json:"pid"`
	RunID     string `json:"run_id,omitempty"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
}

func lockDirFor(checkpointPath string) string {
	return checkpointPath + ".lock"
}

func AcquireLock(checkpointPath, runID string) (Lock, error) {
	target := strings.TrimSpace(checkpointPath)
	if target == "" {
		return Lock{}, fmt.Errorf("checkpoint path is required")
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return Lock{}, fmt.Errorf("create parent for %s: %w", target, err)
	}

	lockDir := lockDirFor(target)
	if err := os.Mkdir(lockDir, 0o755); err != nil {
		if os.IsExist(err) {
			ownerPath := filepath.Join(lockDir, lockOwnerFile)
			var owner lockOwner
			if readErr := readJSON(ownerPath, &owner); readErr == nil && owner.PID > 0 && owner.CreatedAt != "" {
				return Lock{}, fmt.Errorf(
					"%w: %s (pid=%d run=%s created_at=%s host=%s)",
					ErrLocked, target, owner.PID, owner.RunID, owner.CreatedAt, owner.Hostname,
				)
			}
			return Lock{}, fmt.Errorf("%w: %s", ErrLocked, target)
		}
		return Lock{}, fmt.Errorf("acquire checkpoint lock for %s: %w", target, err)
	}

	owner := lockOwner{
		PID:       os.Getpid(),
		RunID:     runID,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
	}
	data, err := json.MarshalIndent(owner, "", "  ")
	if err != nil {
		_ = os.Remove(lockDir)
		return Lock{}, fmt.Errorf("marshal lock owner for %s: %w", target, err)
	}
	data = append(data, '\n')
	ownerPath := filepath.Join(lockDir, lockOwnerFile)
	if err := os.WriteFile(ownerPath, data, 0o644); err != nil {
		_ = os.Remove(lockDir)
		return Lock{}, fmt.Errorf("write lock owner for %s: %w", target, err)
	}

	return Lock{lockDir: lockDir}, nil
}

func (l Lock) Release() error {
	if strings.TrimSpace(l.lockDir) == "" {
		return nil
	}
	_ = os.Remove(filepath.Join(l.lockDir, lockOwnerFile))
	if err := os.Remove(l.lockDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release checkpoint lock %s: %w", l.lockDir, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse JSON %s: %w", path, err)
	}
	return nil
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}
