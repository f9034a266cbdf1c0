package api

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/solatis/listingkeeper/internal/types"
)

// AuditLog mirrors execution logs to daily JSONL files under
// <data_dir>/audit/YYYY-MM-DD.jsonl. The database remains the source of
// truth; the mirror is a best-effort debugging aid.
type AuditLog struct {
	dir       string
	mutexes   map[string]*sync.Mutex
	mutexLock sync.Mutex
}

// NewAuditLog creates the audit directory under dataDir if needed.
func NewAuditLog(dataDir string) (*AuditLog, error) {
	dir := filepath.Join(dataDir, "audit")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	return &AuditLog{dir: dir, mutexes: make(map[string]*sync.Mutex)}, nil
}

// Path returns the file logs written at t are appended to.
func (a *AuditLog) Path(t time.Time) string {
	return filepath.Join(a.dir, t.UTC().Format("2006-01-02")+".jsonl")
}

// fileMutex returns mutex for given filename, creating if not exists.
// Map grows by one entry per day.
func (a *AuditLog) fileMutex(filename string) *sync.Mutex {
	a.mutexLock.Lock()
	defer a.mutexLock.Unlock()

	if _, ok := a.mutexes[filename]; !ok {
		a.mutexes[filename] = &sync.Mutex{}
	}
	return a.mutexes[filename]
}

// Append writes one JSON line per entry to the file for at. All entries of
// one call land in the same file even if the call spans midnight.
func (a *AuditLog) Append(at time.Time, logs []types.LogEntry) error {
	if len(logs) == 0 {
		return nil
	}

	filename := a.Path(at)
	mu := a.fileMutex(filename)
	mu.Lock()
	defer mu.Unlock()

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	for i := range logs {
		if err := encoder.Encode(&logs[i]); err != nil {
			return err
		}
	}
	return nil
}
