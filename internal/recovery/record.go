package recovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrNoRecord reports that no failure has been persisted.
var ErrNoRecord = errors.New("recovery: no failure recorded")

// Record is the persisted snapshot of the most recent command failure. It is
// what `diagnose` replays after the failing process has exited.
type Record struct {
	Command   string    `json:"command"`
	ExitCode  int       `json:"exit_code"`
	Stdout    string    `json:"stdout"`
	Stderr    string    `json:"stderr"`
	Timestamp time.Time `json:"timestamp"`
}

const recordFileName = "last-error"

// RecordStore persists a single Record as flat key-value text, one field per
// line with Go-quoted values so embedded newlines round-trip byte for byte.
// The slot is last-write-wins: a new failure simply replaces the old one,
// and concurrent writers are unsupported.
type RecordStore struct {
	path string
}

// NewRecordStore keeps the record under dir.
func NewRecordStore(dir string) *RecordStore {
	return &RecordStore{path: filepath.Join(dir, recordFileName)}
}

// Path returns the record file location.
func (s *RecordStore) Path() string {
	return s.path
}

// Save overwrites the persisted record.
func (s *RecordStore) Save(r *Record) error {
	var b strings.Builder
	fmt.Fprintf(&b, "command=%s\n", strconv.Quote(r.Command))
	fmt.Fprintf(&b, "exit_code=%d\n", r.ExitCode)
	fmt.Fprintf(&b, "stdout=%s\n", strconv.Quote(r.Stdout))
	fmt.Fprintf(&b, "stderr=%s\n", strconv.Quote(r.Stderr))
	fmt.Fprintf(&b, "timestamp=%s\n", strconv.Quote(r.Timestamp.Format(time.RFC3339Nano)))

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("recovery: creating state dir: %w", err)
	}
	// Write-then-rename so a crash never leaves a half-written record.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("recovery: writing record: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("recovery: replacing record: %w", err)
	}
	return nil
}

// Load reads the persisted record. A missing file is ErrNoRecord.
func (s *RecordStore) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoRecord
		}
		return nil, fmt.Errorf("recovery: reading record: %w", err)
	}

	rec := &Record{}
	seen := make(map[string]bool, 5)
	for ln, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		key, raw, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("recovery: record line %d: no key", ln+1)
		}
		seen[key] = true
		switch key {
		case "command", "stdout", "stderr", "timestamp":
			value, err := strconv.Unquote(raw)
			if err != nil {
				return nil, fmt.Errorf("recovery: record field %s: %w", key, err)
			}
			switch key {
			case "command":
				rec.Command = value
			case "stdout":
				rec.Stdout = value
			case "stderr":
				rec.Stderr = value
			case "timestamp":
				ts, err := time.Parse(time.RFC3339Nano, value)
				if err != nil {
					return nil, fmt.Errorf("recovery: record timestamp: %w", err)
				}
				rec.Timestamp = ts
			}
		case "exit_code":
			code, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("recovery: record exit_code: %w", err)
			}
			rec.ExitCode = code
		default:
			return nil, fmt.Errorf("recovery: record line %d: unknown key %q", ln+1, key)
		}
	}
	for _, key := range []string{"command", "exit_code", "stdout", "stderr", "timestamp"} {
		if !seen[key] {
			return nil, fmt.Errorf("recovery: record missing field %s", key)
		}
	}
	return rec, nil
}

// Clear removes the persisted record. Clearing an absent record is a no-op.
func (s *RecordStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("recovery: clearing record: %w", err)
	}
	return nil
}
