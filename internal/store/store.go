package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"sync"

	"github.com/arduino/go-paths-helper"
	"github.com/google/uuid"
)

const runsFile = "runs.json"

// Store keeps the history of runs as JSON under <root>/history.
type Store struct {
	root *paths.Path
	mu   sync.Mutex
}

// New creates a Store rooted at the given directory (typically .flashwatch/).
func New(root string) *Store {
	return &Store{root: paths.New(root)}
}

func (s *Store) historyDir() *paths.Path {
	return s.root.Join("history")
}

// AddRun appends a run record, assigning an ID if it has none. It returns
// the record's ID.
func (s *Store) AddRun(r RunRecord) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return r.ID, s.appendRecord(runsFile, r)
}

// Runs returns all run records, oldest first.
func (s *Store) Runs() ([]RunRecord, error) {
	var records []RunRecord
	err := s.loadRecords(runsFile, &records)
	return records, err
}

// LastRuns returns at most n of the most recent run records, oldest first.
func (s *Store) LastRuns(n int) ([]RunRecord, error) {
	records, err := s.Runs()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(records) > n {
		records = records[len(records)-n:]
	}
	return records, nil
}

func (s *Store) appendRecord(filename string, record any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.historyDir()
	if err := dir.MkdirAll(); err != nil {
		return err
	}

	path := dir.Join(filename)

	// Read existing records
	var records []json.RawMessage
	if data, err := path.ReadFile(); err == nil {
		json.Unmarshal(data, &records)
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	records = append(records, raw)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return path.WriteFile(data)
}

func (s *Store) loadRecords(filename string, dest any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.historyDir().Join(filename).ReadFile()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, dest)
}
