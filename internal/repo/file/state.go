package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hamed0406/apihealth/internal/domain"
	"github.com/hamed0406/apihealth/internal/repo"
)

var _ repo.StateStore = (*StateFile)(nil)

// StateFile keeps all records in one JSON document keyed by endpoint id.
// Every Put rewrites the file through a temp file and rename.
type StateFile struct {
	mu   sync.Mutex
	path string
	rows map[string]repo.StateRow
}

func NewStateFile(path string) (*StateFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}
	s := &StateFile{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *StateFile) Get(ctx context.Context, endpointID string) (*domain.HealthRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[endpointID]
	if !ok {
		return nil, nil
	}
	return row.Record()
}

func (s *StateFile) Put(ctx context.Context, rec *domain.HealthRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.rows[rec.EndpointID]
	s.rows[rec.EndpointID] = repo.NewStateRow(rec)
	if err := s.persist(); err != nil {
		if had {
			s.rows[rec.EndpointID] = prev
		} else {
			delete(s.rows, rec.EndpointID)
		}
		return err
	}
	return nil
}

func (s *StateFile) load() error {
	s.rows = make(map[string]repo.StateRow)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read state file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &s.rows); err != nil {
		return fmt.Errorf("parse state file: %w", err)
	}
	return nil
}

func (s *StateFile) persist() error {
	bytes, err := json.MarshalIndent(s.rows, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, bytes, 0o644); err != nil {
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
