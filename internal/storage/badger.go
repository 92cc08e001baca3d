package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"bendgen/internal/model"
)

// Key layout:
//
//	run/<id>
//	pop/<run>/<generation, zero padded>
//	diag/<run>
//	lineage/<run>
const (
	runPrefix     = "run/"
	popPrefix     = "pop/"
	diagPrefix    = "diag/"
	lineagePrefix = "lineage/"
)

// BadgerStore keeps records in an embedded badger database. An empty path
// opens an in-memory instance.
type BadgerStore struct {
	path string

	mu sync.RWMutex
	db *badger.DB
}

func NewBadgerStore(path string) *BadgerStore {
	return &BadgerStore{path: path}
}

func (s *BadgerStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}
	opts := badger.DefaultOptions(s.path).WithLogger(nil)
	if s.path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("open badger store: %w", err)
	}
	s.db = db
	return nil
}

func (s *BadgerStore) SaveRun(_ context.Context, run model.RunRecord) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}
	return s.put(runPrefix+run.ID, payload)
}

func (s *BadgerStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	payload, ok, err := s.get(runPrefix + id)
	if err != nil || !ok {
		return model.RunRecord{}, ok, err
	}
	run, err := DecodeRun(payload)
	if err != nil {
		return model.RunRecord{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *BadgerStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	var runs []model.RunRecord
	err := s.scan(runPrefix, func(key string, payload []byte) error {
		run, err := DecodeRun(payload)
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		runs = append(runs, run)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRuns(runs)
	return runs, nil
}

func (s *BadgerStore) SavePopulation(_ context.Context, population model.PopulationRecord) error {
	if population.RunID == "" {
		return errors.New("population run id is required")
	}
	payload, err := EncodePopulation(population)
	if err != nil {
		return err
	}
	return s.put(populationKey(population.RunID, population.Generation), payload)
}

func (s *BadgerStore) GetPopulation(_ context.Context, runID string, generation int) (model.PopulationRecord, bool, error) {
	payload, ok, err := s.get(populationKey(runID, generation))
	if err != nil || !ok {
		return model.PopulationRecord{}, ok, err
	}
	population, err := DecodePopulation(payload)
	if err != nil {
		return model.PopulationRecord{}, false, fmt.Errorf("decode population %s/%d: %w", runID, generation, err)
	}
	return population, true, nil
}

// ListPopulations relies on the zero-padded generation suffix for key order.
func (s *BadgerStore) ListPopulations(_ context.Context, runID string) ([]model.PopulationRecord, error) {
	var populations []model.PopulationRecord
	err := s.scan(popPrefix+runID+"/", func(key string, payload []byte) error {
		population, err := DecodePopulation(payload)
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		populations = append(populations, population)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return populations, nil
}

func (s *BadgerStore) SaveGenerationDiagnostics(_ context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	payload, err := EncodeGenerationDiagnostics(diagnostics)
	if err != nil {
		return err
	}
	return s.put(diagPrefix+runID, payload)
}

func (s *BadgerStore) GetGenerationDiagnostics(_ context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	payload, ok, err := s.get(diagPrefix + runID)
	if err != nil || !ok {
		return nil, ok, err
	}
	diagnostics, err := DecodeGenerationDiagnostics(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode diagnostics %s: %w", runID, err)
	}
	return diagnostics, true, nil
}

func (s *BadgerStore) SaveLineage(_ context.Context, runID string, lineage []model.LineageRecord) error {
	payload, err := EncodeLineage(lineage)
	if err != nil {
		return err
	}
	return s.put(lineagePrefix+runID, payload)
}

func (s *BadgerStore) GetLineage(_ context.Context, runID string) ([]model.LineageRecord, bool, error) {
	payload, ok, err := s.get(lineagePrefix + runID)
	if err != nil || !ok {
		return nil, ok, err
	}
	lineage, err := DecodeLineage(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode lineage %s: %w", runID, err)
	}
	return lineage, true, nil
}

func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *BadgerStore) getDB() (*badger.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func (s *BadgerStore) put(key string, value []byte) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (s *BadgerStore) get(key string) ([]byte, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return payload, true, nil
}

func (s *BadgerStore) scan(prefix string, fn func(key string, payload []byte) error) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if err := item.Value(func(val []byte) error {
				return fn(key, val)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func populationKey(runID string, generation int) string {
	return fmt.Sprintf("%s%s/%06d", popPrefix, runID, generation)
}
