package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/trafficmeter/internal/config"
)

const badgerPrefix = "dp:"

// Badger keeps data points in an embedded badger database, one entry per
// point, ordered by timestamp. Entries expire after the retention period.
type Badger struct {
	db        *badger.DB
	retention time.Duration
}

// NewBadger opens (or creates) the database described by cfg.
func NewBadger(cfg config.BadgerSinkConf) (*Badger, error) {
	opts := badger.DefaultOptions(cfg.Dir).WithLogger(nil)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("sink.NewBadger: open %q: %w", cfg.Dir, err)
	}
	return &Badger{db: db, retention: cfg.Retention}, nil
}

func (*Badger) Name() string { return "badger" }

// dataPointKey sorts lexically by timestamp; the id keeps keys unique.
func dataPointKey(dp DataPoint) []byte {
	id := dp.ID
	if id == "" {
		id = uuid.NewString()
	}
	return []byte(fmt.Sprintf("%s%020d:%s", badgerPrefix, dp.Timestamp, id))
}

func (s *Badger) WriteDataPoint(ctx context.Context, dp DataPoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	val, err := json.Marshal(dp)
	if err != nil {
		return fmt.Errorf("marshal data point: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(dataPointKey(dp), val)
		if s.retention > 0 {
			e = e.WithTTL(s.retention)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("badger write: %w", err)
	}
	return nil
}

// Range calls fn for every stored data point in timestamp order. Corrupt
// entries are skipped; an error from fn stops the iteration.
func (s *Badger) Range(fn func(DataPoint) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var dp DataPoint
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &dp)
			})
			if err != nil {
				continue
			}
			if err := fn(dp); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Badger) Close() error {
	return s.db.Close()
}
