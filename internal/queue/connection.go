// -----------------------------------------------------------------------
// Badger connection - opens the on-disk document store the backend store
// and activity log are layered on top of.
// -----------------------------------------------------------------------

package queue

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// BadgerConn owns the single badgerhold.Store handle the backend store and
// activity log share.
type BadgerConn struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// OpenBadgerConn opens (creating if necessary) the badgerhold database at
// path. If resetOnStartup is set the existing database is deleted first,
// used by integration tests that want a clean queue on every run.
func OpenBadgerConn(path string, resetOnStartup bool, logger arbor.ILogger) (*BadgerConn, error) {
	if resetOnStartup {
		if _, err := os.Stat(path); err == nil {
			logger.Debug().Str("path", path).Msg("deleting existing queue store (reset_on_startup=true)")
			if err := os.RemoveAll(path); err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("failed to delete queue store directory")
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create queue store directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue store: %w", err)
	}

	logger.Debug().Str("path", path).Msg("queue store opened")
	return &BadgerConn{store: store, logger: logger}, nil
}

func (c *BadgerConn) Store() *badgerhold.Store { return c.store }

func (c *BadgerConn) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}
