// -----------------------------------------------------------------------
// Spec store - a read-through cache over a directory of YAML spec
// documents, one file per request name. Grounded on the teacher's
// config-service accessor-over-loaded-struct pattern, adapted here into a
// caching loader since specs are read from disk on demand rather than
// parsed once at startup.
// -----------------------------------------------------------------------

package specstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/workqueue/internal/models"
	"gopkg.in/yaml.v3"
)

// Store loads and caches spec documents from a directory of
// <request_name>.yaml files. Safe for concurrent use.
type Store struct {
	dir    string
	logger arbor.ILogger

	mu    sync.RWMutex
	cache map[string]*models.Spec
}

// New returns a Store reading spec documents from dir.
func New(dir string, logger arbor.ILogger) *Store {
	return &Store{dir: dir, logger: logger, cache: make(map[string]*models.Spec)}
}

// Load returns the parsed spec for requestName, reading it from disk on
// first access and serving every subsequent call from cache. Implements
// queue.SpecLoader.
func (s *Store) Load(ctx context.Context, requestName string) (*models.Spec, error) {
	s.mu.RLock()
	if spec, ok := s.cache[requestName]; ok {
		s.mu.RUnlock()
		return spec, nil
	}
	s.mu.RUnlock()

	spec, err := s.readFromDisk(requestName)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[requestName] = spec
	s.mu.Unlock()
	return spec, nil
}

// Invalidate drops requestName from the cache, forcing the next Load to
// re-read it from disk. Used by operators replacing a spec document on a
// running queue.
func (s *Store) Invalidate(requestName string) {
	s.mu.Lock()
	delete(s.cache, requestName)
	s.mu.Unlock()
}

func (s *Store) readFromDisk(requestName string) (*models.Spec, error) {
	path := filepath.Join(s.dir, requestName+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("specstore: failed to read %s: %w", path, err)
	}

	var spec models.Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("specstore: failed to parse %s: %w", path, err)
	}

	if s.logger != nil {
		s.logger.Debug().Str("request_name", requestName).Str("path", path).Msg("loaded spec document")
	}
	return &spec, nil
}
