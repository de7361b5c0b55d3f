package mapping

import (
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Separator joins column and item names in the persisted form.
const Separator = "\n"

// Service is the registry of column to module item mappings. It keeps one
// index by column name and one by item name, and listens to every mapping
// it holds so that renames re-index under the new key.
//
// At most one mapping exists per column name and per item name. Adding or
// renaming a mapping onto a key held by another mapping evicts the other one.
type Service struct {
	mu       sync.RWMutex
	mappings []*Mapping
	byColumn map[string]*Mapping
	byItem   map[string]*Mapping
	logger   *zap.Logger
}

// NewService creates an empty mapping service.
func NewService(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		byColumn: make(map[string]*Mapping),
		byItem:   make(map[string]*Mapping),
		logger:   logger,
	}
}

// AddMapping creates and registers an active mapping.
func (s *Service) AddMapping(columnName, itemName string) *Mapping {
	m := New(columnName, itemName)

	s.mu.Lock()
	evicted := s.evictConflictsLocked(m, columnName, itemName)
	s.mappings = append(s.mappings, m)
	s.byColumn[columnName] = m
	s.byItem[itemName] = m
	s.mu.Unlock()

	m.AddListener(s)
	s.evicted(evicted)
	return m
}

// GetMappingForColumnName returns the mapping whose column name is name.
func (s *Service) GetMappingForColumnName(name string) (*Mapping, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byColumn[name]
	return m, ok
}

// GetMappingForModuleItemName returns the mapping whose item name is name.
func (s *Service) GetMappingForModuleItemName(name string) (*Mapping, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byItem[name]
	return m, ok
}

// RemoveMapping removes m from the list and both indices. It returns nil if m was not registered.
func (s *Service) RemoveMapping(m *Mapping) *Mapping {
	if m == nil {
		return nil
	}
	s.mu.Lock()
	removed := s.removeLocked(m)
	s.mu.Unlock()

	if !removed {
		return nil
	}
	m.RemoveListener(s)
	return m
}

// Mappings returns the registered mappings in insertion order.
func (s *Service) Mappings() []*Mapping {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.mappings)
}

// Len returns the number of registered mappings.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.mappings)
}

// Clear removes every mapping.
func (s *Service) Clear() {
	s.mu.Lock()
	old := s.mappings
	s.mappings = nil
	clear(s.byColumn)
	clear(s.byItem)
	s.mu.Unlock()

	s.detach(old)
}

// MappingChanged re-indexes a mapping after a rename.
func (s *Service) MappingChanged(ev ChangeEvent) {
	if ev.Field == FieldActive {
		s.logger.Debug("mapping active flag changed",
			zap.String("column", ev.Mapping.ColumnName()),
			zap.Bool("active", ev.New.(bool)))
		return
	}

	oldKey, _ := ev.Old.(string)
	newKey, _ := ev.New.(string)

	s.mu.Lock()
	if !slices.Contains(s.mappings, ev.Mapping) {
		s.mu.Unlock()
		return
	}

	index := s.byColumn
	if ev.Field == FieldItemName {
		index = s.byItem
	}
	if index[oldKey] == ev.Mapping {
		delete(index, oldKey)
	}
	var evicted []*Mapping
	if other, ok := index[newKey]; ok && other != ev.Mapping {
		s.removeLocked(other)
		evicted = append(evicted, other)
	}
	index[newKey] = ev.Mapping
	s.mu.Unlock()

	s.evicted(evicted)
}

// Serialize returns the mappings as "column\nitem" strings.
func (s *Service) Serialize() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.mappings))
	for _, m := range s.mappings {
		out = append(out, m.ColumnName()+Separator+m.ItemName())
	}
	return out
}

// Deserialize replaces the current mappings with the persisted ones. Every
// loaded mapping is active. It returns false if any entry did not split into
// exactly a column and an item name; the well-formed entries are still loaded.
func (s *Service) Deserialize(entries []string) bool {
	s.Clear()
	ok := true
	for _, entry := range entries {
		parts := strings.Split(entry, Separator)
		if len(parts) != 2 {
			s.logger.Warn("skipping malformed mapping entry", zap.String("entry", entry))
			ok = false
			continue
		}
		s.AddMapping(parts[0], parts[1])
	}
	return ok
}

func (s *Service) evictConflictsLocked(m *Mapping, columnName, itemName string) []*Mapping {
	var evicted []*Mapping
	if other, ok := s.byColumn[columnName]; ok && other != m {
		s.removeLocked(other)
		evicted = append(evicted, other)
	}
	if other, ok := s.byItem[itemName]; ok && other != m {
		s.removeLocked(other)
		evicted = append(evicted, other)
	}
	return evicted
}

func (s *Service) removeLocked(m *Mapping) bool {
	i := slices.Index(s.mappings, m)
	if i < 0 {
		return false
	}
	s.mappings = slices.Delete(s.mappings, i, i+1)
	for k, v := range s.byColumn {
		if v == m {
			delete(s.byColumn, k)
		}
	}
	for k, v := range s.byItem {
		if v == m {
			delete(s.byItem, k)
		}
	}
	return true
}

func (s *Service) detach(mappings []*Mapping) {
	for _, m := range mappings {
		m.RemoveListener(s)
	}
}

func (s *Service) evicted(mappings []*Mapping) {
	s.detach(mappings)
	for _, m := range mappings {
		s.logger.Warn("mapping evicted by a newer mapping on the same name", zap.String("mapping", m.String()))
	}
}
