// Package mapping keeps the association between table column names and module item names.
package mapping

import (
	"fmt"
	"slices"
	"sync"
)

// Field identifies which attribute of a mapping changed.
type Field int

const (
	FieldColumnName Field = iota
	FieldItemName
	FieldActive
)

func (f Field) String() string {
	switch f {
	case FieldColumnName:
		return "columnName"
	case FieldItemName:
		return "itemName"
	case FieldActive:
		return "active"
	}
	return "unknown"
}

// ChangeEvent is delivered to listeners after a mapping attribute changed.
// Old and New hold string names, or bools for FieldActive.
type ChangeEvent struct {
	Mapping *Mapping
	Field   Field
	Old     any
	New     any
}

// Listener receives change events from mappings it is registered on.
type Listener interface {
	MappingChanged(ev ChangeEvent)
}

// Mapping associates a column name with a module item name.
type Mapping struct {
	mu         sync.RWMutex
	columnName string
	itemName   string
	active     bool
	listeners  []Listener
}

// New creates an active mapping.
func New(columnName, itemName string) *Mapping {
	return &Mapping{
		columnName: columnName,
		itemName:   itemName,
		active:     true,
	}
}

func (m *Mapping) ColumnName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.columnName
}

func (m *Mapping) ItemName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.itemName
}

func (m *Mapping) IsActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// SetColumnName renames the column. Listeners are notified only if the name changed.
func (m *Mapping) SetColumnName(name string) {
	m.mu.Lock()
	old := m.columnName
	if old == name {
		m.mu.Unlock()
		return
	}
	m.columnName = name
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()

	notify(listeners, ChangeEvent{Mapping: m, Field: FieldColumnName, Old: old, New: name})
}

// SetItemName renames the module item. Listeners are notified only if the name changed.
func (m *Mapping) SetItemName(name string) {
	m.mu.Lock()
	old := m.itemName
	if old == name {
		m.mu.Unlock()
		return
	}
	m.itemName = name
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()

	notify(listeners, ChangeEvent{Mapping: m, Field: FieldItemName, Old: old, New: name})
}

// SetActive toggles whether row resolution may use this mapping.
func (m *Mapping) SetActive(active bool) {
	m.mu.Lock()
	old := m.active
	if old == active {
		m.mu.Unlock()
		return
	}
	m.active = active
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()

	notify(listeners, ChangeEvent{Mapping: m, Field: FieldActive, Old: old, New: active})
}

// AddListener registers l. Registering the same listener twice has no effect.
func (m *Mapping) AddListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !slices.Contains(m.listeners, l) {
		m.listeners = append(m.listeners, l)
	}
}

// RemoveListener deregisters l.
func (m *Mapping) RemoveListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = slices.DeleteFunc(m.listeners, func(x Listener) bool { return x == l })
}

func (m *Mapping) hasListener(l Listener) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Contains(m.listeners, l)
}

func (m *Mapping) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state := "active"
	if !m.active {
		state = "inactive"
	}
	return fmt.Sprintf("%s -> %s (%s)", m.columnName, m.itemName, state)
}

func notify(listeners []Listener, ev ChangeEvent) {
	for _, l := range listeners {
		l.MappingChanged(ev)
	}
}
