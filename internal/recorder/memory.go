package recorder

import (
	"context"
	"sync"
)

// MemorySink keeps written tables in memory. Useful for tests and for runs
// that only need the summary.
type MemorySink struct {
	mu     sync.Mutex
	tables map[string]Table
	Err    error // returned by Write when set
}

func NewMemorySink() *MemorySink {
	return &MemorySink{tables: make(map[string]Table)}
}

func (m *MemorySink) Name() string { return "memory" }

func (m *MemorySink) Write(_ context.Context, table Table, mode WriteMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	existing, ok := m.tables[table.Name]
	if ok && mode == Append {
		existing.Rows = append(existing.Rows, table.Rows...)
		m.tables[table.Name] = existing
		return nil
	}
	rows := make([][]any, len(table.Rows))
	copy(rows, table.Rows)
	table.Rows = rows
	m.tables[table.Name] = table
	return nil
}

// Table returns a stored table.
func (m *MemorySink) Table(name string) (Table, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[name]
	return t, ok
}

func (m *MemorySink) Close() error { return nil }
