package domain

// MultiMap is an insertion-ordered map from a key to a list of values.
type MultiMap[K comparable, V any] struct {
	keys   []K
	values map[K][]V
}

// NewMultiMap returns an empty multi-map.
func NewMultiMap[K comparable, V any]() *MultiMap[K, V] {
	return &MultiMap[K, V]{values: make(map[K][]V)}
}

// Append adds v to the list stored under k, creating the list when k is new.
func (m *MultiMap[K, V]) Append(k K, v V) {
	if m.values == nil {
		m.values = make(map[K][]V)
	}
	if _, ok := m.values[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.values[k] = append(m.values[k], v)
}

// Get returns the list stored under k.
func (m *MultiMap[K, V]) Get(k K) []V {
	return m.values[k]
}

// Keys returns the keys in first-insertion order.
func (m *MultiMap[K, V]) Keys() []K {
	out := make([]K, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of distinct keys.
func (m *MultiMap[K, V]) Len() int {
	return len(m.keys)
}
