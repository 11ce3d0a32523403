package store

import "sort"

type row[V any] struct {
	seq int
	v   V
}

// table keeps rows in insertion order and hands out clones so callers never
// alias stored state.
type table[K comparable, V any] struct {
	rows  map[K]row[V]
	next  int
	clone func(V) V
}

func newTable[K comparable, V any](clone func(V) V) *table[K, V] {
	return &table[K, V]{rows: make(map[K]row[V]), clone: clone}
}

func (t *table[K, V]) has(k K) bool {
	_, ok := t.rows[k]
	return ok
}

func (t *table[K, V]) get(k K) (V, bool) {
	r, ok := t.rows[k]
	if !ok {
		var zero V
		return zero, false
	}
	return t.clone(r.v), true
}

func (t *table[K, V]) insert(k K, v V) {
	t.next++
	t.rows[k] = row[V]{seq: t.next, v: t.clone(v)}
}

func (t *table[K, V]) replace(k K, v V) {
	r := t.rows[k]
	r.v = t.clone(v)
	t.rows[k] = r
}

func (t *table[K, V]) list(keep func(V) bool) []V {
	rows := make([]row[V], 0, len(t.rows))
	for _, r := range t.rows {
		if keep == nil || keep(r.v) {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	out := make([]V, len(rows))
	for i, r := range rows {
		out[i] = t.clone(r.v)
	}
	return out
}

func (t *table[K, V]) count(keep func(V) bool) int {
	n := 0
	for _, r := range t.rows {
		if keep(r.v) {
			n++
		}
	}
	return n
}

func (t *table[K, V]) snapshot() *table[K, V] {
	cp := &table[K, V]{rows: make(map[K]row[V], len(t.rows)), next: t.next, clone: t.clone}
	for k, r := range t.rows {
		cp.rows[k] = row[V]{seq: r.seq, v: t.clone(r.v)}
	}
	return cp
}
