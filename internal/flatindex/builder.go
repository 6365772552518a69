package flatindex

// Builder is a growable open-addressed index.  It is used for a single
// compilation pass and is not safe for concurrent use.
type Builder[K Key, V any] struct {
	keys   []K
	values []V

	// occupied is the number of non-empty slots.
	occupied int
}

// type check
var _ slotKeys[uint32] = (*Builder[uint32, struct{}])(nil)

// NewBuilder returns a builder with room for at least capacityHint slots.
// The capacity is rounded up to a power of two.
func NewBuilder[K Key, V any](capacityHint int) (b *Builder[K, V]) {
	capacity := 1
	for capacity < capacityHint {
		capacity <<= 1
	}

	return &Builder[K, V]{
		keys:   make([]K, capacity),
		values: make([]V, capacity),
	}
}

// Len implements the slotKeys interface for *Builder.  It returns the
// capacity, see [Builder.Occupied] for the number of entries.
func (b *Builder[K, V]) Len() (n int) {
	return len(b.keys)
}

// KeyAt implements the slotKeys interface for *Builder.
func (b *Builder[K, V]) KeyAt(i int) (k K) {
	return b.keys[i]
}

// Occupied returns the number of occupied slots.
func (b *Builder[K, V]) Occupied() (n int) {
	return b.occupied
}

// Insert stores v under k.  If allowDuplicates is false and k is already
// present, its value is overwritten.  Otherwise a new slot is taken, so a key
// may occupy several slots.  k must not be zero.
func (b *Builder[K, V]) Insert(k K, v V, allowDuplicates bool) {
	if k == 0 {
		panic(errSentinelKey)
	}

	i, found := probe[K](b, k, !allowDuplicates)
	b.values[i] = v
	if found {
		return
	}

	b.keys[i] = k
	b.occupied++
	b.growIfNeeded()
}

// Get returns the value stored under k without inserting it.  If k occupies
// several slots, the value of the first one in the probe sequence is returned.
func (b *Builder[K, V]) Get(k K) (v V, ok bool) {
	if k == 0 {
		return v, false
	}

	i, found := probe[K](b, k, true)
	if !found {
		return v, false
	}

	return b.values[i], true
}

// GetOrInsert returns the value stored under k.  If there is none, it stores
// v and returns it.  Unlike [Builder.Insert], the first value written wins.
// k must not be zero.
func (b *Builder[K, V]) GetOrInsert(k K, v V) (res V) {
	if k == 0 {
		panic(errSentinelKey)
	}

	i, found := probe[K](b, k, true)
	if found {
		return b.values[i]
	}

	b.keys[i] = k
	b.values[i] = v
	b.occupied++
	b.growIfNeeded()

	return v
}

// Consume returns the slot arrays, each as long as the final capacity and
// including the empty slots.  The builder must not be used afterwards.
func (b *Builder[K, V]) Consume() (keys []K, values []V) {
	keys, values = b.keys, b.values
	b.keys, b.values, b.occupied = nil, nil, 0

	return keys, values
}

// growIfNeeded doubles the capacity once more than half of the slots are
// occupied and rehashes every entry into the new arrays.
func (b *Builder[K, V]) growIfNeeded() {
	if b.occupied*2 <= len(b.keys) {
		return
	}

	oldKeys, oldValues := b.keys, b.values
	b.keys = make([]K, len(oldKeys)*2)
	b.values = make([]V, len(oldValues)*2)

	for i, k := range oldKeys {
		if k == 0 {
			continue
		}

		// Duplicates must survive the rehash, so never stop at a matching
		// key here.
		j, _ := probe[K](b, k, false)
		b.keys[j] = k
		b.values[j] = oldValues[i]
	}
}
