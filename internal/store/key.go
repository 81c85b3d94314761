package store

// Key is a typed handle for a store key. Values of another type written
// under the same name are ignored by its accessors.
type Key[T any] struct {
	name string
}

// NewKey returns a typed key.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the underlying store key.
func (k Key[T]) Name() string {
	return k.name
}

// Get returns the value of k and whether a value of type T is set.
func (k Key[T]) Get(s *Store) (T, bool) {
	v, ok := s.Get(k.name).(T)
	return v, ok
}

// Set writes v under k.
func (k Key[T]) Set(s *Store, v T) {
	s.Set(k.name, v)
}

// Subscribe registers fn for writes of type T to k.
func (k Key[T]) Subscribe(s *Store, fn func(T)) (unsubscribe func()) {
	if fn == nil {
		return s.Subscribe(k.name, nil)
	}
	return s.Subscribe(k.name, func(value any) {
		if v, ok := value.(T); ok {
			fn(v)
		}
	})
}
