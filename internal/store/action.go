package store

// ActionPrefix marks action keys.
const ActionPrefix = "%"

// ActionKey returns the store key for an action name.
func ActionKey(name string) string {
	return ActionPrefix + name
}

// Trigger records that action name happened. The stored value is payload
// when given, otherwise the current time in Unix milliseconds.
func (s *Store) Trigger(name string, payload ...any) any {
	var value any
	if len(payload) > 0 {
		value = payload[0]
	} else {
		value = s.nowFunc().UnixMilli()
	}
	return s.Set(ActionKey(name), value)
}

// ActionValue returns the last payload of action name, or nil.
func (s *Store) ActionValue(name string) any {
	return s.Get(ActionKey(name))
}

// SubscribeAction registers fn for triggers of action name.
func (s *Store) SubscribeAction(name string, fn Listener) (unsubscribe func()) {
	return s.Subscribe(ActionKey(name), fn)
}
