package storage

// Pending returns the items whose completion marker is absent, preserving order.
// Completion is presence only: done is asked about each item's key and nothing else
// about the artifact is inspected.
func Pending[T any](items []T, key func(T) string, done func(string) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if done(key(item)) {
			continue
		}
		out = append(out, item)
	}
	return out
}
