// Package dedupe collapses concurrent requests for the same key into a
// single in-flight call. All waiters observe the same outcome, success
// or failure, and the in-flight marker is cleared on completion so the
// next call starts fresh.
package dedupe

import "golang.org/x/sync/singleflight"

// Group deduplicates calls by key. The zero value is ready to use.
type Group[T any] struct {
	sf singleflight.Group
}

// Do invokes fn for key unless a call for the same key is already in
// flight, in which case it waits for that call's result. Reentrancy
// across distinct keys is safe; fn for one key may call Do for another.
func (g *Group[T]) Do(key string, fn func() (T, error)) (T, error) {
	v, err, _ := g.sf.Do(key, func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	result, _ := v.(T)
	return result, nil
}

// Forget drops the in-flight marker for key, so the next Do call
// triggers a fresh fetch even if an earlier one is still running.
func (g *Group[T]) Forget(key string) {
	g.sf.Forget(key)
}
