// Package reconcile holds the pure merge functions every list-owning view
// uses to fold a REST snapshot or a single pushed event into its current
// ordered list. All functions return a new list and never mutate their
// input, so any number of concurrent consumers can call them on their own
// copies.
package reconcile

import (
	"github.com/YagoMoreiraDev/projeto-helpdesk/domain"
)

// KeyFunc extracts the stable identity of a list element.
type KeyFunc[T any] func(T) string

// TicketKey is the KeyFunc for tickets.
func TicketKey(t domain.Ticket) string { return t.ID }

// Upsert replaces the element sharing item's key in place, preserving its
// position; when no element matches, item is prepended. Replaying the same
// item twice yields the same list, which is what makes at-least-once
// delivery safe.
func Upsert[T any](list []T, item T, key KeyFunc[T]) []T {
	k := key(item)
	for i := range list {
		if key(list[i]) == k {
			out := make([]T, len(list))
			copy(out, list)
			out[i] = item
			return out
		}
	}
	out := make([]T, 0, len(list)+1)
	out = append(out, item)
	return append(out, list...)
}

// RemoveByKey returns a list with any element matching the key removed.
// An absent key yields a list equal in content to the input.
func RemoveByKey[T any](list []T, k string, key KeyFunc[T]) []T {
	out := make([]T, 0, len(list))
	for _, cur := range list {
		if key(cur) != k {
			out = append(out, cur)
		}
	}
	return out
}

// DedupByKey collapses a list to one element per key, first occurrence
// wins. Used when merging independently fetched snapshots that may overlap.
func DedupByKey[T any](list []T, key KeyFunc[T]) []T {
	seen := make(map[string]struct{}, len(list))
	out := make([]T, 0, len(list))
	for _, cur := range list {
		k := key(cur)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, cur)
	}
	return out
}

// ApplyEvent folds one pushed item into a filtered view's list: when the
// item still matches the view's filter it is upserted, otherwise it is
// removed because it left the view's scope. This is what keeps a filtered
// list consistent without re-fetching on every event.
func ApplyEvent[T any](list []T, item T, match func(T) bool, key KeyFunc[T]) []T {
	if match(item) {
		return Upsert(list, item, key)
	}
	return RemoveByKey(list, key(item), key)
}
