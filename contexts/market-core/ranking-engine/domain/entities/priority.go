package entities

import "sort"

// HigherPriority reports whether a strictly outranks b for the same good.
// A strong reservation outranks a weak one regardless of amount; within the
// same kind the larger offer wins. Equal kind and equal amount is not
// ordered here: the caller resolves that tie with the earlier creation
// timestamp, which keeps the comparator strict and transitive.
func HigherPriority(a, b Reservation) bool {
	if a.Kind != b.Kind {
		return a.Kind == KindStrong
	}
	return a.Amount.GreaterThan(b.Amount)
}

// SortByPriority orders reservations best-first: strong before weak, larger
// amounts first, and on exact kind+amount ties the earlier submission first.
func SortByPriority(reservations []Reservation) {
	sort.Slice(reservations, func(i, j int) bool {
		a, b := reservations[i], reservations[j]
		if HigherPriority(a, b) {
			return true
		}
		if HigherPriority(b, a) {
			return false
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
