package inference

import (
	"fmt"

	"github.com/samber/lo"
)

// Ordering is the sequence in which variables are eliminated. A valid Ordering is a permutation of
// exactly the keys referenced by a graph.
type Ordering []Key

// NaturalOrdering returns the keys in ascending key order, without duplicates.
func NaturalOrdering(keys []Key) Ordering {
	ordering := Ordering(lo.Uniq(keys))
	SortKeys(ordering)
	return ordering
}

// Positions maps every key in the ordering to its index.
func (o Ordering) Positions() map[Key]int {
	positions := make(map[Key]int, len(o))
	for i, k := range o {
		positions[k] = i
	}
	return positions
}

// Validate checks that the ordering is a permutation of required.
func (o Ordering) Validate(required []Key) error {
	missing, extra := lo.Difference(lo.Uniq(required), lo.Uniq([]Key(o)))
	duplicates := lo.FindDuplicates([]Key(o))
	if len(missing) == 0 && len(extra) == 0 && len(duplicates) == 0 {
		return nil
	}
	SortKeys(missing)
	SortKeys(extra)
	SortKeys(duplicates)
	return &OrderingMismatchError{Missing: missing, Extra: extra, Duplicates: duplicates}
}

func (o Ordering) String() string {
	return KeysString(o)
}

// OrderingMismatchError is returned when an ordering is not a permutation of the keys it is
// supposed to order.
type OrderingMismatchError struct {
	// Missing keys are required but absent from the ordering.
	Missing []Key
	// Extra keys are in the ordering but not required.
	Extra []Key
	// Duplicates appear in the ordering more than once.
	Duplicates []Key
}

func (e *OrderingMismatchError) Error() string {
	msg := "ordering mismatch:"
	if len(e.Missing) > 0 {
		msg += fmt.Sprintf(" missing %s", KeysString(e.Missing))
	}
	if len(e.Extra) > 0 {
		msg += fmt.Sprintf(" extra %s", KeysString(e.Extra))
	}
	if len(e.Duplicates) > 0 {
		msg += fmt.Sprintf(" duplicated %s", KeysString(e.Duplicates))
	}
	return msg
}
