// Package inference holds the identifiers shared by every layer of the solver: variable keys and
// elimination orderings.
package inference

import (
	"fmt"
	"slices"
	"strings"
)

const (
	chrBits   = 8
	indexBits = 64 - chrBits
	indexMask = uint64(1)<<indexBits - 1
)

// Key identifies one variable. A Key built with Symbol encodes a character and an index, so keys
// sort by character first and then by index.
type Key uint64

// Symbol returns the key for character chr and index idx, e.g. Symbol('x', 1) is "x1".
// The index is truncated to 56 bits.
func Symbol(chr byte, idx uint64) Key {
	return Key(uint64(chr)<<indexBits | idx&indexMask)
}

// Chr returns the character part of the key.
func (k Key) Chr() byte {
	return byte(uint64(k) >> indexBits)
}

// Index returns the index part of the key.
func (k Key) Index() uint64 {
	return uint64(k) & indexMask
}

func (k Key) String() string {
	if chr := k.Chr(); chr != 0 {
		return fmt.Sprintf("%c%d", chr, k.Index())
	}
	return fmt.Sprintf("%d", k.Index())
}

// SortKeys sorts keys in place by their encoded value.
func SortKeys(keys []Key) {
	slices.Sort(keys)
}

// KeysString joins keys as "{x1, l2}".
func KeysString(keys []Key) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
