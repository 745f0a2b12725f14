// Package ids generates identifiers for activities and data products.
package ids

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// ActivityPrefix is the prefix of every activity identifier.
const ActivityPrefix = "act_"

// Sequence hands out activity identifiers of the form act_0001, act_0002, ...
// Numbers are never reused for the lifetime of the Sequence. Past 9999 the
// number simply grows wider.
type Sequence struct {
	last atomic.Uint64
}

// NewSequence creates a Sequence whose first identifier is act_0001.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next returns the next activity identifier.
func (s *Sequence) Next() string {
	return fmt.Sprintf("%s%04d", ActivityPrefix, s.last.Add(1))
}

// Issued returns how many identifiers have been handed out.
func (s *Sequence) Issued() uint64 {
	return s.last.Load()
}

// NewProductID returns a fresh opaque product identifier.
func NewProductID() string {
	return uuid.NewString()
}

// NewProductIDs returns n distinct product identifiers.
func NewProductIDs(n int) []string {
	products := make([]string, n)
	for i := range products {
		products[i] = NewProductID()
	}
	return products
}
