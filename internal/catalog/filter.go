package catalog

import (
	"strings"

	"github.com/google/uuid"
)

// ProductFilter narrows product listings. The zero value lists everything.
type ProductFilter struct {
	CategoryID *uuid.UUID
	ActiveOnly bool
	Featured   *bool
}

// Hash renders the filter as a stable cache-key fragment. Equal filters must
// hash equally or list caching silently stops working.
func (f ProductFilter) Hash() string {
	var b strings.Builder

	if f.CategoryID != nil {
		b.WriteString(f.CategoryID.String())
	}
	b.WriteByte('|')

	if f.ActiveOnly {
		b.WriteString("active")
	}
	b.WriteByte('|')

	if f.Featured != nil {
		if *f.Featured {
			b.WriteString("featured")
		} else {
			b.WriteString("unfeatured")
		}
	}

	return b.String()
}
