package build

import (
	"fmt"
	"strings"

	"github.com/nstehr/vimy/vimy-build/catalog"
)

// Item is one production action. Boost asks for a fresh chrono boost charge
// when the item is committed.
type Item struct {
	Ref   catalog.Item
	Boost bool
}

// Order is a build order, executed front to back.
type Order []Item

// Names renders the order for logs, marking boosted items with a '*'.
func (o Order) Names(t *catalog.Table) []string {
	out := make([]string, len(o))
	for i, it := range o {
		name := t.ItemName(it.Ref)
		if it.Boost {
			name += "*"
		}
		out[i] = name
	}
	return out
}

// String is Names joined by commas.
func (o Order) String(t *catalog.Table) string {
	return strings.Join(o.Names(t), ", ")
}

// ParseOrder is the inverse of Names.
func ParseOrder(t *catalog.Table, names []string) (Order, error) {
	o := make(Order, 0, len(names))
	for _, name := range names {
		boost := strings.HasSuffix(name, "*")
		ref, err := t.ItemByName(strings.TrimSuffix(name, "*"))
		if err != nil {
			return nil, fmt.Errorf("parse order: %w", err)
		}
		o = append(o, Item{Ref: ref, Boost: boost})
	}
	return o, nil
}

// Units builds an order of plain unit items.
func Units(ids ...catalog.UnitTypeID) Order {
	o := make(Order, len(ids))
	for i, id := range ids {
		o[i] = Item{Ref: catalog.UnitItem(id)}
	}
	return o
}

// Cursor makes execution resumable across calls: Run continues from Next.
type Cursor struct {
	Order Order
	Next  int
	// LastBoost is the producer type that most recently received a new
	// chrono charge from this order.
	LastBoost catalog.UnitTypeID
}

// NewCursor starts at the beginning of o.
func NewCursor(o Order) *Cursor {
	return &Cursor{Order: o, LastBoost: catalog.NoUnit}
}

// Done reports whether every item has been committed.
func (c *Cursor) Done() bool { return c.Next >= len(c.Order) }
