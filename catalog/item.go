package catalog

type itemKind uint8

const (
	kindNone itemKind = iota
	kindUnit
	kindUpgrade
)

// Item is either a unit type or an upgrade. The zero value is neither.
type Item struct {
	kind itemKind
	id   int
}

func UnitItem(id UnitTypeID) Item   { return Item{kind: kindUnit, id: int(id)} }
func UpgradeItem(id UpgradeID) Item { return Item{kind: kindUpgrade, id: int(id)} }

func (i Item) Unit() (UnitTypeID, bool) {
	if i.kind != kindUnit {
		return NoUnit, false
	}
	return UnitTypeID(i.id), true
}

func (i Item) Upgrade() (UpgradeID, bool) {
	if i.kind != kindUpgrade {
		return NoUpgrade, false
	}
	return UpgradeID(i.id), true
}

func (i Item) IsUnit() bool    { return i.kind == kindUnit }
func (i Item) IsUpgrade() bool { return i.kind == kindUpgrade }
func (i Item) IsZero() bool    { return i.kind == kindNone }

// Key packs the item into an int usable as a map key or hash input.
func (i Item) Key() int { return int(i.kind)<<24 | i.id }
