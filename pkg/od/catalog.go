// Package od holds the object dictionary catalog : the mapping from
// object addresses to the byte width used for expedited SDO transfers.
package od

// Well known object dictionary entries (CiA 301 / CiA 402)
const (
	EntryDeviceType          uint16 = 0x1000
	EntryErrorRegister       uint16 = 0x1001
	EntryIdentity            uint16 = 0x1018
	EntryControlWord         uint16 = 0x6040
	EntryStatusWord          uint16 = 0x6041
	EntryModesOfOperation    uint16 = 0x6060
	EntryPositionActual      uint16 = 0x6064
	EntryTargetPosition      uint16 = 0x607A
	EntryProfileVelocity     uint16 = 0x6081
	EntryProfileAcceleration uint16 = 0x6083
	EntryProfileDeceleration uint16 = 0x6084
)

// Width returned for objects absent from the catalog
const defaultWidth uint8 = 4

type catalogKey struct {
	index    uint16
	subindex uint8
}

// Catalog maps object addresses to their transfer width in bytes.
// Built once at startup from an EDS file, read-only afterwards.
type Catalog struct {
	widths map[catalogKey]uint8
}

func NewCatalog() *Catalog {
	return &Catalog{widths: make(map[catalogKey]uint8)}
}

// Number of entries loaded from the EDS source
func (catalog *Catalog) Len() int {
	return len(catalog.widths)
}

// add records the width of (index, subindex). The first entry for a given
// address wins, later duplicates from the source file are ignored.
func (catalog *Catalog) add(index uint16, subindex uint8, width uint8) {
	key := catalogKey{index: index, subindex: subindex}
	if _, ok := catalog.widths[key]; ok {
		return
	}
	catalog.widths[key] = width
}

// WidthOf resolves the transfer width of an object. The CiA402 control
// objects have fixed widths that take precedence over whatever the EDS
// declares, as the catalog may be incomplete or missing entirely.
// Unknown objects default to 4 bytes.
func (catalog *Catalog) WidthOf(index uint16, subindex uint8) uint8 {
	switch index {
	case EntryControlWord:
		return 2
	case EntryModesOfOperation:
		return 1
	case EntryProfileVelocity, EntryProfileAcceleration, EntryProfileDeceleration:
		return 4
	}
	if catalog != nil {
		if width, ok := catalog.widths[catalogKey{index: index, subindex: subindex}]; ok {
			return width
		}
	}
	return defaultWidth
}
