package od

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadCatalog(t *testing.T) {
	catalog := LoadCatalog("testdata/sample.eds")
	// Sections missing DataType or AccessType are skipped
	assert.Equal(t, 5, catalog.Len())
	assert.Equal(t, uint8(4), catalog.WidthOf(0x1000, 0))
	assert.Equal(t, uint8(4), catalog.WidthOf(0x1018, 1))
	assert.Equal(t, uint8(2), catalog.WidthOf(0x2000, 0))
	assert.Equal(t, uint8(2), catalog.WidthOf(0x6041, 0))
}

func TestLoadCatalogMissingFile(t *testing.T) {
	catalog := LoadCatalog("testdata/does-not-exist.eds")
	assert.Equal(t, 0, catalog.Len())
	// System keeps working with the default width
	assert.Equal(t, uint8(4), catalog.WidthOf(0x1234, 0))
}

func TestWidthOfOverrides(t *testing.T) {
	// The fixture declares the control word as UNSIGNED32, the fixed
	// CiA402 width still wins
	catalog := LoadCatalog("testdata/sample.eds")
	assert.Equal(t, uint8(2), catalog.WidthOf(EntryControlWord, 0))

	empty := NewCatalog()
	assert.Equal(t, uint8(2), empty.WidthOf(EntryControlWord, 0))
	assert.Equal(t, uint8(1), empty.WidthOf(EntryModesOfOperation, 0))
	assert.Equal(t, uint8(4), empty.WidthOf(EntryProfileVelocity, 0))
	assert.Equal(t, uint8(4), empty.WidthOf(EntryProfileAcceleration, 0))
	assert.Equal(t, uint8(4), empty.WidthOf(EntryProfileDeceleration, 0))
}

func TestWidthOfDefault(t *testing.T) {
	catalog := NewCatalog()
	assert.Equal(t, uint8(4), catalog.WidthOf(0x607A, 0))
	assert.Equal(t, uint8(4), catalog.WidthOf(0x9999, 12))
}

func TestAddFirstMatchWins(t *testing.T) {
	catalog := NewCatalog()
	catalog.add(0x3000, 0, 2)
	catalog.add(0x3000, 0, 8)
	assert.Equal(t, uint8(2), catalog.WidthOf(0x3000, 0))
}

func TestDataTypeSize(t *testing.T) {
	assert.Equal(t, uint8(1), dataTypeSize(0x0001))
	assert.Equal(t, uint8(1), dataTypeSize(0x0002))
	assert.Equal(t, uint8(2), dataTypeSize(0x0003))
	assert.Equal(t, uint8(4), dataTypeSize(0x0004))
	assert.Equal(t, uint8(1), dataTypeSize(0x0005))
	assert.Equal(t, uint8(2), dataTypeSize(0x0006))
	assert.Equal(t, uint8(4), dataTypeSize(0x0007))
	// Unknown codes default to 2 bytes
	assert.Equal(t, uint8(2), dataTypeSize(0x0020))
}
