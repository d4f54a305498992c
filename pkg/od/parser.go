package od

import (
	"regexp"
	"strconv"

	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

// Get index & subindex matching
// An index section looks like [6040], a subindex section like [1018sub1]
// with the subindex part in decimal
var matchIdxRegExp = regexp.MustCompile(`^[0-9A-Fa-f]{4}$`)
var matchSubidxRegExp = regexp.MustCompile(`^([0-9A-Fa-f]{4})sub([0-9]+)$`)

// Byte sizes for the standard data type codes (CiA 306)
func dataTypeSize(dataType uint16) uint8 {
	switch dataType {
	case 0x0001: // BOOLEAN
		return 1
	case 0x0002: // INTEGER8
		return 1
	case 0x0003: // INTEGER16
		return 2
	case 0x0004: // INTEGER32
		return 4
	case 0x0005: // UNSIGNED8
		return 1
	case 0x0006: // UNSIGNED16
		return 2
	case 0x0007: // UNSIGNED32
		return 4
	case 0x0008:
		return 8
	default:
		return 2
	}
}

// LoadCatalog parses an EDS file into a width catalog.
// Loading fails soft : a missing or unreadable file yields an empty
// catalog, so unknown objects fall back to the default width and the
// system keeps working with degraded precision. Sections without a
// DataType or a terminating AccessType key are skipped.
func LoadCatalog(path string) *Catalog {
	catalog := NewCatalog()
	edsFile, err := ini.Load(path)
	if err != nil {
		log.Warnf("[OD] could not load EDS %v : %v", path, err)
		return catalog
	}
	for _, section := range edsFile.Sections() {
		sectionName := section.Name()
		var index uint16
		var subindex uint8
		if matchIdxRegExp.MatchString(sectionName) {
			idx, err := strconv.ParseUint(sectionName, 16, 16)
			if err != nil {
				continue
			}
			index = uint16(idx)
		} else if matchSubidxRegExp.MatchString(sectionName) {
			// Index part are the first 4 letters, subindex from the 7th onwards
			idx, err := strconv.ParseUint(sectionName[0:4], 16, 16)
			if err != nil {
				continue
			}
			sidx, err := strconv.ParseUint(sectionName[7:], 10, 8)
			if err != nil {
				continue
			}
			index = uint16(idx)
			subindex = uint8(sidx)
		} else {
			continue
		}
		if !section.HasKey("DataType") || !section.HasKey("AccessType") {
			continue
		}
		dataType, err := strconv.ParseUint(section.Key("DataType").String(), 0, 16)
		if err != nil {
			continue
		}
		catalog.add(index, subindex, dataTypeSize(uint16(dataType)))
	}
	log.Infof("[OD] loaded %v objects from %v", catalog.Len(), path)
	return catalog
}
