// Package scan discovers CiA402 motor drives on the bus by probing
// candidate node ids with short-timeout identity reads.
package scan

import (
	"time"

	"github.com/erobman/canopen-pp/pkg/od"
	"github.com/erobman/canopen-pp/pkg/sdo"
	log "github.com/sirupsen/logrus"
)

// Known CiA402 motor drive device type codes (object 0x1000)
var motorDeviceTypes = map[uint32]bool{
	0x00020192: true,
	0x00020193: true,
	0x00020194: true,
	0x00020195: true,
}

// DeviceRecord describes one discovered motor drive
type DeviceRecord struct {
	NodeId     uint8
	DeviceType uint32
}

// Identity holds the detail information of a single node.
// Only the device type is mandatory, the remaining fields are filled
// best effort.
type Identity struct {
	NodeId         uint8
	DeviceType     uint32
	ErrorRegister  uint8
	VendorId       uint32
	ProductCode    uint32
	RevisionNumber uint32
	SerialNumber   uint32
}

// Scanner probes one candidate at a time, sequential by design to bound
// total bus load. Every scan is independent, no history is kept.
type Scanner struct {
	client *sdo.Client
	stop   <-chan struct{}

	// ProbeTimeout bounds the identity read of a single candidate
	ProbeTimeout time.Duration
	// ProbeDelay lets a just-probed node finish processing before the
	// next candidate is addressed
	ProbeDelay time.Duration
}

func NewScanner(client *sdo.Client) *Scanner {
	return &Scanner{
		client:       client,
		ProbeTimeout: 100 * time.Millisecond,
		ProbeDelay:   10 * time.Millisecond,
	}
}

// SetStop installs a channel checked between candidates
func (scanner *Scanner) SetStop(stop <-chan struct{}) {
	scanner.stop = stop
}

// Scan probes every node id in [first, last] in ascending order and
// returns the nodes whose device type matches a known motor drive code.
// Silent nodes and nodes of another device class are skipped. An empty
// result is valid : it means no motor drive answered in the range.
func (scanner *Scanner) Scan(first, last uint8) []DeviceRecord {
	if first < 1 {
		first = 1
	}
	if last > 127 {
		last = 127
	}
	found := make([]DeviceRecord, 0)
	for nodeId := first; nodeId <= last; nodeId++ {
		select {
		case <-scanner.stop:
			return found
		default:
		}
		deviceType, err := scanner.client.ReadUint32WithTimeout(nodeId, od.EntryDeviceType, 0, scanner.ProbeTimeout)
		if err != nil {
			log.Debugf("[SCAN] node x%x : no response (%v)", nodeId, err)
		} else if !motorDeviceTypes[deviceType] {
			log.Debugf("[SCAN] node x%x : device type x%08x is not a motor drive", nodeId, deviceType)
		} else {
			log.Infof("[SCAN] node x%x : motor drive found (device type x%08x)", nodeId, deviceType)
			found = append(found, DeviceRecord{NodeId: nodeId, DeviceType: deviceType})
		}
		time.Sleep(scanner.ProbeDelay)
	}
	return found
}

// Identify reads the detail information of a single node : device type,
// error register and the identity object (0x1018). The device type read
// must succeed, everything else fails soft.
func (scanner *Scanner) Identify(nodeId uint8) (*Identity, error) {
	deviceType, err := scanner.client.ReadUint32(nodeId, od.EntryDeviceType, 0)
	if err != nil {
		return nil, err
	}
	identity := &Identity{NodeId: nodeId, DeviceType: deviceType}
	errorRegister, err := scanner.client.ReadUint32(nodeId, od.EntryErrorRegister, 0)
	if err == nil {
		identity.ErrorRegister = uint8(errorRegister)
	}
	identity.VendorId, _ = scanner.client.ReadUint32(nodeId, od.EntryIdentity, 1)
	identity.ProductCode, _ = scanner.client.ReadUint32(nodeId, od.EntryIdentity, 2)
	identity.RevisionNumber, _ = scanner.client.ReadUint32(nodeId, od.EntryIdentity, 3)
	identity.SerialNumber, _ = scanner.client.ReadUint32(nodeId, od.EntryIdentity, 4)
	return identity, nil
}

// IsMotorDeviceType reports whether code matches a known CiA402 motor
// drive signature
func IsMotorDeviceType(code uint32) bool {
	return motorDeviceTypes[code]
}
