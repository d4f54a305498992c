// quickscan probes a range of node ids for CiA402 motor drives, or dumps
// the identity of a single node with -read.
package main

import (
	"flag"
	"fmt"

	"github.com/erobman/canopen-pp/pkg/can"
	"github.com/erobman/canopen-pp/pkg/od"
	"github.com/erobman/canopen-pp/pkg/scan"
	"github.com/erobman/canopen-pp/pkg/sdo"
	log "github.com/sirupsen/logrus"
)

func main() {
	driver := flag.String("i", "socketcan", "CAN driver : socketcan, virtual")
	channel := flag.String("c", "can0", "CAN channel e.g. can0, vcan0")
	first := flag.Int("from", 1, "first node id to probe")
	last := flag.Int("to", 20, "last node id to probe")
	read := flag.Int("read", 0, "read detail information of a single node instead of scanning")
	flag.Parse()

	bus, err := can.NewBus(*driver, *channel)
	if err != nil {
		log.Fatalf("create bus : %v", err)
	}
	err = bus.Connect()
	if err != nil {
		log.Fatalf("connect : %v", err)
	}
	defer bus.Disconnect()

	client := sdo.NewClient(bus, od.NewCatalog())
	scanner := scan.NewScanner(client)

	if *read > 0 {
		identity, err := scanner.Identify(uint8(*read))
		if err != nil {
			log.Fatalf("node %v : %v", *read, err)
		}
		fmt.Printf("node %v\n", identity.NodeId)
		fmt.Printf("  device type     : x%08x (motor drive : %v)\n", identity.DeviceType, scan.IsMotorDeviceType(identity.DeviceType))
		fmt.Printf("  error register  : x%02x\n", identity.ErrorRegister)
		fmt.Printf("  vendor id       : x%08x\n", identity.VendorId)
		fmt.Printf("  product code    : x%08x\n", identity.ProductCode)
		fmt.Printf("  revision number : x%08x\n", identity.RevisionNumber)
		fmt.Printf("  serial number   : x%08x\n", identity.SerialNumber)
		return
	}

	records := scanner.Scan(uint8(*first), uint8(*last))
	for _, record := range records {
		fmt.Printf("node %v : motor drive (device type x%08x)\n", record.NodeId, record.DeviceType)
	}
	fmt.Printf("found %v motor drive(s)\n", len(records))
}
