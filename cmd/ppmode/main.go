// ppmode drives a CiA402 servo drive in profile position mode over
// CANopen SDO. It brings the node up with an NMT startup sequence,
// enables the drive and then executes position commands, either one shot
// via -e or from an interactive prompt.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/erobman/canopen-pp/pkg/can"
	"github.com/erobman/canopen-pp/pkg/motion"
	"github.com/erobman/canopen-pp/pkg/nmt"
	"github.com/erobman/canopen-pp/pkg/od"
	"github.com/erobman/canopen-pp/pkg/scan"
	"github.com/erobman/canopen-pp/pkg/sdo"
	log "github.com/sirupsen/logrus"
)

var DefaultProfileVelocity = uint32(5566)
var DefaultProfileAcceleration = uint32(5566)
var DefaultProfileDeceleration = uint32(5566)

type session struct {
	controller *motion.Controller
	command    motion.Command
}

// dispatch interprets one operator command. Shared by the one-shot and
// interactive entry points so the two never drift apart.
func (s *session) dispatch(line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	var value int64
	var err error
	if len(fields) > 1 {
		value, err = strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			fmt.Printf("invalid argument : %v\n", fields[1])
			return false
		}
	}
	switch fields[0] {
	case "p":
		if len(fields) < 2 {
			fmt.Printf("target position : %v\n", s.command.TargetPosition)
			return false
		}
		s.command.TargetPosition = int32(value)
		result, err := s.controller.Move(s.command)
		if err != nil {
			fmt.Printf("move failed : %v\n", err)
			return false
		}
		fmt.Printf("move done, delta %v counts (ready=%v, moved=%v)\n", result.Delta, result.Ready, result.Moved)
	case "v":
		if len(fields) > 1 {
			s.command.ProfileVelocity = uint32(value)
		}
		fmt.Printf("profile velocity : %v\n", s.command.ProfileVelocity)
	case "a":
		if len(fields) > 1 {
			s.command.ProfileAcceleration = uint32(value)
		}
		fmt.Printf("profile acceleration : %v\n", s.command.ProfileAcceleration)
	case "d":
		if len(fields) > 1 {
			s.command.ProfileDeceleration = uint32(value)
		}
		fmt.Printf("profile deceleration : %v\n", s.command.ProfileDeceleration)
	case "s":
		fmt.Println("stopping motor")
		if err := s.controller.Shutdown(); err != nil {
			fmt.Printf("shutdown failed : %v\n", err)
		}
	case "q":
		return true
	default:
		fmt.Printf("unknown command : %v\n", fields[0])
		printHelp()
	}
	return false
}

func printHelp() {
	fmt.Println("p <position>  - move to target position")
	fmt.Println("v <velocity>  - set profile velocity")
	fmt.Println("a <accel>     - set profile acceleration")
	fmt.Println("d <decel>     - set profile deceleration")
	fmt.Println("s             - stop motor")
	fmt.Println("q             - quit")
}

func main() {
	driver := flag.String("i", "socketcan", "CAN driver : socketcan, virtual")
	channel := flag.String("c", "can0", "CAN channel e.g. can0, vcan0")
	nodeId := flag.Int("n", 0, "node id, 0 scans the bus for a motor drive")
	edsPath := flag.String("p", "", "EDS file path")
	oneShot := flag.String("e", "", "execute a single command and exit, e.g. 'p 5000'")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	bus, err := can.NewBus(*driver, *channel)
	if err != nil {
		log.Fatalf("create bus : %v", err)
	}
	err = bus.Connect()
	if err != nil {
		log.Fatalf("connect : %v", err)
	}
	defer bus.Disconnect()

	// Stop flag shared by every wait loop, closed on operator interrupt
	stop := make(chan struct{})
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupt
		log.Info("interrupted, stopping")
		close(stop)
	}()

	catalog := od.NewCatalog()
	if *edsPath != "" {
		catalog = od.LoadCatalog(*edsPath)
	}
	client := sdo.NewClient(bus, catalog)
	client.SetStop(stop)

	target := uint8(*nodeId)
	if target == 0 {
		scanner := scan.NewScanner(client)
		scanner.SetStop(stop)
		records := scanner.Scan(1, 20)
		if len(records) == 0 {
			log.Fatal("no motor drive found on the bus, use -n to force a node id")
		}
		target = records[0].NodeId
		log.Infof("using detected motor drive at node %v", target)
	}

	lifecycle := nmt.NewController(bus)
	lifecycle.SetStop(stop)
	err = lifecycle.Startup(target)
	if err != nil {
		log.Fatalf("nmt startup : %v", err)
	}

	controller := motion.NewController(client, target)
	controller.SetStop(stop)
	err = controller.Enable()
	if err != nil {
		log.Fatalf("enable drive : %v", err)
	}

	s := &session{
		controller: controller,
		command: motion.Command{
			ProfileVelocity:     DefaultProfileVelocity,
			ProfileAcceleration: DefaultProfileAcceleration,
			ProfileDeceleration: DefaultProfileDeceleration,
		},
	}

	if *oneShot != "" {
		s.dispatch(*oneShot)
	} else {
		printHelp()
		reader := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !reader.Scan() {
				break
			}
			if s.dispatch(reader.Text()) {
				break
			}
		}
	}

	// Safe stop before leaving
	if err := controller.Shutdown(); err != nil {
		log.Warnf("final shutdown : %v", err)
	}
}
