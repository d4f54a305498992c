package can

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// Virtual CAN bus implementation used for bench testing without hardware
// This uses TCP as transport
// Client implementation for golang of virtual can interface from windelbouwman/virtualcan
// Support only non extended frame format

// Helper function for serializing a CAN frame into the expected binary format
func serializeFrame(frame Frame) ([]byte, error) {
	buffer := new(bytes.Buffer)
	err := binary.Write(buffer, binary.BigEndian, frame)
	if err != nil {
		return nil, err
	}
	dataBytes := buffer.Bytes()
	headerBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(headerBytes, uint32(len(dataBytes)))
	finalBytes := append(headerBytes, dataBytes...)
	return finalBytes, nil
}

// Helper function for deserializing a CAN frame from expected binary format
func deserializeFrame(buffer []byte) (*Frame, error) {
	var frame Frame
	buf := bytes.NewBuffer(buffer)
	err := binary.Read(buf, binary.BigEndian, &frame)
	if err != nil {
		return nil, err
	}
	return &frame, nil
}

type VirtualCanBus struct {
	channel    string
	conn       net.Conn
	receiveOwn bool
	loopback   []Frame
	mu         sync.Mutex
}

// "Connect" to server e.g. localhost:18000
func (client *VirtualCanBus) Connect(...any) error {
	conn, err := net.Dial("tcp", client.channel)
	if err != nil {
		return err
	}
	client.conn = conn
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		err := tcpConn.SetNoDelay(true)
		if err != nil {
			return err
		}
	}
	return nil
}

// "Disconnect" from server
func (client *VirtualCanBus) Disconnect() error {
	if client.conn != nil {
		return client.conn.Close()
	}
	return nil
}

// "Send" implementation of Bus interface
func (client *VirtualCanBus) Send(frame Frame) error {
	// Local loopback
	if client.receiveOwn {
		client.mu.Lock()
		client.loopback = append(client.loopback, frame)
		client.mu.Unlock()
	} else if client.conn == nil {
		return errors.New("no active connection, abort send")
	}
	if client.conn != nil {
		frameBytes, err := serializeFrame(frame)
		if err != nil {
			return err
		}
		client.conn.SetWriteDeadline(time.Now().Add(10 * time.Millisecond))
		_, err = client.conn.Write(frameBytes)
		return err
	}
	return nil
}

// "Recv" implementation of Bus interface
func (client *VirtualCanBus) Recv(timeout time.Duration) (*Frame, error) {
	// Loopback frames take priority over bus traffic
	client.mu.Lock()
	if len(client.loopback) > 0 {
		frame := client.loopback[0]
		client.loopback = client.loopback[1:]
		client.mu.Unlock()
		return &frame, nil
	}
	client.mu.Unlock()
	if client.conn == nil {
		return nil, errors.New("no active connection, abort receive")
	}
	client.conn.SetReadDeadline(time.Now().Add(timeout))
	headerBytes := make([]byte, 4)
	n, err := client.conn.Read(headerBytes)
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return nil, ErrRecvTimeout
	}
	if n < 4 || err != nil {
		return nil, fmt.Errorf("error deserializing : expected %v, got %v, err : %v", 4, n, err)
	}
	length := binary.BigEndian.Uint32(headerBytes)
	frameBytes := make([]byte, length)
	client.conn.SetReadDeadline(time.Now().Add(timeout))
	n, err = client.conn.Read(frameBytes)
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return nil, ErrRecvTimeout
	}
	if n != int(length) || err != nil {
		return nil, fmt.Errorf("error deserializing : expected %v, got %v", length, n)
	}
	return deserializeFrame(frameBytes)
}

// SetReceiveOwn enables local loopback of sent frames, useful when no
// other node is attached to the virtual server
func (client *VirtualCanBus) SetReceiveOwn(receiveOwn bool) {
	client.receiveOwn = receiveOwn
}

func NewVirtualCanBus(channel string) (Bus, error) {
	return &VirtualCanBus{channel: channel}, nil
}

func init() {
	RegisterDriver("virtual", NewVirtualCanBus)
}
