package sdo

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/erobman/canopen-pp/internal/poll"
	"github.com/erobman/canopen-pp/pkg/can"
	"github.com/erobman/canopen-pp/pkg/od"
	log "github.com/sirupsen/logrus"
)

const (
	// Overall deadline for a normal request / response exchange
	DefaultTimeout = 1000 * time.Millisecond
	// Receive slice used while waiting for a response
	recvSlice = 10 * time.Millisecond
)

// ErrTimeout is returned when no matching response arrived in time
var ErrTimeout = errors.New("SDO response timeout")

// Client is an expedited-transfer SDO master bound to one bus handle.
// Requests are strictly sequential : the protocol has no transaction
// multiplexing, a response is correlated by COB-ID alone, so a second
// in-flight request would make correlation ambiguous. The client never
// retries, retry policy belongs to the caller.
type Client struct {
	bus     can.Bus
	catalog *od.Catalog
	timeout time.Duration
	stop    <-chan struct{}
}

func NewClient(bus can.Bus, catalog *od.Catalog) *Client {
	return &Client{bus: bus, catalog: catalog, timeout: DefaultTimeout}
}

// SetTimeout changes the default response deadline
func (client *Client) SetTimeout(timeout time.Duration) {
	client.timeout = timeout
}

// SetStop installs a channel checked while waiting for responses.
// Closing it aborts any in-flight wait promptly.
func (client *Client) SetStop(stop <-chan struct{}) {
	client.stop = stop
}

// WriteUint32 writes value to an object of nodeId as a single expedited
// download. The size field of the command byte is set from the width
// resolved through the catalog, the value bytes are little endian and
// zero padded past that width.
func (client *Client) WriteUint32(nodeId uint8, index uint16, subindex uint8, value uint32) error {
	return client.WriteUint32WithTimeout(nodeId, index, subindex, value, client.timeout)
}

func (client *Client) WriteUint32WithTimeout(nodeId uint8, index uint16, subindex uint8, value uint32, timeout time.Duration) error {
	frame := can.NewFrame(ClientBaseId+uint32(nodeId), 0, 8)
	switch client.catalog.WidthOf(index, subindex) {
	case 1:
		frame.Data[0] = csDownload1Byte
	case 2:
		frame.Data[0] = csDownload2Byte
	default:
		frame.Data[0] = csDownload4Byte
	}
	binary.LittleEndian.PutUint16(frame.Data[1:3], index)
	frame.Data[3] = subindex
	binary.LittleEndian.PutUint32(frame.Data[4:8], value)
	log.Debugf("[SDO][x%x] write x%04x:%v = x%x", nodeId, index, subindex, value)
	err := client.bus.Send(frame)
	if err != nil {
		return err
	}
	_, err = client.waitResponse(nodeId, scsDownloadResponse, timeout)
	return err
}

// ReadUint32 reads an object of nodeId as a single expedited upload and
// returns its value decoded little endian
func (client *Client) ReadUint32(nodeId uint8, index uint16, subindex uint8) (uint32, error) {
	return client.ReadUint32WithTimeout(nodeId, index, subindex, client.timeout)
}

func (client *Client) ReadUint32WithTimeout(nodeId uint8, index uint16, subindex uint8, timeout time.Duration) (uint32, error) {
	frame := can.NewFrame(ClientBaseId+uint32(nodeId), 0, 8)
	frame.Data[0] = csUploadRequest
	binary.LittleEndian.PutUint16(frame.Data[1:3], index)
	frame.Data[3] = subindex
	log.Debugf("[SDO][x%x] read x%04x:%v", nodeId, index, subindex)
	err := client.bus.Send(frame)
	if err != nil {
		return 0, err
	}
	response, err := client.waitResponse(nodeId, scsUploadResponse, timeout)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(response.Data[4:8]), nil
}

// waitResponse polls the bus in short slices until a frame from
// ServerBaseId+nodeId classifies as the expected response or an abort,
// or the deadline expires. Frames from any other COB-ID, and frames with
// an unrecognized command specifier, are ignored and waiting continues.
func (client *Client) waitResponse(nodeId uint8, expected uint8, timeout time.Duration) (*can.Frame, error) {
	var response *can.Frame
	var abort error
	err := poll.Until(timeout, 0, client.stop, func() (bool, error) {
		frame, err := client.bus.Recv(recvSlice)
		if err == can.ErrRecvTimeout {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if frame.ID != ServerBaseId+uint32(nodeId) {
			return false, nil
		}
		switch frame.Data[0] & scsMask {
		case scsAbort:
			abort = AbortCode(binary.LittleEndian.Uint32(frame.Data[4:8]))
			return true, nil
		case expected:
			response = frame
			return true, nil
		default:
			return false, nil
		}
	})
	if err == poll.ErrDeadline {
		log.Debugf("[SDO][x%x] response timeout", nodeId)
		return nil, ErrTimeout
	}
	if err != nil {
		return nil, err
	}
	if abort != nil {
		log.Debugf("[SDO][x%x] server aborted : %v", nodeId, abort)
		return nil, abort
	}
	return response, nil
}
