// codec.go
package rpc

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// maxFrameBytes bounds a single envelope's body. No real message in
// this protocol exceeds a few dozen bytes; the cap exists to reject a
// corrupt length prefix before attempting a multi-gigabyte allocation.
const maxFrameBytes = 64 * 1024

// ErrFrameTooLarge is returned when a decoded length prefix exceeds
// maxFrameBytes.
var ErrFrameTooLarge = errors.New("rpc: frame exceeds maximum size")

// WriteMessage encodes m and writes it as one length-prefixed frame.
// Hand-rolled with encoding/binary rather than a generic serialization
// library: every binary protocol retrieved alongside this module
// (Feetech servo frames, Modbus PDUs, Dynamixel packets) encodes its
// own small fixed tagged envelope the same way, and none reaches for
// msgpack/cbor/protobuf for a point-to-point hardware link.
func WriteMessage(w io.Writer, m Message) error {
	body, err := encodeBody(m)
	if err != nil {
		return errors.Wrap(err, "rpc: encode")
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return errors.Wrap(err, "rpc: write length prefix")
	}
	if _, err := w.Write(body); err != nil {
		return errors.Wrap(err, "rpc: write body")
	}
	return nil
}

// ReadMessage reads one length-prefixed frame and decodes it.
func ReadMessage(r *bufio.Reader) (Message, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err // io.EOF surfaces as-is; caller maps to Disconnected
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameBytes {
		return nil, ErrFrameTooLarge
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errors.Wrap(err, "rpc: read body")
	}
	return decodeBody(body)
}

// encodeBody lays out tag byte || fields, fixed-width fields in
// big-endian order: a self-describing binary encoding of the tagged
// union of message variants.
func encodeBody(m Message) ([]byte, error) {
	switch v := m.(type) {
	case MoveRequest:
		return []byte{v.Tag(), byte(v.Kind), v.Speed}, nil
	case LookRequest:
		buf := make([]byte, 1+4+4)
		buf[0] = v.Tag()
		putFloat32(buf[1:5], v.H)
		putFloat32(buf[5:9], v.V)
		return buf, nil
	case LookDirectionRequest:
		return []byte{v.Tag()}, nil
	case LookDirectionResponse:
		buf := make([]byte, 1+4+4)
		buf[0] = v.Tag()
		putFloat32(buf[1:5], v.H)
		putFloat32(buf[5:9], v.V)
		return buf, nil
	case SenseRequest:
		return []byte{v.Tag(), byte(v.What)}, nil
	case SenseResponse:
		buf := make([]byte, 1+1+2+4)
		buf[0] = v.Tag()
		buf[1] = byte(v.Kind)
		buf[2] = boolByte(v.Bools[0])
		buf[3] = boolByte(v.Bools[1])
		putFloat32(buf[4:8], v.DistanceMM)
		return buf, nil
	case StatusResponse:
		msg := []byte(v.Message)
		buf := make([]byte, 1+1+2+len(msg))
		buf[0] = v.Tag()
		buf[1] = boolByte(v.OK)
		binary.BigEndian.PutUint16(buf[2:4], uint16(len(msg)))
		copy(buf[4:], msg)
		return buf, nil
	default:
		return nil, errors.Errorf("rpc: unknown message type %T", m)
	}
}

func decodeBody(body []byte) (Message, error) {
	if len(body) == 0 {
		return nil, errors.New("rpc: empty frame")
	}
	tag := body[0]
	rest := body[1:]
	switch tag {
	case tagMoveRequest:
		if len(rest) != 2 {
			return nil, errors.New("rpc: malformed MoveRequest")
		}
		return MoveRequest{Kind: MoveType(rest[0]), Speed: rest[1]}, nil
	case tagLookRequest:
		if len(rest) != 8 {
			return nil, errors.New("rpc: malformed LookRequest")
		}
		return LookRequest{H: getFloat32(rest[0:4]), V: getFloat32(rest[4:8])}, nil
	case tagLookDirectionRequest:
		if len(rest) != 0 {
			return nil, errors.New("rpc: malformed LookDirectionRequest")
		}
		return LookDirectionRequest{}, nil
	case tagLookDirectionResponse:
		if len(rest) != 8 {
			return nil, errors.New("rpc: malformed LookDirectionResponse")
		}
		return LookDirectionResponse{H: getFloat32(rest[0:4]), V: getFloat32(rest[4:8])}, nil
	case tagSenseRequest:
		if len(rest) != 1 {
			return nil, errors.New("rpc: malformed SenseRequest")
		}
		return SenseRequest{What: SenseKind(rest[0])}, nil
	case tagSenseResponse:
		if len(rest) != 7 {
			return nil, errors.New("rpc: malformed SenseResponse")
		}
		return SenseResponse{
			Kind:       SenseKind(rest[0]),
			Bools:      [2]bool{rest[1] != 0, rest[2] != 0},
			DistanceMM: getFloat32(rest[3:7]),
		}, nil
	case tagStatusResponse:
		if len(rest) < 3 {
			return nil, errors.New("rpc: malformed StatusResponse")
		}
		n := binary.BigEndian.Uint16(rest[1:3])
		if len(rest) != int(3+n) {
			return nil, errors.New("rpc: malformed StatusResponse length")
		}
		return StatusResponse{OK: rest[0] != 0, Message: string(rest[3 : 3+n])}, nil
	default:
		return nil, errors.Errorf("rpc: unknown tag %d", tag)
	}
}

func putFloat32(b []byte, f float32) {
	binary.BigEndian.PutUint32(b, math.Float32bits(f))
}

func getFloat32(b []byte) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(b))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
