package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"
)

// MaxFrameSize bounds the length prefix read off the wire before any body
// bytes are read, guarding against a hostile or corrupt peer claiming an
// unbounded frame.
const MaxFrameSize = 64 * 1024 * 1024

// Writer accumulates the field-level encoding described by the wire
// protocol into a byte buffer.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// WriteBool writes a single byte: 0x01 for true, 0x00 for false.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

// WriteU8 writes a single byte.
func (w *Writer) WriteU8(v uint8) {
	w.buf.WriteByte(v)
}

// WriteU32 writes a 4-byte big-endian unsigned integer.
func (w *Writer) WriteU32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.buf.Write(tmp[:])
}

// WriteI32 writes a 4-byte big-endian signed integer.
func (w *Writer) WriteI32(v int32) {
	w.WriteU32(uint32(v))
}

// WriteBytes writes a u32 length prefix followed by the raw bytes.
func (w *Writer) WriteBytes(v []byte) {
	w.WriteU32(uint32(len(v)))
	w.buf.Write(v)
}

// WriteString writes a u32 length prefix followed by UTF-8 bytes.
func (w *Writer) WriteString(v string) {
	w.WriteBytes([]byte(v))
}

// WriteEntitlementSet writes a u32 count followed by each member as i32, in
// unspecified order.
func (w *Writer) WriteEntitlementSet(v EntitlementSet) {
	w.WriteU32(uint32(len(v)))
	for e := range v {
		w.WriteI32(e)
	}
}

// WriteStringMap writes a u32 count followed by each key/value pair as two
// length-prefixed strings.
func (w *Writer) WriteStringMap(v map[string]string) {
	w.WriteU32(uint32(len(v)))
	for k, val := range v {
		w.WriteString(k)
		w.WriteString(val)
	}
}

// WriteDataPackets writes a u32 count followed by each packet's
// entitlements, headers and payload.
func (w *Writer) WriteDataPackets(packets []DataPacket) {
	w.WriteU32(uint32(len(packets)))
	for _, p := range packets {
		w.WriteEntitlementSet(p.Entitlements)
		w.WriteStringMap(p.Headers)
		w.WriteBytes(p.Payload)
	}
}

// Reader consumes the field-level encoding described by the wire protocol
// from a byte slice.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential field reads.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("wire: short read: need %d bytes, have %d", n, len(r.buf)-r.pos)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadBool reads a single byte; any nonzero value is true.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.take(1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// ReadU8 reads a single byte.
func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU32 reads a 4-byte big-endian unsigned integer.
func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadI32 reads a 4-byte big-endian signed integer.
func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

// ReadBytes reads a u32 length prefix followed by that many raw bytes.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	b, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// ReadString reads a u32 length prefix followed by that many bytes,
// validated as UTF-8.
func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("wire: invalid utf-8 string")
	}
	return string(b), nil
}

// ReadEntitlementSet reads a u32 count followed by that many i32 members.
func (r *Reader) ReadEntitlementSet() (EntitlementSet, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	set := make(EntitlementSet, n)
	for i := uint32(0); i < n; i++ {
		v, err := r.ReadI32()
		if err != nil {
			return nil, err
		}
		set[v] = struct{}{}
	}
	return set, nil
}

// ReadStringMap reads a u32 count followed by that many key/value string
// pairs.
func (r *Reader) ReadStringMap() (map[string]string, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, n)
	for i := uint32(0); i < n; i++ {
		k, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		v, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}

// ReadDataPackets reads a u32 count followed by that many data packets.
func (r *Reader) ReadDataPackets() ([]DataPacket, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	packets := make([]DataPacket, n)
	for i := uint32(0); i < n; i++ {
		ent, err := r.ReadEntitlementSet()
		if err != nil {
			return nil, err
		}
		headers, err := r.ReadStringMap()
		if err != nil {
			return nil, err
		}
		payload, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		packets[i] = DataPacket{Entitlements: ent, Headers: headers, Payload: payload}
	}
	return packets, nil
}

// Encode serializes a Message to its tagged binary body (tag byte followed
// by the message's fields), without a frame length prefix.
func Encode(msg Message) ([]byte, error) {
	w := NewWriter()
	w.WriteU8(msg.messageTag())

	switch m := msg.(type) {
	case AuthenticationRequest:
		w.WriteString(m.Method)
		w.WriteBytes(m.Credentials)
	case AuthenticationResponse:
		w.WriteString(m.ClientID)
	case SubscriptionRequest:
		w.WriteString(m.Topic)
		w.WriteBool(m.IsAdd)
	case MulticastData:
		w.WriteString(m.Topic)
		w.WriteDataPackets(m.DataPackets)
	case UnicastData:
		w.WriteString(m.ClientID)
		w.WriteString(m.Topic)
		w.WriteDataPackets(m.DataPackets)
	case ForwardedMulticastData:
		w.WriteString(m.Host)
		w.WriteString(m.User)
		w.WriteString(m.Topic)
		w.WriteDataPackets(m.DataPackets)
	case ForwardedUnicastData:
		w.WriteString(m.Host)
		w.WriteString(m.User)
		w.WriteString(m.ClientID)
		w.WriteString(m.Topic)
		w.WriteDataPackets(m.DataPackets)
	case ForwardedSubscriptionRequest:
		w.WriteString(m.Host)
		w.WriteString(m.User)
		w.WriteString(m.ClientID)
		w.WriteString(m.Topic)
		w.WriteU32(m.Count)
	case NotificationRequest:
		w.WriteString(m.Topic)
	default:
		return nil, fmt.Errorf("wire: unknown message type %T", msg)
	}

	return w.Bytes(), nil
}

// Decode parses a tagged binary body (as produced by Encode) back into a
// Message.
func Decode(body []byte) (Message, error) {
	r := NewReader(body)
	tag, err := r.ReadU8()
	if err != nil {
		return nil, err
	}

	switch tag {
	case TagAuthenticationRequest:
		method, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		creds, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		return AuthenticationRequest{Method: method, Credentials: creds}, nil

	case TagAuthenticationResponse:
		id, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		return AuthenticationResponse{ClientID: id}, nil

	case TagSubscriptionRequest:
		topic, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		isAdd, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		return SubscriptionRequest{Topic: topic, IsAdd: isAdd}, nil

	case TagMulticastData:
		topic, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		packets, err := r.ReadDataPackets()
		if err != nil {
			return nil, err
		}
		return MulticastData{Topic: topic, DataPackets: packets}, nil

	case TagUnicastData:
		clientID, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		topic, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		packets, err := r.ReadDataPackets()
		if err != nil {
			return nil, err
		}
		return UnicastData{ClientID: clientID, Topic: topic, DataPackets: packets}, nil

	case TagForwardedMulticastData:
		host, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		user, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		topic, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		packets, err := r.ReadDataPackets()
		if err != nil {
			return nil, err
		}
		return ForwardedMulticastData{Host: host, User: user, Topic: topic, DataPackets: packets}, nil

	case TagForwardedUnicastData:
		host, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		user, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		clientID, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		topic, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		packets, err := r.ReadDataPackets()
		if err != nil {
			return nil, err
		}
		return ForwardedUnicastData{Host: host, User: user, ClientID: clientID, Topic: topic, DataPackets: packets}, nil

	case TagForwardedSubscriptionRequest:
		host, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		user, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		clientID, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		topic, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		count, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		return ForwardedSubscriptionRequest{Host: host, User: user, ClientID: clientID, Topic: topic, Count: count}, nil

	case TagNotificationRequest:
		topic, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		return NotificationRequest{Topic: topic}, nil

	default:
		return nil, fmt.Errorf("wire: unknown message tag %d", tag)
	}
}

// WriteFrame encodes msg and writes it to w as a u32-big-endian-length-
// prefixed frame.
func WriteFrame(w io.Writer, msg Message) error {
	body, err := Encode(msg)
	if err != nil {
		return err
	}
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(body)))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// ReadFrame reads a u32-big-endian-length-prefixed frame from r and decodes
// it into a Message.
func ReadFrame(r io.Reader) (Message, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("wire: frame size %d exceeds maximum %d", n, MaxFrameSize)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return Decode(body)
}
