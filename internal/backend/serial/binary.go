package serial

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// BinaryFormat serializes to a compact length-prefixed encoding. Member
// names are never written; both ends walk the same reflected member order,
// so positions identify members. Ints are zigzag varints, floats are 8-byte
// IEEE-754 big-endian, strings are uvarint length plus raw bytes, bools are
// a single byte, and sequences are a uvarint count followed by elements.
type BinaryFormat struct{}

// NewBinaryFormat creates the binary wire format
func NewBinaryFormat() *BinaryFormat {
	return &BinaryFormat{}
}

// Name implements Format
func (f *BinaryFormat) Name() string { return "binary" }

// NewEncoder implements Format
func (f *BinaryFormat) NewEncoder() Encoder {
	return &binaryEncoder{}
}

// NewDecoder implements Format
func (f *BinaryFormat) NewDecoder(data []byte) (Decoder, error) {
	return &binaryDecoder{r: bytes.NewReader(data)}, nil
}

type binaryEncoder struct {
	buf bytes.Buffer
}

func (e *binaryEncoder) BeginObject()            {}
func (e *binaryEncoder) BeginMember(name string) {}
func (e *binaryEncoder) EndObject()              {}

func (e *binaryEncoder) BeginArray(count int) {
	e.putUvarint(uint64(count))
}

func (e *binaryEncoder) BeginElement() {}
func (e *binaryEncoder) EndArray()     {}

func (e *binaryEncoder) putUvarint(v uint64) {
	var scratch [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(scratch[:], v)
	e.buf.Write(scratch[:n])
}

func (e *binaryEncoder) EncodeInt(v int64) {
	var scratch [binary.MaxVarintLen64]byte
	n := binary.PutVarint(scratch[:], v)
	e.buf.Write(scratch[:n])
}

func (e *binaryEncoder) EncodeFloat(v float64) {
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], math.Float64bits(v))
	e.buf.Write(scratch[:])
}

func (e *binaryEncoder) EncodeString(v string) {
	e.putUvarint(uint64(len(v)))
	e.buf.WriteString(v)
}

func (e *binaryEncoder) EncodeBool(v bool) {
	if v {
		e.buf.WriteByte(1)
	} else {
		e.buf.WriteByte(0)
	}
}

func (e *binaryEncoder) Bytes() ([]byte, error) {
	return e.buf.Bytes(), nil
}

type binaryDecoder struct {
	r *bytes.Reader

	// remaining holds the element counts of open arrays, innermost last
	remaining []uint64
}

func (d *binaryDecoder) BeginObject() error            { return nil }
func (d *binaryDecoder) BeginMember(name string) error { return nil }
func (d *binaryDecoder) EndObject() error              { return nil }

func (d *binaryDecoder) BeginArray() error {
	count, err := binary.ReadUvarint(d.r)
	if err != nil {
		return fmt.Errorf("truncated binary payload: %w", err)
	}
	d.remaining = append(d.remaining, count)
	return nil
}

func (d *binaryDecoder) MoreElements() (bool, error) {
	if len(d.remaining) == 0 {
		return false, fmt.Errorf("malformed binary payload: element outside array")
	}
	top := len(d.remaining) - 1
	if d.remaining[top] == 0 {
		return false, nil
	}
	d.remaining[top]--
	return true, nil
}

func (d *binaryDecoder) EndArray() error {
	if len(d.remaining) == 0 {
		return fmt.Errorf("malformed binary payload: unbalanced array end")
	}
	d.remaining = d.remaining[:len(d.remaining)-1]
	return nil
}

func (d *binaryDecoder) DecodeInt() (int64, error) {
	v, err := binary.ReadVarint(d.r)
	if err != nil {
		return 0, fmt.Errorf("truncated binary payload: %w", err)
	}
	return v, nil
}

func (d *binaryDecoder) DecodeFloat() (float64, error) {
	var scratch [8]byte
	if _, err := io.ReadFull(d.r, scratch[:]); err != nil {
		return 0, fmt.Errorf("truncated binary payload: %w", err)
	}
	return math.Float64frombits(binary.BigEndian.Uint64(scratch[:])), nil
}

func (d *binaryDecoder) DecodeString() (string, error) {
	length, err := binary.ReadUvarint(d.r)
	if err != nil {
		return "", fmt.Errorf("truncated binary payload: %w", err)
	}
	if length > uint64(d.r.Len()) {
		return "", fmt.Errorf("malformed binary payload: string length %d exceeds remaining input", length)
	}
	raw := make([]byte, length)
	if _, err := io.ReadFull(d.r, raw); err != nil {
		return "", fmt.Errorf("truncated binary payload: %w", err)
	}
	return string(raw), nil
}

func (d *binaryDecoder) DecodeBool() (bool, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return false, fmt.Errorf("truncated binary payload: %w", err)
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("malformed binary payload: bool byte %#x", b)
	}
}
