package serial

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// JSONFormat serializes to compact JSON objects with members in declaration
// order: {"name":"Ada","age":36}
type JSONFormat struct{}

// NewJSONFormat creates the json wire format
func NewJSONFormat() *JSONFormat {
	return &JSONFormat{}
}

// Name implements Format
func (f *JSONFormat) Name() string { return "json" }

// NewEncoder implements Format
func (f *JSONFormat) NewEncoder() Encoder {
	return &jsonEncoder{}
}

// NewDecoder implements Format
func (f *JSONFormat) NewDecoder(data []byte) (Decoder, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return &jsonDecoder{dec: dec}, nil
}

type jsonEncoder struct {
	buf strings.Builder

	// counts tracks emitted entries per open object/array so separators
	// land between entries only
	counts []int

	// suppress skips the separator for the value right after a member key
	suppress bool
}

func (e *jsonEncoder) separate() {
	if e.suppress {
		e.suppress = false
		return
	}
	if len(e.counts) == 0 {
		return
	}
	top := len(e.counts) - 1
	if e.counts[top] > 0 {
		e.buf.WriteByte(',')
	}
	e.counts[top]++
}

func (e *jsonEncoder) BeginObject() {
	e.separate()
	e.buf.WriteByte('{')
	e.counts = append(e.counts, 0)
}

func (e *jsonEncoder) BeginMember(name string) {
	e.separate()
	e.buf.WriteString(strconv.Quote(name))
	e.buf.WriteByte(':')
	e.suppress = true
}

func (e *jsonEncoder) EndObject() {
	e.counts = e.counts[:len(e.counts)-1]
	e.buf.WriteByte('}')
}

func (e *jsonEncoder) BeginArray(count int) {
	e.separate()
	e.buf.WriteByte('[')
	e.counts = append(e.counts, 0)
}

func (e *jsonEncoder) BeginElement() {}

func (e *jsonEncoder) EndArray() {
	e.counts = e.counts[:len(e.counts)-1]
	e.buf.WriteByte(']')
}

func (e *jsonEncoder) EncodeInt(v int64) {
	e.separate()
	e.buf.WriteString(strconv.FormatInt(v, 10))
}

func (e *jsonEncoder) EncodeFloat(v float64) {
	e.separate()
	e.buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
}

func (e *jsonEncoder) EncodeString(v string) {
	e.separate()
	e.buf.WriteString(strconv.Quote(v))
}

func (e *jsonEncoder) EncodeBool(v bool) {
	e.separate()
	e.buf.WriteString(strconv.FormatBool(v))
}

func (e *jsonEncoder) Bytes() ([]byte, error) {
	return []byte(e.buf.String()), nil
}

type jsonDecoder struct {
	dec *json.Decoder
}

func (d *jsonDecoder) expectDelim(want rune) error {
	tok, err := d.dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || rune(delim) != want {
		return fmt.Errorf("malformed json: expected %q, got %v", want, tok)
	}
	return nil
}

func (d *jsonDecoder) BeginObject() error {
	return d.expectDelim('{')
}

func (d *jsonDecoder) BeginMember(name string) error {
	tok, err := d.dec.Token()
	if err != nil {
		return err
	}
	key, ok := tok.(string)
	if !ok {
		return fmt.Errorf("malformed json: expected member name, got %v", tok)
	}
	if key != name {
		return fmt.Errorf("malformed json: expected member %q, got %q", name, key)
	}
	return nil
}

func (d *jsonDecoder) EndObject() error {
	return d.expectDelim('}')
}

func (d *jsonDecoder) BeginArray() error {
	return d.expectDelim('[')
}

func (d *jsonDecoder) MoreElements() (bool, error) {
	return d.dec.More(), nil
}

func (d *jsonDecoder) EndArray() error {
	return d.expectDelim(']')
}

func (d *jsonDecoder) number() (json.Number, error) {
	tok, err := d.dec.Token()
	if err != nil {
		return "", err
	}
	num, ok := tok.(json.Number)
	if !ok {
		return "", fmt.Errorf("malformed json: expected number, got %v", tok)
	}
	return num, nil
}

func (d *jsonDecoder) DecodeInt() (int64, error) {
	num, err := d.number()
	if err != nil {
		return 0, err
	}
	return num.Int64()
}

func (d *jsonDecoder) DecodeFloat() (float64, error) {
	num, err := d.number()
	if err != nil {
		return 0, err
	}
	return num.Float64()
}

func (d *jsonDecoder) DecodeString() (string, error) {
	tok, err := d.dec.Token()
	if err != nil {
		return "", err
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("malformed json: expected string, got %v", tok)
	}
	return s, nil
}

func (d *jsonDecoder) DecodeBool() (bool, error) {
	tok, err := d.dec.Token()
	if err != nil {
		return false, err
	}
	b, ok := tok.(bool)
	if !ok {
		return false, fmt.Errorf("malformed json: expected bool, got %v", tok)
	}
	return b, nil
}
