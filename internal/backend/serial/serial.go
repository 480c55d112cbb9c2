package serial

import (
	"fmt"
	"sort"
	"sync"

	"github.com/metaforge-lang/metaforge/compiler/errors"
	"github.com/metaforge-lang/metaforge/internal/meta/model"
	"github.com/metaforge-lang/metaforge/internal/meta/query"
)

// Core drives serialization for any reflected class type by walking its
// data members in declaration order. Formats are registered once at startup
// and looked up by name afterwards.
type Core struct {
	engine *query.Engine

	mu      sync.RWMutex
	formats map[string]Format
}

// NewCore creates a serialization core over a sealed unit's query engine
func NewCore(engine *query.Engine) *Core {
	return &Core{
		engine:  engine,
		formats: make(map[string]Format),
	}
}

// RegisterFormat adds a wire format. Registering the same name twice is a
// programming error.
func (c *Core) RegisterFormat(f Format) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.formats[f.Name()]; exists {
		return fmt.Errorf("format %q already registered", f.Name())
	}
	c.formats[f.Name()] = f
	return nil
}

// Format looks up a registered wire format by name
func (c *Core) Format(name string) (Format, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.formats[name]
	return f, ok
}

// FormatNames returns the registered format names in sorted order
func (c *Core) FormatNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.formats))
	for name := range c.formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Serialize encodes a value in the named format, visiting data members in
// declaration order
func (c *Core) Serialize(v *Value, formatName string) ([]byte, error) {
	format, ok := c.Format(formatName)
	if !ok {
		return nil, &BackendError{
			Code:    errors.ErrUnknownFormat,
			Message: fmt.Sprintf("no format registered as %q", formatName),
		}
	}
	enc := format.NewEncoder()
	if err := c.encodeObject(enc, v); err != nil {
		return nil, err
	}
	return enc.Bytes()
}

// Deserialize decodes a payload into a value of the given reflected type
func (c *Core) Deserialize(data []byte, t model.Handle, formatName string) (*Value, error) {
	format, ok := c.Format(formatName)
	if !ok {
		return nil, &BackendError{
			Code:    errors.ErrUnknownFormat,
			Message: fmt.Sprintf("no format registered as %q", formatName),
		}
	}
	dec, err := format.NewDecoder(data)
	if err != nil {
		return nil, err
	}
	return c.decodeObject(dec, t)
}

func (c *Core) encodeObject(enc Encoder, v *Value) error {
	if err := c.requireClass(v.Type); err != nil {
		return err
	}
	members, err := c.engine.DataMembersOf(v.Type)
	if err != nil {
		return err
	}
	enc.BeginObject()
	for member := range members {
		name, err := c.engine.NameOf(member)
		if err != nil {
			return err
		}
		enc.BeginMember(name)
		field, ok := v.Get(name)
		if !ok {
			return &BackendError{
				Code:    errors.ErrUnsupportedMemberType,
				Message: "value has no data for member",
				Member:  name,
			}
		}
		memberType, err := c.engine.TypeOf(member)
		if err != nil {
			return err
		}
		if err := c.encodeValue(enc, memberType, name, field); err != nil {
			return err
		}
	}
	enc.EndObject()
	return nil
}

func (c *Core) encodeValue(enc Encoder, t model.Handle, member string, field interface{}) error {
	class, err := c.classify(t)
	if err != nil {
		return err
	}
	switch class {
	case classInt:
		v, ok := field.(int64)
		if !ok {
			return unsupportedMember(member, fmt.Sprintf("expected int value, got %T", field))
		}
		enc.EncodeInt(v)
	case classFloat:
		v, ok := field.(float64)
		if !ok {
			return unsupportedMember(member, fmt.Sprintf("expected float value, got %T", field))
		}
		enc.EncodeFloat(v)
	case classString:
		s, ok := field.(string)
		if !ok {
			return unsupportedMember(member, fmt.Sprintf("expected string value, got %T", field))
		}
		enc.EncodeString(s)
	case classBool:
		b, ok := field.(bool)
		if !ok {
			return unsupportedMember(member, fmt.Sprintf("expected bool value, got %T", field))
		}
		enc.EncodeBool(b)
	case classSequence:
		elems, ok := field.([]interface{})
		if !ok {
			return unsupportedMember(member, fmt.Sprintf("expected sequence value, got %T", field))
		}
		elem, err := c.engine.ElementOf(t)
		if err != nil {
			return err
		}
		enc.BeginArray(len(elems))
		for _, el := range elems {
			enc.BeginElement()
			if err := c.encodeValue(enc, elem, member, el); err != nil {
				return err
			}
		}
		enc.EndArray()
	case classObject:
		nested, ok := field.(*Value)
		if !ok {
			return unsupportedMember(member, fmt.Sprintf("expected nested object, got %T", field))
		}
		if err := c.encodeObject(enc, nested); err != nil {
			return err
		}
	default:
		return c.unsupportedType(t, member)
	}
	return nil
}

func (c *Core) decodeObject(dec Decoder, t model.Handle) (*Value, error) {
	if err := c.requireClass(t); err != nil {
		return nil, err
	}
	members, err := c.engine.DataMembersOf(t)
	if err != nil {
		return nil, err
	}
	if err := dec.BeginObject(); err != nil {
		return nil, err
	}
	v := NewValue(t)
	for member := range members {
		name, err := c.engine.NameOf(member)
		if err != nil {
			return nil, err
		}
		if err := dec.BeginMember(name); err != nil {
			return nil, err
		}
		memberType, err := c.engine.TypeOf(member)
		if err != nil {
			return nil, err
		}
		field, err := c.decodeValue(dec, memberType, name)
		if err != nil {
			return nil, err
		}
		v.Set(name, field)
	}
	if err := dec.EndObject(); err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Core) decodeValue(dec Decoder, t model.Handle, member string) (interface{}, error) {
	class, err := c.classify(t)
	if err != nil {
		return nil, err
	}
	switch class {
	case classInt:
		return dec.DecodeInt()
	case classFloat:
		return dec.DecodeFloat()
	case classString:
		return dec.DecodeString()
	case classBool:
		return dec.DecodeBool()
	case classSequence:
		if err := dec.BeginArray(); err != nil {
			return nil, err
		}
		elem, err := c.engine.ElementOf(t)
		if err != nil {
			return nil, err
		}
		elems := []interface{}{}
		for {
			more, err := dec.MoreElements()
			if err != nil {
				return nil, err
			}
			if !more {
				break
			}
			el, err := c.decodeValue(dec, elem, member)
			if err != nil {
				return nil, err
			}
			elems = append(elems, el)
		}
		if err := dec.EndArray(); err != nil {
			return nil, err
		}
		return elems, nil
	case classObject:
		return c.decodeObject(dec, t)
	default:
		return nil, c.unsupportedType(t, member)
	}
}

// typeClass partitions member types for serialization dispatch
type typeClass int

const (
	classUnsupported typeClass = iota
	classInt
	classFloat
	classString
	classBool
	classSequence
	classObject
)

func (c *Core) classify(t model.Handle) (typeClass, error) {
	if ok, err := c.engine.IsFloat(t); err != nil {
		return classUnsupported, err
	} else if ok {
		return classFloat, nil
	}
	if ok, err := c.engine.IsArithmetic(t); err != nil {
		return classUnsupported, err
	} else if ok {
		return classInt, nil
	}
	if ok, err := c.engine.IsString(t); err != nil {
		return classUnsupported, err
	} else if ok {
		return classString, nil
	}
	if ok, err := c.engine.IsBool(t); err != nil {
		return classUnsupported, err
	} else if ok {
		return classBool, nil
	}
	if ok, err := c.engine.IsSequence(t); err != nil {
		return classUnsupported, err
	} else if ok {
		return classSequence, nil
	}
	if ok, err := c.engine.IsClass(t); err != nil {
		return classUnsupported, err
	} else if ok {
		return classObject, nil
	}
	return classUnsupported, nil
}

func (c *Core) requireClass(t model.Handle) error {
	ok, err := c.engine.IsClass(t)
	if err != nil {
		return err
	}
	if !ok {
		return c.unsupportedType(t, "")
	}
	return nil
}

func (c *Core) unsupportedType(t model.Handle, member string) error {
	name, err := c.engine.NameOf(t)
	if err != nil {
		name = "<invalid>"
	}
	return unsupportedMember(member, fmt.Sprintf("type %s has no serialized form", name))
}
