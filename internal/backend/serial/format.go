package serial

// Format is a pluggable wire format. A format only sees the structural
// callbacks below; member ordering and type layout come from the reflected
// model, so every format serializes the same member sequence.
type Format interface {
	// Name is the identifier used in @serializable(...) arguments and in
	// generated declaration names (to_<name>, from_<name>).
	Name() string

	// NewEncoder starts an empty encode session.
	NewEncoder() Encoder

	// NewDecoder starts a decode session over a serialized payload.
	NewDecoder(data []byte) (Decoder, error)
}

// Encoder receives structural events in member declaration order
type Encoder interface {
	BeginObject()
	BeginMember(name string)
	EndObject()

	// BeginArray announces a sequence of count elements. Formats that
	// delimit arrays structurally may ignore the count.
	BeginArray(count int)
	BeginElement()
	EndArray()

	EncodeInt(v int64)
	EncodeFloat(v float64)
	EncodeString(v string)
	EncodeBool(v bool)

	// Bytes finalizes the session and returns the payload.
	Bytes() ([]byte, error)
}

// Decoder mirrors Encoder. The caller drives it from the reflected member
// list, so a decoder never needs to discover structure on its own, except
// for array termination which MoreElements reports.
type Decoder interface {
	BeginObject() error
	BeginMember(name string) error
	EndObject() error

	BeginArray() error
	MoreElements() (bool, error)
	EndArray() error

	DecodeInt() (int64, error)
	DecodeFloat() (float64, error)
	DecodeString() (string, error)
	DecodeBool() (bool, error)
}
