package flowsvc

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/danielpatrickdp/akinetopsia/internal/flow"
)

// #region messages
// ComputeRequest is akinetopsia.flow.v1.ComputeRequest.
type ComputeRequest struct {
	Prev flow.Frame
	Curr flow.Frame
}

// ComputeResponse is akinetopsia.flow.v1.ComputeResponse.
type ComputeResponse struct {
	Field flow.Field
}

var errMalformed = errors.New("malformed message")

// #endregion messages

// #region codec
// Codec is a gRPC codec for the messages of this package. It registers under
// the name "proto" because the bytes it produces are plain protobuf.
type Codec struct{}

type wireMessage interface {
	marshal() ([]byte, error)
	unmarshal([]byte) error
}

// Name implements encoding.Codec.
func (Codec) Name() string { return "proto" }

// Marshal implements encoding.Codec.
func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("flowsvc codec: cannot marshal %T", v)
	}
	return m.marshal()
}

// Unmarshal implements encoding.Codec.
func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("flowsvc codec: cannot unmarshal into %T", v)
	}
	return m.unmarshal(data)
}

// #endregion codec

// #region frame-wire
const (
	fieldWidth  protowire.Number = 1
	fieldHeight protowire.Number = 2
	fieldData   protowire.Number = 3

	fieldPrev protowire.Number = 1
	fieldCurr protowire.Number = 2
)

// maxDimension bounds a decoded width or height; products of two stay well
// inside uint64.
const maxDimension = math.MaxInt32

func dimension(v uint64) (int, error) {
	if v > maxDimension {
		return 0, fmt.Errorf("%w: dimension %d out of range", errMalformed, v)
	}
	return int(v), nil
}

func appendFrame(b []byte, f flow.Frame) []byte {
	b = protowire.AppendTag(b, fieldWidth, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Width))
	b = protowire.AppendTag(b, fieldHeight, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Height))
	b = protowire.AppendTag(b, fieldData, protowire.BytesType)
	return protowire.AppendBytes(b, f.Pix)
}

func consumeFrame(b []byte) (flow.Frame, error) {
	var f flow.Frame
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldWidth && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			w, err := dimension(v)
			f.Width = w
			return n, err
		case num == fieldHeight && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			h, err := dimension(v)
			f.Height = h
			return n, err
		case num == fieldData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n >= 0 {
				f.Pix = append([]uint8(nil), v...)
			}
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return flow.Frame{}, err
	}
	if uint64(len(f.Pix)) != uint64(f.Width)*uint64(f.Height) {
		return flow.Frame{}, fmt.Errorf("%w: frame %s carries %d bytes", errMalformed, f.Shape(), len(f.Pix))
	}
	return f, nil
}

// #endregion frame-wire

// #region request-wire
func (r *ComputeRequest) marshal() ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, fieldPrev, protowire.BytesType)
	b = protowire.AppendBytes(b, appendFrame(nil, r.Prev))
	b = protowire.AppendTag(b, fieldCurr, protowire.BytesType)
	b = protowire.AppendBytes(b, appendFrame(nil, r.Curr))
	return b, nil
}

func (r *ComputeRequest) unmarshal(b []byte) error {
	*r = ComputeRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType || (num != fieldPrev && num != fieldCurr) {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		f, err := consumeFrame(v)
		if err != nil {
			return n, err
		}
		if num == fieldPrev {
			r.Prev = f
		} else {
			r.Curr = f
		}
		return n, nil
	})
}

// #endregion request-wire

// #region response-wire
func (r *ComputeResponse) marshal() ([]byte, error) {
	f := r.Field
	if len(f.Vec) != 2*f.Width*f.Height {
		return nil, fmt.Errorf("%w: field %s carries %d components", errMalformed, f.Shape(), len(f.Vec))
	}
	b := make([]byte, 0, 16+4*len(f.Vec))
	b = protowire.AppendTag(b, fieldWidth, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Width))
	b = protowire.AppendTag(b, fieldHeight, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Height))

	packed := make([]byte, 0, 4*len(f.Vec))
	for _, v := range f.Vec {
		packed = protowire.AppendFixed32(packed, math.Float32bits(v))
	}
	b = protowire.AppendTag(b, fieldData, protowire.BytesType)
	return protowire.AppendBytes(b, packed), nil
}

func (r *ComputeResponse) unmarshal(b []byte) error {
	var f flow.Field
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldWidth && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			w, err := dimension(v)
			f.Width = w
			return n, err
		case num == fieldHeight && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			h, err := dimension(v)
			f.Height = h
			return n, err
		case num == fieldData && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			for len(packed) > 0 {
				v, m := protowire.ConsumeFixed32(packed)
				if m < 0 {
					return -1, fmt.Errorf("%w: truncated packed floats", errMalformed)
				}
				f.Vec = append(f.Vec, math.Float32frombits(v))
				packed = packed[m:]
			}
			return n, nil
		case num == fieldData && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			f.Vec = append(f.Vec, math.Float32frombits(v))
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return err
	}
	if uint64(len(f.Vec)) != 2*uint64(f.Width)*uint64(f.Height) {
		return fmt.Errorf("%w: field %s carries %d components", errMalformed, f.Shape(), len(f.Vec))
	}
	r.Field = f
	return nil
}

// #endregion response-wire

// #region walk
// walk iterates the fields of a message. fn consumes one field value and
// returns its length, negative on a protowire parse error.
func walk(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", errMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m < 0 {
			return fmt.Errorf("%w: field %d: %v", errMalformed, num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

// #endregion walk
