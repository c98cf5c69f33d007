package source

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// The audit metrics service speaks plain protobuf. Its four message shapes are
// small enough to encode by hand with protowire, which keeps generated code
// out of the tree while staying wire compatible.

type wireMessage interface {
	appendWire(b []byte) []byte
	consumeWire(b []byte) error
}

// metricsRequest is MetricsRequest{tenant_id = 1}.
type metricsRequest struct {
	TenantID string
}

// activeUsersRequest is ActiveUsersRequest{tenant_id = 1, days = 2}.
type activeUsersRequest struct {
	TenantID string
	Days     int32
}

// dateRangeRequest is DateRangeRequest{tenant_id = 1, start_date = 2, end_date = 3}
// with RFC 3339 timestamps.
type dateRangeRequest struct {
	TenantID  string
	StartDate string
	EndDate   string
}

// countResponse is CountResponse{count = 1}.
type countResponse struct {
	Count int64
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func (m *metricsRequest) appendWire(b []byte) []byte {
	return appendString(b, 1, m.TenantID)
}

func (m *activeUsersRequest) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.TenantID)
	return appendVarint(b, 2, uint64(int64(m.Days)))
}

func (m *dateRangeRequest) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.TenantID)
	b = appendString(b, 2, m.StartDate)
	return appendString(b, 3, m.EndDate)
}

func (m *countResponse) appendWire(b []byte) []byte {
	return appendVarint(b, 1, uint64(m.Count))
}

// walkFields calls fn for every field in b. Unknown fields are skipped.
func walkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n == 0 {
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}

func consumeString(typ protowire.Type, b []byte, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return 0, nil
	}
	s, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = s
	return n, nil
}

func consumeVarint(typ protowire.Type, b []byte, dst *uint64) (int, error) {
	if typ != protowire.VarintType {
		return 0, nil
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = v
	return n, nil
}

func (m *metricsRequest) consumeWire(b []byte) error {
	*m = metricsRequest{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeString(typ, b, &m.TenantID)
		}
		return 0, nil
	})
}

func (m *activeUsersRequest) consumeWire(b []byte) error {
	*m = activeUsersRequest{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.TenantID)
		case 2:
			var v uint64
			n, err := consumeVarint(typ, b, &v)
			m.Days = int32(v)
			return n, err
		}
		return 0, nil
	})
}

func (m *dateRangeRequest) consumeWire(b []byte) error {
	*m = dateRangeRequest{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.TenantID)
		case 2:
			return consumeString(typ, b, &m.StartDate)
		case 3:
			return consumeString(typ, b, &m.EndDate)
		}
		return 0, nil
	})
}

func (m *countResponse) consumeWire(b []byte) error {
	*m = countResponse{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			var v uint64
			n, err := consumeVarint(typ, b, &v)
			m.Count = int64(v)
			return n, err
		}
		return 0, nil
	})
}

// wireCodec is registered on the client connection in place of the default
// proto codec. It keeps the "proto" name so the content-type on the wire is
// unchanged.
type wireCodec struct{}

func (wireCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("wire codec: cannot marshal %T", v)
	}
	return m.appendWire(nil), nil
}

func (wireCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("wire codec: cannot unmarshal into %T", v)
	}
	return m.consumeWire(data)
}

func (wireCodec) Name() string { return "proto" }
