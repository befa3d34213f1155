package codec

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/c360/i3xbridge/types"
)

// registerBuiltins installs the standard codec set.
func registerBuiltins(r *Registry) {
	r.Register("raw", decodeRaw)
	r.Register("utf8", decodeUTF8)
	r.Register("json", decodeJSON)
	r.Register("base64", decodeBase64)
	r.Register("uint8", fixedWidth(1, func(b []byte, _ binary.ByteOrder) float64 {
		return float64(b[0])
	}))
	r.Register("int8", fixedWidth(1, func(b []byte, _ binary.ByteOrder) float64 {
		return float64(int8(b[0]))
	}))
	r.Register("uint16", fixedWidth(2, func(b []byte, bo binary.ByteOrder) float64 {
		return float64(bo.Uint16(b))
	}))
	r.Register("int16", fixedWidth(2, func(b []byte, bo binary.ByteOrder) float64 {
		return float64(int16(bo.Uint16(b)))
	}))
	r.Register("uint32", fixedWidth(4, func(b []byte, bo binary.ByteOrder) float64 {
		return float64(bo.Uint32(b))
	}))
	r.Register("int32", fixedWidth(4, func(b []byte, bo binary.ByteOrder) float64 {
		return float64(int32(bo.Uint32(b)))
	}))
	r.Register("float32", fixedWidth(4, func(b []byte, bo binary.ByteOrder) float64 {
		return float64(math.Float32frombits(bo.Uint32(b)))
	}))
	r.Register("float64", fixedWidth(8, func(b []byte, bo binary.ByteOrder) float64 {
		return math.Float64frombits(bo.Uint64(b))
	}))
	r.Register("protobuf", decodeUnimplemented("protobuf"))
	r.Register("msgpack", decodeUnimplemented("msgpack"))
}

func decodeRaw(data []byte, _ Options) (types.Value, error) {
	return types.Bytes(data), nil
}

func decodeUTF8(data []byte, _ Options) (types.Value, error) {
	return types.String(string(data)), nil
}

func decodeJSON(data []byte, _ Options) (types.Value, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return types.Null(), fmt.Errorf("parse JSON: %w", err)
	}
	return types.FromAny(raw), nil
}

// decodeBase64 treats the payload as base64 text and yields the decoded
// bytes.
func decodeBase64(data []byte, _ Options) (types.Value, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return types.Null(), fmt.Errorf("parse base64: %w", err)
	}
	return types.Bytes(decoded), nil
}

// fixedWidth builds a numeric codec that requires at least width bytes
// and reads the leading width bytes in the configured byte order.
func fixedWidth(width int, read func([]byte, binary.ByteOrder) float64) DecodeFunc {
	return func(data []byte, opts Options) (types.Value, error) {
		if len(data) < width {
			return types.Null(), fmt.Errorf("need %d bytes, have %d", width, len(data))
		}
		return types.Number(read(data[:width], byteOrder(opts.Endian))), nil
	}
}

func byteOrder(endian string) binary.ByteOrder {
	if endian == "little" {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func decodeUnimplemented(name string) DecodeFunc {
	return func(_ []byte, _ Options) (types.Value, error) {
		return types.Null(), fmt.Errorf("codec %q is not implemented", name)
	}
}
