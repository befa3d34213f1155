package codec

// Extraction selects a byte or bit slice of a payload. Bit selection
// takes precedence when both BitOffset and BitLength are set. Endian is
// advisory here; multi-byte numeric codecs consume it.
type Extraction struct {
	BitOffset  *int   `json:"bitOffset,omitempty"  yaml:"bitOffset,omitempty"`
	BitLength  *int   `json:"bitLength,omitempty"  yaml:"bitLength,omitempty"`
	ByteOffset *int   `json:"byteOffset,omitempty" yaml:"byteOffset,omitempty"`
	ByteLength *int   `json:"byteLength,omitempty" yaml:"byteLength,omitempty"`
	Endian     string `json:"endian,omitempty"     yaml:"endian,omitempty"`
}

// Extract applies an extraction spec to a payload. A nil spec returns
// the payload unchanged. Out-of-range selections are truncated to the
// available range; a selection entirely past the payload end yields an
// empty buffer, never an error.
func Extract(payload []byte, spec *Extraction) []byte {
	if spec == nil {
		return payload
	}

	if spec.BitOffset != nil && spec.BitLength != nil {
		return extractBits(payload, *spec.BitOffset, *spec.BitLength)
	}

	offset := 0
	if spec.ByteOffset != nil {
		offset = *spec.ByteOffset
	}
	if offset < 0 || offset >= len(payload) {
		return []byte{}
	}

	end := len(payload)
	if spec.ByteLength != nil {
		end = offset + *spec.ByteLength
		if end > len(payload) {
			end = len(payload)
		}
	}
	if end <= offset {
		return []byte{}
	}
	return payload[offset:end]
}

// extractBits pulls a contiguous MSB-first bit run and right-aligns it
// in a fresh buffer, zero-padding the high bits.
func extractBits(payload []byte, bitOffset, bitLength int) []byte {
	totalBits := len(payload) * 8
	if bitOffset < 0 || bitLength <= 0 || bitOffset >= totalBits {
		return []byte{}
	}

	if bitOffset+bitLength > totalBits {
		bitLength = totalBits - bitOffset
	}

	out := make([]byte, (bitLength+7)/8)
	for i := 0; i < bitLength; i++ {
		abs := bitOffset + i
		bit := (payload[abs/8] >> (7 - abs%8)) & 1
		if bit == 0 {
			continue
		}
		// Position from the right edge of the output buffer.
		pos := bitLength - 1 - i
		out[len(out)-1-pos/8] |= 1 << (pos % 8)
	}
	return out
}
