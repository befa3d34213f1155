// Package codec turns raw MQTT payload bytes into typed values.
//
// A codec is a named decode function registered in a Registry. Decoding
// is fault-tolerant by contract: short input, parse errors, and panics
// inside a codec all surface as a failed decode, never as a crash. The
// pipeline drops the message and counts the error.
//
// The package also provides the byte/bit extractor that selects a slice
// of the payload before decoding. Extraction never fails either:
// out-of-range requests yield an empty buffer, which the downstream
// codec then rejects.
package codec
