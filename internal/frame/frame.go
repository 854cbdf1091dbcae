// Package frame implements the RFC 6455 frame codec for unfragmented text
// frames. The decoder is deliberately lenient and single-frame-only:
// malformed or unsupported input never produces an error, it simply yields
// "no message", and the caller treats that as benign.
package frame

import "encoding/binary"

// WebSocket opcodes (RFC 6455 §5.2). Only text frames are decoded; the
// close opcode is used by the shutdown path's best-effort close frame.
const (
	OpcodeContinuation = 0x0
	OpcodeText         = 0x1
	OpcodeBinary       = 0x2
	OpcodeClose        = 0x8
	OpcodePing         = 0x9
	OpcodePong         = 0xA
)

const (
	finBit  = 0x80
	maskBit = 0x80

	len16Marker = 126
	len64Marker = 127
)

// EncodeText builds a single unfragmented, unmasked text frame.
// Server-to-client frames are never masked (RFC 6455 §5.1).
func EncodeText(text string) []byte {
	return encode(OpcodeText, []byte(text))
}

// EncodeClose builds an unmasked close frame carrying a status code and an
// optional reason. Used only for the best-effort close during shutdown and
// forced disconnects; incoming close frames are not interpreted.
func EncodeClose(code uint16, reason string) []byte {
	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload, code)
	copy(payload[2:], reason)
	return encode(OpcodeClose, payload)
}

func encode(opcode byte, payload []byte) []byte {
	length := len(payload)

	var header []byte
	switch {
	case length <= 125:
		header = []byte{finBit | opcode, byte(length)}
	case length <= 0xFFFF:
		header = make([]byte, 4)
		header[0] = finBit | opcode
		header[1] = len16Marker
		binary.BigEndian.PutUint16(header[2:], uint16(length))
	default:
		header = make([]byte, 10)
		header[0] = finBit | opcode
		header[1] = len64Marker
		binary.BigEndian.PutUint64(header[2:], uint64(length))
	}

	out := make([]byte, 0, len(header)+length)
	out = append(out, header...)
	out = append(out, payload...)
	return out
}

// DecodeText extracts the payload of a single unfragmented text frame.
// It returns ("", false) for anything else: short input, FIN=0, non-text
// opcodes, or a declared payload length exceeding the bytes actually
// available. It never reads out of bounds and never panics.
func DecodeText(data []byte) (string, bool) {
	if len(data) < 2 {
		return "", false
	}

	fin := data[0]&finBit != 0
	opcode := data[0] & 0x0F
	if !fin || opcode != OpcodeText {
		// Fragmented, binary and control frames are unsupported by design.
		return "", false
	}

	masked := data[1]&maskBit != 0
	length := uint64(data[1] & 0x7F)
	offset := 2

	switch length {
	case len16Marker:
		if len(data) < offset+2 {
			return "", false
		}
		length = uint64(binary.BigEndian.Uint16(data[offset:]))
		offset += 2
	case len64Marker:
		if len(data) < offset+8 {
			return "", false
		}
		length = binary.BigEndian.Uint64(data[offset:])
		offset += 8
	}

	var maskKey [4]byte
	if masked {
		if len(data) < offset+4 {
			return "", false
		}
		copy(maskKey[:], data[offset:offset+4])
		offset += 4
	}

	if uint64(len(data)-offset) < length {
		return "", false
	}

	payload := make([]byte, length)
	copy(payload, data[offset:offset+int(length)])
	if masked {
		for i := range payload {
			payload[i] ^= maskKey[i%4]
		}
	}

	return string(payload), true
}
