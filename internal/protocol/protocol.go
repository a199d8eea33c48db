package protocol

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/luciancaetano/wsconn"
)

const (
	headerSize      = 1
	closeStatusSize = 2
	finBit          = 0x80
	opcodeMask      = 0x0F
	maxPayloadSize  = 10 * 1024 * 1024 // 10MB max payload size
)

// Encode encodes a frame as one header byte (FIN bit | opcode) followed by the payload.
// Close frames carry the status and description encoded by EncodeClose.
func Encode(frame wsconn.Frame) ([]byte, error) {
	payload := frame.Payload
	final := frame.Final

	switch frame.Type {
	case wsconn.TextMessage, wsconn.BinaryMessage:
	case wsconn.CloseMessage:
		p, err := EncodeClose(frame.CloseStatus, frame.CloseDescription)
		if err != nil {
			return nil, err
		}
		payload = p
		final = true
	default:
		return nil, fmt.Errorf("%w: %d", wsconn.ErrInvalidMessageType, frame.Type)
	}

	if len(payload) > maxPayloadSize {
		return nil, fmt.Errorf("payload size %d exceeds maximum %d bytes", len(payload), maxPayloadSize)
	}

	out := make([]byte, headerSize+len(payload))
	out[0] = byte(frame.Type) & opcodeMask
	if final {
		out[0] |= finBit
	}
	copy(out[headerSize:], payload)
	return out, nil
}

// Decode decodes a frame produced by Encode.
// The payload of a data frame references the input data for performance - do not modify it.
func Decode(data []byte) (wsconn.Frame, error) {
	if len(data) < headerSize {
		return wsconn.Frame{}, fmt.Errorf("%w: frame too short", wsconn.ErrProtocol)
	}

	payloadSize := len(data) - headerSize
	if payloadSize > maxPayloadSize {
		return wsconn.Frame{}, fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", wsconn.ErrProtocol, payloadSize, maxPayloadSize)
	}

	frame := wsconn.Frame{
		Type:  wsconn.MessageType(data[0] & opcodeMask),
		Final: data[0]&finBit != 0,
	}
	payload := data[headerSize:]

	switch frame.Type {
	case wsconn.TextMessage, wsconn.BinaryMessage:
		frame.Payload = payload
	case wsconn.CloseMessage:
		if !frame.Final {
			return wsconn.Frame{}, fmt.Errorf("%w: fragmented close frame", wsconn.ErrProtocol)
		}
		status, description, err := DecodeClose(payload)
		if err != nil {
			return wsconn.Frame{}, err
		}
		frame.CloseStatus = status
		frame.CloseDescription = description
	default:
		return wsconn.Frame{}, fmt.Errorf("%w: unknown opcode %#x", wsconn.ErrProtocol, byte(frame.Type))
	}
	return frame, nil
}

// EncodeClose builds a close frame payload: the status as a big-endian uint16 followed by the description.
func EncodeClose(status wsconn.CloseStatus, description string) ([]byte, error) {
	if !status.Sendable() {
		return nil, fmt.Errorf("%w: %d", wsconn.ErrInvalidCloseStatus, status)
	}
	if err := ValidateCloseDescription(description); err != nil {
		return nil, err
	}

	out := make([]byte, closeStatusSize+len(description))
	binary.BigEndian.PutUint16(out, uint16(status))
	copy(out[closeStatusSize:], description)
	return out, nil
}

// DecodeClose parses a close frame payload received from the peer.
// An empty payload yields CloseNoStatusReceived.
func DecodeClose(payload []byte) (wsconn.CloseStatus, string, error) {
	switch {
	case len(payload) == 0:
		return wsconn.CloseNoStatusReceived, "", nil
	case len(payload) < closeStatusSize:
		return 0, "", fmt.Errorf("%w: close payload of %d byte", wsconn.ErrProtocol, len(payload))
	case len(payload) > wsconn.MaxControlPayloadLength:
		return 0, "", fmt.Errorf("%w: close payload of %d bytes", wsconn.ErrProtocol, len(payload))
	}

	status := wsconn.CloseStatus(binary.BigEndian.Uint16(payload))
	if !status.Sendable() {
		return 0, "", fmt.Errorf("%w: invalid close status %d", wsconn.ErrProtocol, status)
	}

	description := payload[closeStatusSize:]
	if !utf8.Valid(description) {
		return 0, "", fmt.Errorf("%w: close description is not valid UTF-8", wsconn.ErrProtocol)
	}
	return status, string(description), nil
}

// ValidateCloseDescription checks the description of a close frame about to be sent.
func ValidateCloseDescription(description string) error {
	if len(description) > wsconn.MaxCloseDescriptionLength {
		return fmt.Errorf("%w: %d bytes", wsconn.ErrInvalidCloseDescription, len(description))
	}
	if !utf8.ValidString(description) {
		return wsconn.ErrInvalidCloseDescription
	}
	return nil
}
