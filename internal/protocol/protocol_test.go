package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/luciancaetano/wsconn"
)

// TestEncode tests the Encode function with various frames
func TestEncode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		frame      wsconn.Frame
		wantHeader byte
		wantError  error
	}{
		{
			name:       "final text frame",
			frame:      wsconn.Frame{Type: wsconn.TextMessage, Payload: []byte("hello"), Final: true},
			wantHeader: 0x81,
		},
		{
			name:       "non-final binary frame",
			frame:      wsconn.Frame{Type: wsconn.BinaryMessage, Payload: []byte{0x00, 0xFF}},
			wantHeader: 0x02,
		},
		{
			name:       "empty payload",
			frame:      wsconn.Frame{Type: wsconn.BinaryMessage, Payload: []byte{}, Final: true},
			wantHeader: 0x82,
		},
		{
			name:       "nil payload",
			frame:      wsconn.Frame{Type: wsconn.TextMessage, Final: true},
			wantHeader: 0x81,
		},
		{
			name:       "close frame is always final",
			frame:      wsconn.Frame{Type: wsconn.CloseMessage, CloseStatus: wsconn.CloseNormalClosure},
			wantHeader: 0x88,
		},
		{
			name:      "unknown message type",
			frame:     wsconn.Frame{Type: 0x9, Final: true},
			wantError: wsconn.ErrInvalidMessageType,
		},
		{
			name:      "close frame with reserved status",
			frame:     wsconn.Frame{Type: wsconn.CloseMessage, CloseStatus: wsconn.CloseNoStatusReceived},
			wantError: wsconn.ErrInvalidCloseStatus,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := Encode(tt.frame)

			if tt.wantError != nil {
				if !errors.Is(err, tt.wantError) {
					t.Errorf("Encode() error = %v, want %v", err, tt.wantError)
				}
				return
			}
			if err != nil {
				t.Fatalf("Encode() failed: %v", err)
			}

			if result[0] != tt.wantHeader {
				t.Errorf("header = %#x, want %#x", result[0], tt.wantHeader)
			}

			if tt.frame.Type.IsData() && !bytes.Equal(result[headerSize:], tt.frame.Payload) {
				t.Errorf("encoded payload = %v, want %v", result[headerSize:], tt.frame.Payload)
			}
		})
	}
}

// TestEncodePayloadTooLarge tests the payload size limit
func TestEncodePayloadTooLarge(t *testing.T) {
	t.Parallel()

	if _, err := Encode(wsconn.Frame{Type: wsconn.BinaryMessage, Payload: make([]byte, maxPayloadSize), Final: true}); err != nil {
		t.Errorf("payload at max size: unexpected error %v", err)
	}

	if _, err := Encode(wsconn.Frame{Type: wsconn.BinaryMessage, Payload: make([]byte, maxPayloadSize+1), Final: true}); err == nil {
		t.Error("payload exceeding max size: expected error")
	}
}

// TestDecode tests the Decode function with various inputs
func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		data        []byte
		wantType    wsconn.MessageType
		wantFinal   bool
		wantPayload []byte
		wantStatus  wsconn.CloseStatus
		wantDesc    string
		wantError   bool
	}{
		{
			name:        "final text frame",
			data:        []byte{0x81, 0x68, 0x65, 0x6C, 0x6C, 0x6F},
			wantType:    wsconn.TextMessage,
			wantFinal:   true,
			wantPayload: []byte("hello"),
		},
		{
			name:        "continued binary frame",
			data:        []byte{0x02, 0x41},
			wantType:    wsconn.BinaryMessage,
			wantPayload: []byte{0x41},
		},
		{
			name:        "exactly header size",
			data:        []byte{0x82},
			wantType:    wsconn.BinaryMessage,
			wantFinal:   true,
			wantPayload: []byte{},
		},
		{
			name:       "close frame with status and description",
			data:       []byte{0x88, 0x03, 0xE8, 0x62, 0x79, 0x65},
			wantType:   wsconn.CloseMessage,
			wantFinal:  true,
			wantStatus: wsconn.CloseNormalClosure,
			wantDesc:   "bye",
		},
		{
			name:       "close frame without payload",
			data:       []byte{0x88},
			wantType:   wsconn.CloseMessage,
			wantFinal:  true,
			wantStatus: wsconn.CloseNoStatusReceived,
		},
		{
			name:      "data too short - empty",
			data:      []byte{},
			wantError: true,
		},
		{
			name:      "unknown opcode",
			data:      []byte{0x89},
			wantError: true,
		},
		{
			name:      "fragmented close frame",
			data:      []byte{0x08, 0x03, 0xE8},
			wantError: true,
		},
		{
			name:      "close payload of one byte",
			data:      []byte{0x88, 0x03},
			wantError: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			frame, err := Decode(tt.data)

			if (err != nil) != tt.wantError {
				t.Errorf("Decode() error = %v, wantError %v", err, tt.wantError)
				return
			}

			if tt.wantError {
				if !errors.Is(err, wsconn.ErrProtocol) {
					t.Errorf("Decode() error = %v, want ErrProtocol", err)
				}
				return
			}

			if frame.Type != tt.wantType {
				t.Errorf("Decode() type = %v, want %v", frame.Type, tt.wantType)
			}

			if frame.Final != tt.wantFinal {
				t.Errorf("Decode() final = %v, want %v", frame.Final, tt.wantFinal)
			}

			if tt.wantType.IsData() && !bytes.Equal(frame.Payload, tt.wantPayload) {
				t.Errorf("Decode() payload = %v, want %v", frame.Payload, tt.wantPayload)
			}

			if frame.CloseStatus != tt.wantStatus {
				t.Errorf("Decode() close status = %v, want %v", frame.CloseStatus, tt.wantStatus)
			}

			if frame.CloseDescription != tt.wantDesc {
				t.Errorf("Decode() close description = %q, want %q", frame.CloseDescription, tt.wantDesc)
			}
		})
	}
}

// TestEncodeDecodeRoundTrip verifies that Encode and Decode are inverses
func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		frame wsconn.Frame
	}{
		{"text payload", wsconn.Frame{Type: wsconn.TextMessage, Payload: []byte("Hello, World!"), Final: true}},
		{"binary fragment", wsconn.Frame{Type: wsconn.BinaryMessage, Payload: []byte{0x00, 0x01, 0xFF}}},
		{"large payload", wsconn.Frame{Type: wsconn.BinaryMessage, Payload: make([]byte, 100*1024), Final: true}},
		{"close with unicode description", wsconn.Frame{Type: wsconn.CloseMessage, Final: true, CloseStatus: 3210, CloseDescription: "ContainingŬnicode."}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			encoded, err := Encode(tt.frame)
			if err != nil {
				t.Fatalf("Encode() failed: %v", err)
			}

			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode() failed: %v", err)
			}

			if decoded.Type != tt.frame.Type || decoded.Final != tt.frame.Final {
				t.Errorf("header = (%v, %v), want (%v, %v)", decoded.Type, decoded.Final, tt.frame.Type, tt.frame.Final)
			}

			if !bytes.Equal(decoded.Payload, tt.frame.Payload) {
				t.Errorf("payload mismatch: got %d bytes, want %d", len(decoded.Payload), len(tt.frame.Payload))
			}

			if decoded.CloseStatus != tt.frame.CloseStatus || decoded.CloseDescription != tt.frame.CloseDescription {
				t.Errorf("close = (%d, %q), want (%d, %q)", decoded.CloseStatus, decoded.CloseDescription, tt.frame.CloseStatus, tt.frame.CloseDescription)
			}
		})
	}
}

// TestEncodeClose tests close payload encoding and status validation
func TestEncodeClose(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		status      wsconn.CloseStatus
		description string
		wantError   error
	}{
		{"normal closure", wsconn.CloseNormalClosure, "", nil},
		{"application status", 4000, "app", nil},
		{"unassigned protocol status", 2000, "ignored", nil},
		{"max length description", wsconn.CloseNormalClosure, strings.Repeat("C", wsconn.MaxCloseDescriptionLength), nil},
		{"description one byte too long", wsconn.CloseNormalClosure, strings.Repeat("C", wsconn.MaxCloseDescriptionLength+1), wsconn.ErrInvalidCloseDescription},
		{"invalid UTF-8 description", wsconn.CloseNormalClosure, "\xff\xfe", wsconn.ErrInvalidCloseDescription},
		{"below range", 999, "", wsconn.ErrInvalidCloseStatus},
		{"above range", 5000, "", wsconn.ErrInvalidCloseStatus},
		{"reserved 1004", 1004, "", wsconn.ErrInvalidCloseStatus},
		{"no status received sentinel", wsconn.CloseNoStatusReceived, "", wsconn.ErrInvalidCloseStatus},
		{"abnormal closure sentinel", wsconn.CloseAbnormalClosure, "", wsconn.ErrInvalidCloseStatus},
		{"TLS handshake sentinel", wsconn.CloseTLSHandshake, "", wsconn.ErrInvalidCloseStatus},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			payload, err := EncodeClose(tt.status, tt.description)

			if tt.wantError != nil {
				if !errors.Is(err, tt.wantError) {
					t.Errorf("EncodeClose() error = %v, want %v", err, tt.wantError)
				}
				return
			}
			if err != nil {
				t.Fatalf("EncodeClose() failed: %v", err)
			}

			if got := wsconn.CloseStatus(binary.BigEndian.Uint16(payload)); got != tt.status {
				t.Errorf("encoded status = %d, want %d", got, tt.status)
			}

			if got := string(payload[closeStatusSize:]); got != tt.description {
				t.Errorf("encoded description = %q, want %q", got, tt.description)
			}
		})
	}
}

// TestDecodeClose tests close payload decoding of peer frames
func TestDecodeClose(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		payload    []byte
		wantStatus wsconn.CloseStatus
		wantDesc   string
		wantError  bool
	}{
		{"empty payload", nil, wsconn.CloseNoStatusReceived, "", false},
		{"status only", []byte{0x03, 0xE8}, wsconn.CloseNormalClosure, "", false},
		{"status and description", []byte{0x03, 0xE9, 'a', 'w', 'a', 'y'}, wsconn.CloseGoingAway, "away", false},
		{"single byte", []byte{0x03}, 0, "", true},
		{"explicit 1005 on the wire", []byte{0x03, 0xED}, 0, "", true},
		{"explicit 1006 on the wire", []byte{0x03, 0xEE}, 0, "", true},
		{"status below range", []byte{0x00, 0x01}, 0, "", true},
		{"invalid UTF-8", []byte{0x03, 0xE8, 0xff}, 0, "", true},
		{"payload over control limit", append([]byte{0x03, 0xE8}, make([]byte, wsconn.MaxCloseDescriptionLength+1)...), 0, "", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			status, desc, err := DecodeClose(tt.payload)

			if (err != nil) != tt.wantError {
				t.Errorf("DecodeClose() error = %v, wantError %v", err, tt.wantError)
				return
			}

			if tt.wantError {
				if !errors.Is(err, wsconn.ErrProtocol) {
					t.Errorf("DecodeClose() error = %v, want ErrProtocol", err)
				}
				return
			}

			if status != tt.wantStatus {
				t.Errorf("DecodeClose() status = %d, want %d", status, tt.wantStatus)
			}

			if desc != tt.wantDesc {
				t.Errorf("DecodeClose() description = %q, want %q", desc, tt.wantDesc)
			}
		})
	}
}

// TestEncodePreservesInput tests that Encode doesn't modify the input payload
func TestEncodePreservesInput(t *testing.T) {
	t.Parallel()

	payload := []byte{0x01, 0x02, 0x03, 0x04}
	payloadCopy := make([]byte, len(payload))
	copy(payloadCopy, payload)

	_, err := Encode(wsconn.Frame{Type: wsconn.BinaryMessage, Payload: payload, Final: true})
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}

	if !bytes.Equal(payload, payloadCopy) {
		t.Errorf("Encode() modified input payload: got %v, want %v", payload, payloadCopy)
	}
}

// BenchmarkEncode benchmarks the encoding operation
func BenchmarkEncode(b *testing.B) {
	frame := wsconn.Frame{Type: wsconn.TextMessage, Payload: []byte("benchmark test payload with some data"), Final: true}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Encode(frame)
	}
}

// BenchmarkDecode benchmarks the decoding operation
func BenchmarkDecode(b *testing.B) {
	data, _ := Encode(wsconn.Frame{Type: wsconn.TextMessage, Payload: []byte("benchmark test payload with some data"), Final: true})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Decode(data)
	}
}
