package wsconn

// CloseStatus is a 16-bit WebSocket close code.
type CloseStatus uint16

// Close codes defined by RFC6455 section 7.4.1 and the IANA registry.
const (
	CloseNormalClosure           CloseStatus = 1000
	CloseGoingAway               CloseStatus = 1001
	CloseProtocolError           CloseStatus = 1002
	CloseUnsupportedData         CloseStatus = 1003
	CloseNoStatusReceived        CloseStatus = 1005
	CloseAbnormalClosure         CloseStatus = 1006
	CloseInvalidFramePayloadData CloseStatus = 1007
	ClosePolicyViolation         CloseStatus = 1008
	CloseMessageTooBig           CloseStatus = 1009
	CloseMandatoryExtension      CloseStatus = 1010
	CloseInternalServerErr       CloseStatus = 1011
	CloseServiceRestart          CloseStatus = 1012
	CloseTryAgainLater           CloseStatus = 1013
	CloseTLSHandshake            CloseStatus = 1015
)

// Frame size limits.
const (
	// MaxControlPayloadLength is the largest payload a control frame may carry.
	MaxControlPayloadLength = 125

	// MaxCloseDescriptionLength is the largest UTF-8 encoded close description.
	// Two bytes of the control payload are taken by the status code.
	MaxCloseDescriptionLength = MaxControlPayloadLength - 2
)

// Sendable reports whether s may be written in a close frame.
//
// 1004 is reserved, and 1005, 1006 and 1015 are sentinels that only describe
// what an endpoint observed; none of them may appear on the wire.
func (s CloseStatus) Sendable() bool {
	if s < 1000 || s > 4999 {
		return false
	}
	switch s {
	case 1004, CloseNoStatusReceived, CloseAbnormalClosure, CloseTLSHandshake:
		return false
	}
	return true
}

// Reportable reports whether s is acceptable in a close frame read from the peer.
// CloseNoStatusReceived is reportable: it stands for a close frame with no payload.
func (s CloseStatus) Reportable() bool {
	return s == CloseNoStatusReceived || s.Sendable()
}
