package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Action layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrUnknownRecord = "E_UNKNOWN_RECORD"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrNoResource    = "E_NO_RESOURCE"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrUnknownRecord:   {},
	ErrInvalidTarget:   {},
	ErrNoResource:      {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
