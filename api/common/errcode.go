package common

import (
	"errors"
)

type ErrCode int64

const (
	SUCCESS             ErrCode = 0
	ILLEGAL_DATAFORMAT  ErrCode = 41001
	INVALID_METHOD      ErrCode = 42001
	INVALID_PARAMS      ErrCode = 42002
	SELF_REQUEST        ErrCode = 43001
	DUPLICATE_REQUEST   ErrCode = 43002
	ALREADY_FRIENDS     ErrCode = 43003
	NOT_FRIENDS         ErrCode = 43004
	NO_SUCH_REQUEST     ErrCode = 44001
	UNKNOWN_TARGET      ErrCode = 44002
	RECIPIENT_OFFLINE   ErrCode = 44003
	EXHAUSTED_NAMESPACE ErrCode = 45001
	INTERNAL_ERROR      ErrCode = 45002
)

// ErrName maps codes to the canonical names used in the `code` field of error
// frames on the wire.
var ErrName = map[ErrCode]string{
	SUCCESS:             "Success",
	ILLEGAL_DATAFORMAT:  "IllegalDataFormat",
	INVALID_METHOD:      "InvalidMethod",
	INVALID_PARAMS:      "InvalidParams",
	SELF_REQUEST:        "SelfRequest",
	DUPLICATE_REQUEST:   "DuplicateRequest",
	ALREADY_FRIENDS:     "AlreadyFriends",
	NOT_FRIENDS:         "NotFriends",
	NO_SUCH_REQUEST:     "NoSuchRequest",
	UNKNOWN_TARGET:      "UnknownTarget",
	RECIPIENT_OFFLINE:   "RecipientOffline",
	EXHAUSTED_NAMESPACE: "ExhaustedNamespace",
	INTERNAL_ERROR:      "InternalError",
}

var ErrMessage = map[ErrCode]string{
	SUCCESS:             "SUCCESS",
	ILLEGAL_DATAFORMAT:  "unparseable frame",
	INVALID_METHOD:      "unknown frame type",
	INVALID_PARAMS:      "missing or invalid frame fields",
	SELF_REQUEST:        "cannot add yourself",
	DUPLICATE_REQUEST:   "friend request already sent",
	ALREADY_FRIENDS:     "already friends",
	NOT_FRIENDS:         "not friends with this user",
	NO_SUCH_REQUEST:     "no matching pending friend request",
	UNKNOWN_TARGET:      "user ID not found",
	RECIPIENT_OFFLINE:   "recipient is offline",
	EXHAUSTED_NAMESPACE: "identity namespace exhausted",
	INTERNAL_ERROR:      "internal error",
}

// StatusError is an error carrying a protocol error code. Per-request failures
// travel as StatusError up to the dispatch boundary, where they are turned
// into error frames for the originating client.
type StatusError struct {
	Code ErrCode
}

func (e StatusError) Error() string {
	return ErrMessage[e.Code]
}

func NewStatusError(code ErrCode) StatusError {
	return StatusError{Code: code}
}

// CodeOf extracts the error code from err, or INTERNAL_ERROR if err carries
// none.
func CodeOf(err error) ErrCode {
	if err == nil {
		return SUCCESS
	}
	var se StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return INTERNAL_ERROR
}
