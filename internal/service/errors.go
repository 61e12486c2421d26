package service

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrNotHost        = errors.New("only the host can do that")
	ErrNotReady       = errors.New("not every member is ready")
	ErrCodeExhaustion = errors.New("could not allocate an unused room code")
	ErrUnknownGame    = errors.New("unknown game type")
)

// errorCode is the machine-readable code clients switch on.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "ROOM_NOT_FOUND"
	case errors.Is(err, ErrRoomFull):
		return "ROOM_FULL"
	case errors.Is(err, ErrNotHost):
		return "NOT_HOST"
	case errors.Is(err, ErrNotReady):
		return "NOT_READY"
	case errors.Is(err, ErrCodeExhaustion):
		return "CODE_EXHAUSTION"
	case errors.Is(err, ErrUnknownGame):
		return "UNKNOWN_GAME"
	}
	return "INTERNAL"
}
