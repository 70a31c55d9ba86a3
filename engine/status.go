package engine

import "fmt"

// Status is an engine failure code.
type Status uint32

const (
	StatusInvalidHandle       Status = 0xC0000008
	StatusInvalidParameter    Status = 0xC000000D
	StatusBufferTooSmall      Status = 0xC0000023
	StatusObjectNameCollision Status = 0xC0000035
	StatusNotSupported        Status = 0xC00000BB
	StatusInvalidBufferSize   Status = 0xC0000206
	StatusNotFound            Status = 0xC0000225
)

var statusNames = map[Status]string{
	StatusInvalidHandle:       "invalid handle",
	StatusInvalidParameter:    "invalid parameter",
	StatusBufferTooSmall:      "buffer too small",
	StatusObjectNameCollision: "object name collision",
	StatusNotSupported:        "not supported",
	StatusInvalidBufferSize:   "invalid buffer size",
	StatusNotFound:            "not found",
}

func (s Status) Error() string {
	name, ok := statusNames[s]
	if !ok {
		name = "unknown status"
	}
	return fmt.Sprintf("engine: %s (0x%08X)", name, uint32(s))
}
