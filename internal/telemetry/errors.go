package telemetry

import "errors"

// Sentinel kinds for durable-record errors. Callers branch with
// errors.Is: consistency rejections are logged and skipped, anything
// else from a write path is treated as fatal.
var (
	ErrNotFound     = errors.New("event record not found")
	ErrCorrupt      = errors.New("event record not decodable")
	ErrOutOfOrder   = errors.New("snapshot timestamp not after last appended")
	ErrPrePeriodOne = errors.New("score reported before period 1")
	ErrPromoted     = errors.New("event record already promoted")
)
