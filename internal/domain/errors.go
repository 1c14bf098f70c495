package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")

	// ErrRuleFormat is returned when a rule document is not a list of rule-shaped objects.
	ErrRuleFormat = errors.New("invalid rule format")

	// ErrSource marks a failure to list or fetch a blob from a log source.
	ErrSource = errors.New("log source error")
	// ErrDecode marks a blob that could not be decompressed or parsed at all.
	ErrDecode = errors.New("log decode error")
	// ErrNoLogs is returned when a prefix holds no objects.
	ErrNoLogs = errors.New("no logs found")
)
