package config

import "errors"

var (
	// ErrKeyNotFound is returned when no layer defines the requested key.
	ErrKeyNotFound = errors.New("config: key not found")

	// ErrProjectNotFound is returned when no project marker exists between
	// the start directory and the filesystem root.
	ErrProjectNotFound = errors.New("config: not inside a project")

	// ErrConfigMissing is returned when a config file does not exist.
	ErrConfigMissing = errors.New("config: file does not exist")

	// ErrConfigMalformed is returned for unparsable files and invalid values.
	ErrConfigMalformed = errors.New("config: malformed")
)
