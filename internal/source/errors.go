package source

import "errors"

var (
	ErrNetwork           = errors.New("network error")
	ErrIntegrity         = errors.New("integrity error")
	ErrUnsupportedFormat = errors.New("unsupported archive format")
)
