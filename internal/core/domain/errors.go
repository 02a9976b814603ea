package domain

import "errors"

var (
	ErrInvalidID = errors.New("invalid id format")
	ErrForbidden = errors.New("access forbidden")
)

// ErrUnsupportedImage is returned for uploads that are not decodable images.
var ErrUnsupportedImage = errors.New("unsupported image format")
