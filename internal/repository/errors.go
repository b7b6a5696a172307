package repository

import "errors"

var (
	// ErrEmptyBlob indicates the downloaded blob had no content
	ErrEmptyBlob = errors.New("blob is empty")
)
