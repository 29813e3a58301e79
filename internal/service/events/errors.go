package events

import "errors"

var (
	ErrUploadFailed  = errors.New("featured image upload failed")
	ErrSlugExhausted = errors.New("could not allocate a unique slug")
)
