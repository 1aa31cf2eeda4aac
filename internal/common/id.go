package common

import (
	"github.com/google/uuid"
)

// NewElementID generates a unique element ID with the "elem_" prefix.
// Format: elem_<uuid>
func NewElementID() string {
	return "elem_" + uuid.New().String()
}

// NewInboxID generates a unique inbox element ID with the "inbox_" prefix.
// Format: inbox_<uuid>
func NewInboxID() string {
	return "inbox_" + uuid.New().String()
}
