package core

import "github.com/google/uuid"

// NewUUIDv7 generates a time-ordered id for events and requests.
func NewUUIDv7() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
