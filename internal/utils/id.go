package utils

import "github.com/google/uuid"

// NewID returns a random identifier for correlating requests and connections in logs.
func NewID() string {
	return uuid.NewString()
}
