package core

import (
	"crypto/rand"
	"math/big"
)

// RoomIDLength is the length of every room code.
const RoomIDLength = 6

const roomIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ValidRoomID reports whether id is exactly six characters from A-Z and 0-9.
func ValidRoomID(id string) bool {
	if len(id) != RoomIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// GenerateRoomID returns a random room code.
func GenerateRoomID() (string, error) {
	b := make([]byte, RoomIDLength)
	limit := big.NewInt(int64(len(roomIDAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = roomIDAlphabet[n.Int64()]
	}
	return string(b), nil
}
