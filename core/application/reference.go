package application

import (
	nanoid "github.com/matoous/go-nanoid/v2"
)

const (
	referencePrefix   = "CT-"
	referenceAlphabet = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	referenceLength   = 10
)

// NewReference returns a new human friendly application reference (CT-7K2M9QX4B1).
func NewReference() (string, error) {
	id, err := nanoid.Generate(referenceAlphabet, referenceLength)
	if err != nil {
		return "", err
	}
	return referencePrefix + id, nil
}
