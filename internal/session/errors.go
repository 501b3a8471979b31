package session

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")

	ErrSessionExists = errors.New("session already exists")
)
