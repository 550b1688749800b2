package domain

import "errors"

var (
	ErrAuthentication     = errors.New("invalid or missing credential")
	ErrAuthorization      = errors.New("user not permitted in this room")
	ErrRoomNotFound       = errors.New("room not found")
	ErrConnectionNotFound = errors.New("connection not found")
	ErrConnectionClosed   = errors.New("connection closed")
	ErrInvalidRoomID      = errors.New("invalid room id")
	ErrInvalidMessage     = errors.New("invalid message")
	ErrEmptySnapshot      = errors.New("empty whiteboard snapshot")
	ErrNoPendingOffer     = errors.New("no pending offer for this pair")
)
