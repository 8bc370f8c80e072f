package live

import "errors"

var (
	// ErrConnectionClosed is returned when sending to a closed connection.
	ErrConnectionClosed = errors.New("live: connection closed")

	// ErrSendBufferFull is returned when a slow client's send queue is full.
	// The frame is dropped for that client only.
	ErrSendBufferFull = errors.New("live: send buffer full")

	// ErrMalformedEvent is returned for client frames that are not a JSON
	// object with a string "type".
	ErrMalformedEvent = errors.New("live: malformed event")
)
