// Package transport moves encoded frames between role groups. The
// protocol assumes nothing from it: frames may be lost, duplicated or
// reordered.
package transport

import (
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrTimeout is returned by Receive when no frame arrived in time.
	ErrTimeout = errors.New("transport: receive timed out")

	// ErrClosed is returned once the transport has been closed.
	ErrClosed = errors.New("transport: closed")
)

// Transport is one agent's connection to the role groups. An agent
// receives only its own group's traffic but can broadcast to any group.
type Transport interface {
	// Broadcast sends payload to every member of the named group,
	// including the sender if it is a member.
	Broadcast(group string, payload []byte) error

	// Receive waits up to timeout for the next frame addressed to this
	// agent's group.
	Receive(timeout time.Duration) ([]byte, error)

	Close() error
}
