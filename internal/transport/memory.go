package transport

import (
	"sync"
	"time"
)

// Network is a process-local hub of named groups for tests. Delivery
// mimics UDP: a member whose inbox is full loses the frame.
type Network struct {
	mu      sync.Mutex
	members map[string][]*Memory
}

func NewNetwork() *Network {
	return &Network{members: map[string][]*Memory{}}
}

// Join adds a member to a group and returns its transport.
func (n *Network) Join(group string) *Memory {
	m := &Memory{
		net:    n,
		inbox:  make(chan []byte, 128),
		closed: make(chan struct{}),
	}
	n.mu.Lock()
	n.members[group] = append(n.members[group], m)
	n.mu.Unlock()
	return m
}

// Memory is one member's view of a Network.
type Memory struct {
	net       *Network
	inbox     chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func (m *Memory) Broadcast(group string, payload []byte) error {
	select {
	case <-m.closed:
		return ErrClosed
	default:
	}

	m.net.mu.Lock()
	members := append([]*Memory(nil), m.net.members[group]...)
	m.net.mu.Unlock()

	frame := append([]byte(nil), payload...)
	for _, member := range members {
		select {
		case <-member.closed:
		case member.inbox <- frame:
		default: // inbox full: the datagram is lost
		}
	}
	return nil
}

func (m *Memory) Receive(timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case frame := <-m.inbox:
		return frame, nil
	case <-m.closed:
		return nil, ErrClosed
	case <-timer.C:
		return nil, ErrTimeout
	}
}

func (m *Memory) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}
