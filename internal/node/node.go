// Package node runs one agent: a role handler bound to a transport.
package node

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/senutpal/multipaxos/internal/paxos"
	"github.com/senutpal/multipaxos/internal/transport"
)

const receivePoll = 100 * time.Millisecond

// Node owns the receive loop for one agent. Handling is strictly
// sequential: one datagram is decoded, dispatched and answered at a
// time, so role state needs no coordination beyond its own lock.
type Node struct {
	name    string
	handler paxos.Handler
	tr      transport.Transport
	log     *logrus.Entry

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func New(name string, h paxos.Handler, tr transport.Transport, logger *logrus.Logger) *Node {
	return &Node{
		name:    name,
		handler: h,
		tr:      tr,
		log:     logger.WithField("agent", name),
	}
}

func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.running {
		return nil
	}
	n.running = true
	n.stopCh = make(chan struct{})
	n.wg.Add(1)
	go n.receiveLoop()
	n.log.Info("listening")
	return nil
}

func (n *Node) Stop() error {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return nil
	}
	n.running = false
	close(n.stopCh)
	n.mu.Unlock()
	n.wg.Wait()
	return n.tr.Close()
}

func (n *Node) receiveLoop() {
	defer n.wg.Done()
	for {
		select {
		case <-n.stopCh:
			return
		default:
		}

		frame, err := n.tr.Receive(receivePoll)
		if err == transport.ErrTimeout {
			continue
		}
		if err == transport.ErrClosed {
			return
		}
		if err != nil {
			n.log.WithError(err).Warn("receive failed")
			continue
		}

		msg, err := paxos.Decode(frame)
		if err != nil {
			// Malformed or unknown frames are dropped; the agent
			// must keep serving.
			n.log.WithError(err).Debug("dropping frame")
			continue
		}

		if err := n.Send(n.handler.Handle(msg)); err != nil {
			n.log.WithError(err).Warn("send failed")
		}
	}
}

// Send encodes and broadcasts envelopes. It is also the path by which
// the client's stdin loop injects submissions.
func (n *Node) Send(envs []paxos.Envelope) error {
	for _, env := range envs {
		frame, err := env.Msg.Encode()
		if err != nil {
			return errors.Wrapf(err, "encoding %s", env.Msg.Data.Phase())
		}
		if err := n.tr.Broadcast(string(env.Group), frame); err != nil {
			return err
		}
	}
	return nil
}
