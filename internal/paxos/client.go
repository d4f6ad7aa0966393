package paxos

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Client assigns instance numbers and submits values. The counter is
// process-local; the REQUEST is also broadcast to the client group so
// peer clients can bump their counters past instances already claimed.
// That sync is best-effort only: two clients submitting concurrently
// can still claim the same instance.
type Client struct {
	mu   sync.Mutex
	next uint64
	log  *logrus.Entry
}

func NewClient(id int, logger *logrus.Logger) *Client {
	return &Client{
		log: logger.WithFields(logrus.Fields{"role": "client", "id": id}),
	}
}

// Submit claims the next instance for v and returns the REQUEST for the
// proposer group plus the counter-sync copy for the client group.
func (c *Client) Submit(v string) []Envelope {
	c.mu.Lock()
	instance := c.next
	c.next++
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{"instance": instance, "v": v}).Info("submitting")
	req := Message{Instance: instance, Data: Request{V: v}}
	return []Envelope{
		{Group: GroupClients, Msg: req},
		{Group: GroupProposers, Msg: req},
	}
}

// Handle advances the instance counter past any instance a peer has
// claimed. The payload is irrelevant; only the instance number matters.
// Our own broadcasts loop back here with instance == next-1, a no-op.
func (c *Client) Handle(m Message) []Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m.Instance >= c.next {
		c.next = m.Instance + 1
	}
	return nil
}

// NextInstance returns the instance the next Submit will claim.
func (c *Client) NextInstance() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}
