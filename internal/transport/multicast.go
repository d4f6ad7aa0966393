package transport

import (
	"net"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/ipv4"
)

// maxDatagram bounds a received frame. Larger datagrams are dropped.
const maxDatagram = 4096

// Multicast is the production transport: each role owns an IPv4
// multicast group; an agent listens on its own group and sends to the
// others from a second socket. TTL is pinned to 1 and loopback enabled
// so co-located agents (and an agent's own group) see the traffic.
type Multicast struct {
	recv   *net.UDPConn
	send   *net.UDPConn
	groups map[string]*net.UDPAddr
}

// NewMulticast joins the group named own and prepares sends to every
// group in groups (addresses as "ip:port" strings keyed by role).
func NewMulticast(own string, groups map[string]string) (*Multicast, error) {
	resolved := make(map[string]*net.UDPAddr, len(groups))
	for role, addr := range groups {
		ua, err := net.ResolveUDPAddr("udp4", addr)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving %s group %q", role, addr)
		}
		resolved[role] = ua
	}

	ownAddr, ok := resolved[own]
	if !ok {
		return nil, errors.Errorf("no group configured for role %q", own)
	}

	recv, err := net.ListenMulticastUDP("udp4", nil, ownAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "joining %s group %s", own, ownAddr)
	}
	recv.SetReadBuffer(maxDatagram * 16)

	send, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero})
	if err != nil {
		recv.Close()
		return nil, errors.Wrap(err, "opening send socket")
	}
	pc := ipv4.NewPacketConn(send)
	if err := pc.SetMulticastTTL(1); err != nil {
		recv.Close()
		send.Close()
		return nil, errors.Wrap(err, "setting multicast TTL")
	}
	if err := pc.SetMulticastLoopback(true); err != nil {
		recv.Close()
		send.Close()
		return nil, errors.Wrap(err, "enabling multicast loopback")
	}

	return &Multicast{recv: recv, send: send, groups: resolved}, nil
}

func (t *Multicast) Broadcast(group string, payload []byte) error {
	addr, ok := t.groups[group]
	if !ok {
		return errors.Errorf("no group configured for role %q", group)
	}
	_, err := t.send.WriteToUDP(payload, addr)
	return errors.Wrapf(err, "sending to %s group", group)
}

func (t *Multicast) Receive(timeout time.Duration) ([]byte, error) {
	if err := t.recv.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, errors.Wrap(err, "setting read deadline")
	}
	buf := make([]byte, maxDatagram)
	n, _, err := t.recv.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, ErrTimeout
		}
		return nil, errors.Wrap(err, "receiving")
	}
	return buf[:n], nil
}

func (t *Multicast) Close() error {
	err := t.recv.Close()
	if serr := t.send.Close(); err == nil {
		err = serr
	}
	return err
}
