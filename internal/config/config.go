// Package config loads the ensemble description: one line per role,
// "role ip port", mapping each role to its multicast group.
package config

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Roles in config-file (plural) form.
var roles = []string{"clients", "proposers", "acceptors", "learners"}

// Network maps each role to its multicast group address.
type Network struct {
	groups map[string]string
}

// Group returns a role's "ip:port" group address.
func (n *Network) Group(role string) (string, bool) {
	addr, ok := n.groups[role]
	return addr, ok
}

// Groups returns the full role-to-address map.
func (n *Network) Groups() map[string]string {
	out := make(map[string]string, len(n.groups))
	for role, addr := range n.groups {
		out[role] = addr
	}
	return out
}

// Load reads and validates a config file. Exactly one record per role;
// the ip must be an IPv4 multicast address.
func Load(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening config")
	}
	defer f.Close()

	n := &Network{groups: map[string]string{}}
	scanner := bufio.NewScanner(f)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, errors.Errorf("config line %d: want \"role ip port\", got %q", lineno, line)
		}
		role, ipStr, portStr := fields[0], fields[1], fields[2]

		if !validRole(role) {
			return nil, errors.Errorf("config line %d: unknown role %q", lineno, role)
		}
		if _, dup := n.groups[role]; dup {
			return nil, errors.Errorf("config line %d: duplicate record for role %q", lineno, role)
		}
		ip := net.ParseIP(ipStr)
		if ip == nil || ip.To4() == nil || !ip.IsMulticast() {
			return nil, errors.Errorf("config line %d: %q is not an IPv4 multicast address", lineno, ipStr)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			return nil, errors.Errorf("config line %d: invalid port %q", lineno, portStr)
		}

		n.groups[role] = fmt.Sprintf("%s:%d", ipStr, port)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading config")
	}

	for _, role := range roles {
		if _, ok := n.groups[role]; !ok {
			return nil, errors.Errorf("config: missing record for role %q", role)
		}
	}
	return n, nil
}

func validRole(role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
