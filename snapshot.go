package micromdns

import (
	"fmt"
	"net"
	"sort"
	"strings"
)

// Iface describes one OS network interface and the addresses bound to
// it, as seen at enumeration time.
type Iface struct {
	Name  string
	Flags net.Flags
	Addrs []net.IP
}

// Enumerate queries the host for its visible network interfaces.
// Injectable so tests can supply fixed worlds; the daemon uses
// SystemInterfaces.
type Enumerate func() ([]Iface, error)

// SystemInterfaces enumerates the OS interfaces via the net package.
// Interfaces whose addresses cannot be read are returned with none;
// the loopback/up/filter policy is applied later by Collect.
func SystemInterfaces() ([]Iface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("enumerate interfaces: %w", err)
	}

	result := make([]Iface, 0, len(ifaces))
	for _, ifi := range ifaces {
		entry := Iface{Name: ifi.Name, Flags: ifi.Flags}
		addrs, err := ifi.Addrs()
		if err == nil {
			for _, addr := range addrs {
				if ipnet, ok := addr.(*net.IPNet); ok {
					entry.Addrs = append(entry.Addrs, ipnet.IP)
				}
			}
		}
		result = append(result, entry)
	}
	return result, nil
}

// Snapshot is a point-in-time set of IP addresses to advertise. Two
// snapshots are equal iff they hold the same addresses, regardless of
// the order the interfaces were enumerated in.
type Snapshot struct {
	addrs map[string]net.IP
}

// Collect builds a snapshot from the enumerated interfaces. An
// interface contributes its addresses iff it is not loopback, is
// administratively up, and passes the filter. All address families are
// included. An empty result is valid, not an error; only the
// enumeration itself can fail.
func Collect(enum Enumerate, filter Filter) (*Snapshot, error) {
	ifaces, err := enum()
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{addrs: make(map[string]net.IP)}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if !filter.Matches(iface.Name) {
			continue
		}
		for _, ip := range iface.Addrs {
			if ip == nil {
				continue
			}
			snap.addrs[ip.String()] = ip
		}
	}
	return snap, nil
}

// Equal reports set equality of the two snapshots' addresses.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if len(s.addrs) != len(other.addrs) {
		return false
	}
	for key := range s.addrs {
		if _, ok := other.addrs[key]; !ok {
			return false
		}
	}
	return true
}

// Empty reports whether the snapshot holds no addresses.
func (s *Snapshot) Empty() bool {
	return len(s.addrs) == 0
}

// Len returns the number of addresses in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.addrs)
}

// Contains reports whether the snapshot holds the given address.
func (s *Snapshot) Contains(ip net.IP) bool {
	_, ok := s.addrs[ip.String()]
	return ok
}

// Addrs returns the addresses in textual sort order. The slice is a
// copy; callers may retain it.
func (s *Snapshot) Addrs() []net.IP {
	keys := make([]string, 0, len(s.addrs))
	for key := range s.addrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	addrs := make([]net.IP, 0, len(keys))
	for _, key := range keys {
		addrs = append(addrs, s.addrs[key])
	}
	return addrs
}

// String renders the snapshot for logging, e.g. "[10.0.0.5 10.0.0.9]".
func (s *Snapshot) String() string {
	keys := make([]string, 0, len(s.addrs))
	for key := range s.addrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return "[" + strings.Join(keys, " ") + "]"
}
