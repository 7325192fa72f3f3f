// Package micromdns keeps a multicast DNS advertisement for a host
// name consistent with the machine's live network interfaces. It
// periodically snapshots the visible non-loopback addresses, compares
// the result with the set currently advertised, and restarts the
// underlying responder when they diverge.
package micromdns

import (
	"sort"
	"strings"
)

// Filter selects which network interfaces contribute addresses to a
// snapshot. The zero value matches every interface; a restrictive
// filter matches by exact interface name. Immutable once built.
type Filter struct {
	names map[string]struct{}
}

// ParseFilter builds a Filter from command-line values. Each value may
// carry several comma-separated interface names; blanks are ignored. A
// literal "*" anywhere, or no usable names at all, yields the
// match-everything filter.
func ParseFilter(values []string) Filter {
	selected := make(map[string]struct{})
	for _, value := range values {
		for _, item := range strings.Split(value, ",") {
			name := strings.TrimSpace(item)
			if name == "" {
				continue
			}
			if name == "*" {
				return Filter{}
			}
			selected[name] = struct{}{}
		}
	}
	if len(selected) == 0 {
		return Filter{}
	}
	return Filter{names: selected}
}

// All reports whether the filter matches every interface.
func (f Filter) All() bool {
	return len(f.names) == 0
}

// Matches reports whether an interface with the given name passes the
// filter.
func (f Filter) Matches(name string) bool {
	if f.All() {
		return true
	}
	_, ok := f.names[name]
	return ok
}

// Missing returns the filter's interface names that do not appear in
// the given enumeration, sorted. Always empty for the wildcard filter.
// Used to warn about requested interfaces the OS does not have.
func (f Filter) Missing(ifaces []Iface) []string {
	if f.All() {
		return nil
	}
	existing := make(map[string]struct{}, len(ifaces))
	for _, iface := range ifaces {
		existing[iface.Name] = struct{}{}
	}
	var missing []string
	for name := range f.names {
		if _, ok := existing[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// String renders the filter for logging: "*" for the wildcard form,
// otherwise the sorted comma-joined names.
func (f Filter) String() string {
	if f.All() {
		return "*"
	}
	names := make([]string, 0, len(f.names))
	for name := range f.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
