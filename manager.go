package micromdns

import (
	"errors"
	"fmt"
	"log"
	"net"

	"github.com/microruri/micromdns/mdns"
)

// ErrAlreadyStarted is returned by Manager.Start while an advertiser
// is still live; the old one must be stopped first.
var ErrAlreadyStarted = errors.New("responder already started")

// Advertiser is a running mDNS advertisement. Shutdown withdraws its
// records from the network before returning, so a successor for the
// same name never overlaps with it.
type Advertiser interface {
	Shutdown()
}

// StartFunc binds a new advertisement for hostname resolving to addrs.
type StartFunc func(hostname string, addrs []net.IP) (Advertiser, error)

// PublishResponder is the default StartFunc, backed by the mdns
// package's responder on all multicast-capable interfaces.
func PublishResponder(hostname string, addrs []net.IP) (Advertiser, error) {
	return mdns.Publish(hostname, addrs, nil)
}

// Manager owns the currently running advertisement, of which there is
// at most one. It is not safe for concurrent use; the reconciliation
// loop is its only caller.
type Manager struct {
	hostname string
	start    StartFunc
	active   Advertiser
}

// NewManager returns a manager advertising name (qualified with
// .local) through the given start func, or PublishResponder when nil.
func NewManager(name string, start StartFunc) *Manager {
	if start == nil {
		start = PublishResponder
	}
	return &Manager{
		hostname: mdns.Fqdn(name),
		start:    start,
	}
}

// Hostname returns the fully qualified name the manager advertises.
func (m *Manager) Hostname() string {
	return m.hostname
}

// Active reports whether an advertisement is currently live.
func (m *Manager) Active() bool {
	return m.active != nil
}

// Start brings up an advertisement bound to the snapshot's addresses.
// Returns ErrAlreadyStarted if one is already live, or the start
// func's error if the responder cannot bind; bind failures are fatal
// for the process, there is no retry.
func (m *Manager) Start(snap *Snapshot) error {
	if m.active != nil {
		return ErrAlreadyStarted
	}

	log.Printf("[mdnsd] starting responder: hostname=%s visible_ips=%s", m.hostname, snap)

	adv, err := m.start(m.hostname, snap.Addrs())
	if err != nil {
		return fmt.Errorf("start responder: %w", err)
	}
	m.active = adv
	return nil
}

// Stop shuts down the live advertisement, guaranteeing its records are
// withdrawn before returning. No-op when nothing is live.
func (m *Manager) Stop() {
	if m.active == nil {
		return
	}
	m.active.Shutdown()
	m.active = nil
}

// Restart replaces the live advertisement with one bound to the new
// snapshot. The old advertiser is fully stopped before the new one is
// started; at no instant are two live for the same name.
func (m *Manager) Restart(snap *Snapshot) error {
	m.Stop()
	return m.Start(snap)
}
