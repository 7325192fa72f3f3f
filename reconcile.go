package micromdns

import (
	"context"
	"fmt"
	"log"
	"time"
)

// DefaultPollInterval is the fixed wait between interface polls.
const DefaultPollInterval = 3 * time.Second

// Config carries the daemon's settings. Built once at startup and
// never mutated; it may be freely shared.
type Config struct {
	// Name is the host name to advertise, resolving as <name>.local.
	Name string
	// Filter selects the interfaces whose addresses are advertised.
	Filter Filter
	// PollInterval is the wait between reconciliation polls.
	// DefaultPollInterval when zero.
	PollInterval time.Duration
}

// Reconciler drives the poll-diff-restart loop: it keeps the running
// advertisement's address set equal to the most recently observed
// interface snapshot, restarting the responder when they drift apart.
type Reconciler struct {
	cfg  Config
	enum Enumerate
	mgr  *Manager
}

// NewReconciler wires a reconciler from config. enum defaults to
// SystemInterfaces and mgr to a manager on the built-in responder;
// both seams exist for tests.
func NewReconciler(cfg Config, enum Enumerate, mgr *Manager) *Reconciler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if enum == nil {
		enum = SystemInterfaces
	}
	if mgr == nil {
		mgr = NewManager(cfg.Name, nil)
	}
	return &Reconciler{cfg: cfg, enum: enum, mgr: mgr}
}

// Run starts the advertisement from an initial snapshot, then polls
// until ctx is cancelled. Each tick it collects a candidate snapshot;
// if it differs from the current one the responder is restarted,
// stop-before-start, bound to the candidate. The loop's only
// suspension point is the ticker, so cancellation latency is bounded
// by the poll interval.
//
// On cancellation the live advertisement is stopped exactly once and
// Run returns nil. Enumeration or restart failures stop the
// advertisement and surface as the returned error; the caller decides
// the process's fate (mdnsd exits non-zero).
func (r *Reconciler) Run(ctx context.Context) error {
	if warn := r.warnMissingInterfaces(); warn != nil {
		return warn
	}

	current, err := Collect(r.enum, r.cfg.Filter)
	if err != nil {
		return fmt.Errorf("initial snapshot: %w", err)
	}
	if current.Empty() {
		log.Printf("[WARN] mdnsd: no matching non-loopback interfaces at startup")
	}
	log.Printf("[mdnsd] initial interface snapshot=%s", current)

	if err := r.mgr.Start(current); err != nil {
		return err
	}
	defer r.mgr.Stop()

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[mdnsd] shutting down, withdrawing %s", r.mgr.Hostname())
			return nil
		case <-ticker.C:
			candidate, err := Collect(r.enum, r.cfg.Filter)
			if err != nil {
				return fmt.Errorf("refresh interface list: %w", err)
			}
			if candidate.Equal(current) {
				continue
			}

			log.Printf("[mdnsd] network interface change detected, restarting responder: old=%s new=%s", current, candidate)
			if err := r.mgr.Restart(candidate); err != nil {
				return err
			}
			current = candidate
			log.Printf("[mdnsd] responder restarted: hostname=%s visible_ips=%s", r.mgr.Hostname(), current)
		}
	}
}

// warnMissingInterfaces logs requested interface names the OS does not
// currently have. Only the enumeration error is returned; missing
// names are a warning, since the interfaces may appear later.
func (r *Reconciler) warnMissingInterfaces() error {
	if r.cfg.Filter.All() {
		return nil
	}
	ifaces, err := r.enum()
	if err != nil {
		return fmt.Errorf("initial snapshot: %w", err)
	}
	if missing := r.cfg.Filter.Missing(ifaces); len(missing) > 0 {
		log.Printf("[WARN] mdnsd: requested interfaces not found: %v", missing)
	}
	return nil
}
