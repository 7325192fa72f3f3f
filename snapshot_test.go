package micromdns

import (
	"errors"
	"net"
	"testing"
)

func TestCollectSkipsLoopbackAndDown(t *testing.T) {
	enum := world(
		ifaceUp("eth0", "10.0.0.5"),
		Iface{Name: "lo", Flags: net.FlagUp | net.FlagLoopback, Addrs: []net.IP{net.ParseIP("127.0.0.1")}},
		Iface{Name: "eth1", Flags: 0, Addrs: []net.IP{net.ParseIP("10.0.0.7")}}, // down
	)

	snap := mustCollect(t, enum, Filter{})
	if snap.Len() != 1 || !snap.Contains(net.ParseIP("10.0.0.5")) {
		t.Fatalf("snapshot = %s, want [10.0.0.5]", snap)
	}
}

func TestCollectAppliesFilter(t *testing.T) {
	enum := world(
		ifaceUp("Ethernet", "10.0.0.5"),
		ifaceUp("WiFi", "10.0.0.9"),
	)

	snap := mustCollect(t, enum, ParseFilter([]string{"Ethernet"}))
	if snap.Len() != 1 || !snap.Contains(net.ParseIP("10.0.0.5")) {
		t.Fatalf("snapshot = %s, want only Ethernet's 10.0.0.5", snap)
	}
}

func TestCollectAllIsSupersetOfFiltered(t *testing.T) {
	enum := world(
		ifaceUp("eth0", "10.0.0.5", "fe80::1"),
		ifaceUp("eth1", "10.0.0.9"),
		ifaceUp("wlan0", "192.168.1.4"),
	)

	all := mustCollect(t, enum, Filter{})
	for _, names := range [][]string{{"eth0"}, {"eth1"}, {"eth0", "wlan0"}, {"missing"}} {
		restricted := mustCollect(t, enum, ParseFilter(names))
		for _, ip := range restricted.Addrs() {
			if !all.Contains(ip) {
				t.Errorf("filter %v produced %v not present in the unfiltered snapshot", names, ip)
			}
		}
	}
}

func TestCollectNoMatchIsEmptyNotError(t *testing.T) {
	enum := world(ifaceUp("eth0", "10.0.0.5"))

	snap, err := Collect(enum, ParseFilter([]string{"tap0"}))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if !snap.Empty() {
		t.Fatalf("snapshot = %s, want empty", snap)
	}
}

func TestCollectPropagatesEnumerationError(t *testing.T) {
	boom := errors.New("netlink query failed")
	enum := func() ([]Iface, error) { return nil, boom }

	if _, err := Collect(enum, Filter{}); !errors.Is(err, boom) {
		t.Fatalf("Collect err = %v, want wrapped %v", err, boom)
	}
}

func TestCollectIncludesBothFamilies(t *testing.T) {
	enum := world(ifaceUp("eth0", "10.0.0.5", "fd00::5"))

	snap := mustCollect(t, enum, Filter{})
	if !snap.Contains(net.ParseIP("10.0.0.5")) || !snap.Contains(net.ParseIP("fd00::5")) {
		t.Fatalf("snapshot = %s, want both families", snap)
	}
}

func TestSnapshotEqualityIgnoresOrder(t *testing.T) {
	forward := mustCollect(t, world(ifaceUp("eth0", "10.0.0.5"), ifaceUp("eth1", "10.0.0.9")), Filter{})
	reversed := mustCollect(t, world(ifaceUp("eth1", "10.0.0.9"), ifaceUp("eth0", "10.0.0.5")), Filter{})

	if !forward.Equal(reversed) || !reversed.Equal(forward) {
		t.Fatal("snapshots with the same addresses must be equal regardless of order")
	}

	grown := mustCollect(t, world(ifaceUp("eth0", "10.0.0.5"), ifaceUp("eth1", "10.0.0.9"), ifaceUp("eth2", "10.0.0.11")), Filter{})
	if forward.Equal(grown) {
		t.Fatal("snapshots with different addresses compared equal")
	}

	empty := mustCollect(t, world(), Filter{})
	if forward.Equal(empty) || !empty.Equal(mustCollect(t, world(), Filter{})) {
		t.Fatal("empty snapshot equality broken")
	}
}

func TestSnapshotAddrsSorted(t *testing.T) {
	snap := mustCollect(t, world(ifaceUp("eth1", "10.0.0.9"), ifaceUp("eth0", "10.0.0.5")), Filter{})

	addrs := snap.Addrs()
	if len(addrs) != 2 || addrs[0].String() != "10.0.0.5" || addrs[1].String() != "10.0.0.9" {
		t.Fatalf("Addrs() = %v, want sorted [10.0.0.5 10.0.0.9]", addrs)
	}
	if got, want := snap.String(), "[10.0.0.5 10.0.0.9]"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
