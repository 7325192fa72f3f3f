package mdns

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// Multicast addressing constants for mDNS as defined by RFC 6762.
var (
	// mdnsGroupIPv4 is the IPv4 multicast group address (224.0.0.251).
	mdnsGroupIPv4 = net.IPv4(224, 0, 0, 251)

	// mdnsGroupIPv6 is the IPv6 multicast group address (ff02::fb).
	mdnsGroupIPv6 = net.ParseIP("ff02::fb")

	// mdnsWildcardAddrIPv4 is the wildcard binding address for IPv4
	// sockets. Binding here receives all multicast traffic on port 5353.
	mdnsWildcardAddrIPv4 = &net.UDPAddr{
		IP:   net.ParseIP("224.0.0.0"),
		Port: 5353,
	}

	// mdnsWildcardAddrIPv6 is the wildcard binding address for IPv6
	// sockets.
	mdnsWildcardAddrIPv6 = &net.UDPAddr{
		IP:   net.ParseIP("ff02::"),
		Port: 5353,
	}

	// ipv4Addr is the destination address for IPv4 multicast sends.
	ipv4Addr = &net.UDPAddr{
		IP:   mdnsGroupIPv4,
		Port: 5353,
	}

	// ipv6Addr is the destination address for IPv6 multicast sends.
	ipv6Addr = &net.UDPAddr{
		IP:   mdnsGroupIPv6,
		Port: 5353,
	}
)

// joinUdp4Multicast binds an IPv4 UDP socket on the mDNS port and joins
// the multicast group on each of the given interfaces.
//
// Returns an error if the bind fails or if the group cannot be joined
// on any interface at all.
func joinUdp4Multicast(interfaces []net.Interface) (*ipv4.PacketConn, error) {
	udpConn, err := net.ListenUDP("udp4", mdnsWildcardAddrIPv4)
	if err != nil {
		return nil, err
	}

	pkConn := ipv4.NewPacketConn(udpConn)
	pkConn.SetControlMessage(ipv4.FlagInterface, true)
	_ = pkConn.SetMulticastTTL(255)

	if len(interfaces) == 0 {
		interfaces = listMulticastInterfaces()
	}

	var failedJoins int
	for _, iface := range interfaces {
		if err := pkConn.JoinGroup(&iface, &net.UDPAddr{IP: mdnsGroupIPv4}); err != nil {
			failedJoins++
		}
	}
	if failedJoins == len(interfaces) {
		pkConn.Close()
		return nil, fmt.Errorf("udp4: failed to join any of these interfaces: %v", interfaces)
	}

	return pkConn, nil
}

// joinUdp6Multicast is the IPv6 counterpart of joinUdp4Multicast.
func joinUdp6Multicast(interfaces []net.Interface) (*ipv6.PacketConn, error) {
	udpConn, err := net.ListenUDP("udp6", mdnsWildcardAddrIPv6)
	if err != nil {
		return nil, err
	}

	pkConn := ipv6.NewPacketConn(udpConn)
	pkConn.SetControlMessage(ipv6.FlagInterface, true)
	_ = pkConn.SetMulticastHopLimit(255)

	if len(interfaces) == 0 {
		interfaces = listMulticastInterfaces()
	}

	var failedJoins int
	for _, iface := range interfaces {
		if err := pkConn.JoinGroup(&iface, &net.UDPAddr{IP: mdnsGroupIPv6}); err != nil {
			failedJoins++
		}
	}
	if failedJoins == len(interfaces) {
		pkConn.Close()
		return nil, fmt.Errorf("udp6: failed to join any of these interfaces: %v", interfaces)
	}

	return pkConn, nil
}

// listMulticastInterfaces returns all interfaces that are up and
// support multicast. Used when the caller does not name interfaces
// explicitly.
func listMulticastInterfaces() []net.Interface {
	var interfaces []net.Interface
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	for _, ifi := range ifaces {
		if (ifi.Flags & net.FlagUp) == 0 {
			continue
		}
		if (ifi.Flags & net.FlagMulticast) > 0 {
			interfaces = append(interfaces, ifi)
		}
	}
	return interfaces
}
