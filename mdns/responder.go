// Package mdns implements a minimal multicast DNS responder that
// advertises a single host name on the local network, answering A and
// AAAA queries for it with a fixed set of addresses.
//
// The responder speaks just enough of RFC 6762 to make the name
// resolvable: it answers matching queries (unicast or multicast, as
// requested), announces its records when it starts, and withdraws them
// with a zero-TTL goodbye on shutdown. It deliberately implements no
// DNS-SD service enumeration and no conflict probing.
package mdns

import (
	"fmt"
	"log"
	"net"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	// announceRepetitions is the number of unsolicited announcements
	// sent after startup, following RFC 6762 recommendations.
	announceRepetitions = 2

	// addrTTL is the TTL for address records (RFC 6762 section 10).
	addrTTL = 120
)

// qClassCacheFlush is the top bit of the qclass field, used to flush
// conflicting cache entries (RFC 6762 section 10.2).
const qClassCacheFlush uint16 = 1 << 15

// Fqdn qualifies a bare host name into the mDNS domain: "myhost"
// becomes "myhost.local.". Names already carrying the .local suffix
// only gain the root dot.
func Fqdn(name string) string {
	name = strings.Trim(name, ".")
	if !strings.HasSuffix(name, ".local") {
		name += ".local"
	}
	return name + "."
}

// Publish starts a responder advertising hostname with the given
// addresses on the given interfaces. All multicast-capable interfaces
// are used when ifaces is empty.
//
// An empty address list is accepted: the responder binds and listens
// but answers nothing until replaced. Returns an error if hostname is
// empty or if neither an IPv4 nor an IPv6 multicast socket could be
// set up (e.g., port 5353 unavailable).
func Publish(hostname string, addrs []net.IP, ifaces []net.Interface) (*Responder, error) {
	if hostname == "" {
		return nil, fmt.Errorf("missing host name")
	}

	if len(ifaces) == 0 {
		ifaces = listMulticastInterfaces()
	}

	r, err := newResponder(ifaces)
	if err != nil {
		return nil, err
	}

	r.hostname = Fqdn(hostname)
	r.addrIPv4, r.addrIPv6 = splitAddrs(addrs)

	go r.mainloop()
	go r.announce()

	return r, nil
}

// splitAddrs partitions addresses by family. IPv4 addresses are
// normalized to 4-byte form so they pack as A records.
func splitAddrs(addrs []net.IP) (v4, v6 []net.IP) {
	for _, ip := range addrs {
		if ip4 := ip.To4(); ip4 != nil {
			v4 = append(v4, ip4)
		} else if ip.To16() != nil {
			v6 = append(v6, ip)
		}
	}
	return v4, v6
}

// Responder manages the network connections and protocol handling for
// a published host name. It responds to address queries and handles
// the complete advertisement lifecycle.
type Responder struct {
	hostname string
	addrIPv4 []net.IP
	addrIPv6 []net.IP

	ipv4conn *ipv4.PacketConn
	ipv6conn *ipv6.PacketConn
	ifaces   []net.Interface

	shouldShutdown chan struct{}
	shutdownLock   sync.Mutex
	shutdownEnd    sync.WaitGroup
	isShutdown     bool
}

// newResponder joins the mDNS multicast groups for both address
// families on the specified interfaces. At least one family must
// succeed.
func newResponder(ifaces []net.Interface) (*Responder, error) {
	ipv4conn, err4 := joinUdp4Multicast(ifaces)
	if err4 != nil {
		log.Printf("[WARN] mdns: no suitable IPv4 interface: %s", err4.Error())
	}
	ipv6conn, err6 := joinUdp6Multicast(ifaces)
	if err6 != nil {
		log.Printf("[WARN] mdns: no suitable IPv6 interface: %s", err6.Error())
	}
	if err4 != nil && err6 != nil {
		return nil, fmt.Errorf("no supported interface")
	}

	return &Responder{
		ipv4conn:       ipv4conn,
		ipv6conn:       ipv6conn,
		ifaces:         ifaces,
		shouldShutdown: make(chan struct{}),
	}, nil
}

// Hostname returns the fully qualified name being advertised.
func (r *Responder) Hostname() string {
	return r.hostname
}

// Shutdown withdraws the advertised records with a zero-TTL goodbye,
// closes all sockets, and waits for the receive loops to finish. When
// it returns, no packet for this name will be answered again.
func (r *Responder) Shutdown() {
	r.shutdownLock.Lock()
	defer r.shutdownLock.Unlock()
	if r.isShutdown {
		return
	}

	if err := r.unregister(); err != nil {
		log.Printf("[WARN] mdns: failed to send goodbye: %v", err)
	}

	close(r.shouldShutdown)

	if r.ipv4conn != nil {
		r.ipv4conn.Close()
	}
	if r.ipv6conn != nil {
		r.ipv6conn.Close()
	}

	r.shutdownEnd.Wait()
	r.isShutdown = true
}

// mainloop starts the packet reception goroutines for the bound
// address families. They run until Shutdown.
func (r *Responder) mainloop() {
	if r.ipv4conn != nil {
		go r.recv4(r.ipv4conn)
	}
	if r.ipv6conn != nil {
		go r.recv6(r.ipv6conn)
	}
}

// recv4 continuously receives and processes IPv4 packets until shutdown.
func (r *Responder) recv4(c *ipv4.PacketConn) {
	if c == nil {
		return
	}
	buf := make([]byte, 65536)
	r.shutdownEnd.Add(1)
	defer r.shutdownEnd.Done()
	for {
		select {
		case <-r.shouldShutdown:
			return
		default:
			var ifIndex int
			n, cm, from, err := c.ReadFrom(buf)
			if err != nil {
				continue
			}
			if cm != nil {
				ifIndex = cm.IfIndex
			}
			_ = r.parsePacket(buf[:n], ifIndex, from)
		}
	}
}

// recv6 continuously receives and processes IPv6 packets until shutdown.
func (r *Responder) recv6(c *ipv6.PacketConn) {
	if c == nil {
		return
	}
	buf := make([]byte, 65536)
	r.shutdownEnd.Add(1)
	defer r.shutdownEnd.Done()
	for {
		select {
		case <-r.shouldShutdown:
			return
		default:
			var ifIndex int
			n, cm, from, err := c.ReadFrom(buf)
			if err != nil {
				continue
			}
			if cm != nil {
				ifIndex = cm.IfIndex
			}
			_ = r.parsePacket(buf[:n], ifIndex, from)
		}
	}
}

// parsePacket decodes a raw DNS packet and dispatches it for query
// handling. Malformed packets are silently ignored.
func (r *Responder) parsePacket(packet []byte, ifIndex int, from net.Addr) error {
	var msg dns.Msg
	if err := msg.Unpack(packet); err != nil {
		return err
	}
	return r.handleQuery(&msg, ifIndex, from)
}

// handleQuery answers each question in the query that asks for this
// responder's name, via unicast or multicast as the client requested.
func (r *Responder) handleQuery(query *dns.Msg, ifIndex int, from net.Addr) error {
	var err error
	for _, q := range query.Question {
		resp := dns.Msg{}
		resp.SetReply(query)
		resp.Compress = true
		resp.RecursionDesired = false
		resp.Authoritative = true
		resp.Question = nil // RFC 6762: responses must not contain questions
		resp.Answer = r.answersFor(q)

		if len(resp.Answer) == 0 {
			continue
		}

		if isUnicastQuestion(q) {
			if e := r.unicastResponse(&resp, ifIndex, from); e != nil {
				err = e
			}
		} else {
			if e := r.multicastResponse(&resp, ifIndex); e != nil {
				err = e
			}
		}
	}
	return err
}

// answersFor returns the address records answering a single question,
// or nil if the question is not about this host name.
func (r *Responder) answersFor(q dns.Question) []dns.RR {
	if q.Name != r.hostname {
		return nil
	}
	switch q.Qtype {
	case dns.TypeA:
		return r.addrRecords(addrTTL, true, false)
	case dns.TypeAAAA:
		return r.addrRecords(addrTTL, false, true)
	case dns.TypeANY:
		return r.addrRecords(addrTTL, true, true)
	default:
		return nil
	}
}

// addrRecords builds A and/or AAAA records for the advertised
// addresses. The cache flush bit is always set: the name's address
// records are unique to this responder (RFC 6762 section 10.2).
func (r *Responder) addrRecords(ttl uint32, v4, v6 bool) []dns.RR {
	var list []dns.RR
	if v4 {
		for _, ip := range r.addrIPv4 {
			list = append(list, &dns.A{
				Hdr: dns.RR_Header{
					Name:   r.hostname,
					Rrtype: dns.TypeA,
					Class:  dns.ClassINET | qClassCacheFlush,
					Ttl:    ttl,
				},
				A: ip,
			})
		}
	}
	if v6 {
		for _, ip := range r.addrIPv6 {
			list = append(list, &dns.AAAA{
				Hdr: dns.RR_Header{
					Name:   r.hostname,
					Rrtype: dns.TypeAAAA,
					Class:  dns.ClassINET | qClassCacheFlush,
					Ttl:    ttl,
				},
				AAAA: ip,
			})
		}
	}
	return list
}

// announce sends unsolicited responses carrying the address records so
// caches pick up the new name promptly (RFC 6762 section 8.3), with an
// increasing gap between repetitions.
func (r *Responder) announce() {
	answers := r.addrRecords(addrTTL, true, true)
	if len(answers) == 0 {
		return
	}

	timeout := 1 * time.Second
	for i := 0; i < announceRepetitions; i++ {
		for _, intf := range r.ifaces {
			resp := new(dns.Msg)
			resp.MsgHdr.Response = true
			resp.MsgHdr.Authoritative = true
			resp.Compress = true
			resp.Answer = answers
			if err := r.multicastResponse(resp, intf.Index); err != nil {
				log.Println("[ERR] mdns: failed to send announcement:", err.Error())
			}
		}
		select {
		case <-r.shouldShutdown:
			return
		case <-time.After(timeout):
		}
		timeout *= 2
	}
}

// unregister sends a final announcement with zero TTL so clients drop
// the name from their caches.
func (r *Responder) unregister() error {
	answers := r.addrRecords(0, true, true)
	if len(answers) == 0 {
		return nil
	}
	resp := new(dns.Msg)
	resp.MsgHdr.Response = true
	resp.MsgHdr.Authoritative = true
	resp.Answer = answers
	return r.multicastResponse(resp, 0)
}

// unicastResponse sends a response directly to the query source, as
// requested by the client via the unicast bit.
func (r *Responder) unicastResponse(resp *dns.Msg, ifIndex int, from net.Addr) error {
	buf, err := resp.Pack()
	if err != nil {
		return err
	}
	addr := from.(*net.UDPAddr)

	if addr.IP.To4() != nil {
		if ifIndex != 0 {
			var wcm ipv4.ControlMessage
			wcm.IfIndex = ifIndex
			_, err = r.ipv4conn.WriteTo(buf, &wcm, addr)
		} else {
			_, err = r.ipv4conn.WriteTo(buf, nil, addr)
		}
		return err
	}
	if ifIndex != 0 {
		var wcm ipv6.ControlMessage
		wcm.IfIndex = ifIndex
		_, err = r.ipv6conn.WriteTo(buf, &wcm, addr)
	} else {
		_, err = r.ipv6conn.WriteTo(buf, nil, addr)
	}
	return err
}

// multicastResponse sends a response to the mDNS multicast group, on
// one interface when ifIndex is set, otherwise on all of them.
//
// Handles platform differences in multicast control message support.
func (r *Responder) multicastResponse(msg *dns.Msg, ifIndex int) error {
	buf, err := msg.Pack()
	if err != nil {
		return err
	}

	if r.ipv4conn != nil {
		var wcm ipv4.ControlMessage
		if ifIndex != 0 {
			switch runtime.GOOS {
			case "darwin", "ios", "linux":
				wcm.IfIndex = ifIndex
			default:
				iface, _ := net.InterfaceByIndex(ifIndex)
				if err := r.ipv4conn.SetMulticastInterface(iface); err != nil {
					log.Printf("[WARN] mdns: failed to set multicast interface: %v", err)
				}
			}
			r.ipv4conn.WriteTo(buf, &wcm, ipv4Addr)
		} else {
			for _, intf := range r.ifaces {
				switch runtime.GOOS {
				case "darwin", "ios", "linux":
					wcm.IfIndex = intf.Index
				default:
					if err := r.ipv4conn.SetMulticastInterface(&intf); err != nil {
						log.Printf("[WARN] mdns: failed to set multicast interface: %v", err)
					}
				}
				r.ipv4conn.WriteTo(buf, &wcm, ipv4Addr)
			}
		}
	}

	if r.ipv6conn != nil {
		var wcm ipv6.ControlMessage
		if ifIndex != 0 {
			switch runtime.GOOS {
			case "darwin", "ios", "linux":
				wcm.IfIndex = ifIndex
			default:
				iface, _ := net.InterfaceByIndex(ifIndex)
				if err := r.ipv6conn.SetMulticastInterface(iface); err != nil {
					log.Printf("[WARN] mdns: failed to set multicast interface: %v", err)
				}
			}
			r.ipv6conn.WriteTo(buf, &wcm, ipv6Addr)
		} else {
			for _, intf := range r.ifaces {
				switch runtime.GOOS {
				case "darwin", "ios", "linux":
					wcm.IfIndex = intf.Index
				default:
					if err := r.ipv6conn.SetMulticastInterface(&intf); err != nil {
						log.Printf("[WARN] mdns: failed to set multicast interface: %v", err)
					}
				}
				r.ipv6conn.WriteTo(buf, &wcm, ipv6Addr)
			}
		}
	}
	return nil
}

// isUnicastQuestion reports whether the unicast response bit is set
// (RFC 6762 section 18.12).
func isUnicastQuestion(q dns.Question) bool {
	return q.Qclass&qClassCacheFlush != 0
}
