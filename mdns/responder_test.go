package mdns

import (
	"net"
	"testing"

	"github.com/miekg/dns"
)

func TestFqdn(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"myhost", "myhost.local."},
		{"myhost.local", "myhost.local."},
		{"myhost.local.", "myhost.local."},
		{".myhost.", "myhost.local."},
	}
	for _, tt := range tests {
		if got := Fqdn(tt.in); got != tt.want {
			t.Errorf("Fqdn(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitAddrs(t *testing.T) {
	v4, v6 := splitAddrs([]net.IP{
		net.ParseIP("10.0.0.5"),
		net.ParseIP("fd00::5"),
		net.ParseIP("192.168.1.4"),
		net.ParseIP("fe80::1"),
	})
	if len(v4) != 2 || len(v6) != 2 {
		t.Fatalf("splitAddrs: %d v4, %d v6, want 2 and 2", len(v4), len(v6))
	}
	for _, ip := range v4 {
		if len(ip) != net.IPv4len {
			t.Errorf("v4 address %v not in 4-byte form", ip)
		}
	}
}

func testResponder() *Responder {
	return &Responder{
		hostname: "myname.local.",
		addrIPv4: []net.IP{net.ParseIP("10.0.0.5").To4()},
		addrIPv6: []net.IP{net.ParseIP("fd00::5")},
	}
}

func TestAnswersForAddressQueries(t *testing.T) {
	r := testResponder()

	tests := []struct {
		name     string
		qname    string
		qtype    uint16
		wantA    int
		wantAAAA int
	}{
		{"A", "myname.local.", dns.TypeA, 1, 0},
		{"AAAA", "myname.local.", dns.TypeAAAA, 0, 1},
		{"ANY", "myname.local.", dns.TypeANY, 1, 1},
		{"other name", "elsewhere.local.", dns.TypeA, 0, 0},
		{"unsupported type", "myname.local.", dns.TypeSRV, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answers := r.answersFor(dns.Question{Name: tt.qname, Qtype: tt.qtype, Qclass: dns.ClassINET})
			var a, aaaa int
			for _, rr := range answers {
				switch rec := rr.(type) {
				case *dns.A:
					a++
					if !rec.A.Equal(net.ParseIP("10.0.0.5")) {
						t.Errorf("A record %v, want 10.0.0.5", rec.A)
					}
				case *dns.AAAA:
					aaaa++
				}
			}
			if a != tt.wantA || aaaa != tt.wantAAAA {
				t.Errorf("answers: %d A, %d AAAA, want %d and %d", a, aaaa, tt.wantA, tt.wantAAAA)
			}
		})
	}
}

func TestAddrRecordsHeader(t *testing.T) {
	r := testResponder()

	for _, rr := range r.addrRecords(addrTTL, true, true) {
		hdr := rr.Header()
		if hdr.Name != "myname.local." {
			t.Errorf("record name = %q, want myname.local.", hdr.Name)
		}
		if hdr.Ttl != addrTTL {
			t.Errorf("record TTL = %d, want %d", hdr.Ttl, addrTTL)
		}
		if hdr.Class&qClassCacheFlush == 0 {
			t.Error("cache flush bit not set on a unique address record")
		}
	}
}

func TestGoodbyeRecordsZeroTTL(t *testing.T) {
	r := testResponder()

	records := r.addrRecords(0, true, true)
	if len(records) != 2 {
		t.Fatalf("goodbye records = %d, want 2", len(records))
	}
	for _, rr := range records {
		if rr.Header().Ttl != 0 {
			t.Errorf("goodbye TTL = %d, want 0", rr.Header().Ttl)
		}
	}
}

func TestAddrRecordsEmpty(t *testing.T) {
	r := &Responder{hostname: "myname.local."}
	if records := r.addrRecords(addrTTL, true, true); len(records) != 0 {
		t.Fatalf("records = %v for empty address set, want none", records)
	}
}

func TestIsUnicastQuestion(t *testing.T) {
	q := dns.Question{Name: "myname.local.", Qtype: dns.TypeA, Qclass: dns.ClassINET}
	if isUnicastQuestion(q) {
		t.Error("plain INET class reported as unicast")
	}
	q.Qclass |= qClassCacheFlush
	if !isUnicastQuestion(q) {
		t.Error("unicast bit not detected")
	}
}

func TestAnswersRoundTripThroughWire(t *testing.T) {
	r := testResponder()

	query := new(dns.Msg)
	query.SetQuestion("myname.local.", dns.TypeA)

	resp := new(dns.Msg)
	resp.SetReply(query)
	resp.Question = nil
	resp.Authoritative = true
	resp.Answer = r.answersFor(query.Question[0])

	buf, err := resp.Pack()
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	var parsed dns.Msg
	if err := parsed.Unpack(buf); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if len(parsed.Answer) != 1 {
		t.Fatalf("answers on the wire = %d, want 1", len(parsed.Answer))
	}
	a, ok := parsed.Answer[0].(*dns.A)
	if !ok || !a.A.Equal(net.ParseIP("10.0.0.5")) {
		t.Fatalf("wire answer = %v, want A 10.0.0.5", parsed.Answer[0])
	}
}
