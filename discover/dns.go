package discover

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/miekg/dns"
)

// Defaults for the OpenDNS echo trick: an A query for myip.opendns.com
// against their resolvers answers with the querier's public address.
const (
	DefaultDNSServer = "resolver1.opendns.com:53"
	DefaultDNSName   = "myip.opendns.com"
)

// DNSSource discovers the public address by asking a resolver that echoes the
// querier's IP as an A answer for a well-known name.
type DNSSource struct {
	server string
	name   string
	client *dns.Client
}

func NewDNSSource(server, name string) *DNSSource {
	if server == "" {
		server = DefaultDNSServer
	}
	if name == "" {
		name = DefaultDNSName
	}
	return &DNSSource{
		server: server,
		name:   dns.Fqdn(name),
		client: &dns.Client{Timeout: lookupTimeout},
	}
}

func (s *DNSSource) String() string {
	return "dns://" + s.name + "@" + s.server
}

func (s *DNSSource) Lookup(ctx context.Context) (netip.Addr, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(s.name, dns.TypeA)

	resp, _, err := s.client.ExchangeContext(ctx, msg, s.server)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("query %s: %w", s.server, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return netip.Addr{}, fmt.Errorf("query %s: rcode %s", s.server, dns.RcodeToString[resp.Rcode])
	}

	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			return parseIPv4(a.A.String())
		}
	}
	return netip.Addr{}, fmt.Errorf("no A answer for %s from %s", s.name, s.server)
}
