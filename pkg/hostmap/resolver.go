package hostmap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/util"
	"github.com/miekg/dns"
)

// DefaultServers are queried when no resolvers are configured
var DefaultServers = []string{"127.0.0.1:53", "8.8.8.8:53", "8.8.4.4:53"}

// DefaultTimeouts is the per attempt timeout ladder
var DefaultTimeouts = []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second, 10 * time.Second}

// ErrNoPTR is returned when a server answers without a PTR record
var ErrNoPTR = errors.New("no PTR record in answer")

// Resolver performs reverse lookups of IPv4 addresses
type Resolver interface {
	LookupPTR(ctx context.Context, ip string) (string, error)
}

// RcodeError is returned when a server answers with a failure code
type RcodeError struct {
	Server string
	Rcode  int
}

func (e *RcodeError) Error() string {
	return fmt.Sprintf("%s answered %s", e.Server, dns.RcodeToString[e.Rcode])
}

// DNSResolver sends PTR queries to a set of servers. Attempt i goes to the
// next server in turn and waits at most Timeouts[i]. Timeouts and network
// errors move on to the next attempt. An answer from a server ends the
// lookup.
type DNSResolver struct {
	Servers  []string
	Timeouts []time.Duration
	Net      string

	next uint32
}

// NewDNSResolver creates a resolver over servers, falling back to the
// defaults for empty arguments. Servers without a port use 53.
func NewDNSResolver(servers []string, timeouts []time.Duration) *DNSResolver {
	if len(servers) == 0 {
		servers = DefaultServers
	}
	if len(timeouts) == 0 {
		timeouts = DefaultTimeouts
	}

	withPorts := make([]string, len(servers))
	for i, server := range servers {
		if _, _, err := net.SplitHostPort(server); err != nil {
			server = net.JoinHostPort(server, "53")
		}
		withPorts[i] = server
	}
	return &DNSResolver{
		Servers:  withPorts,
		Timeouts: timeouts,
		Net:      "udp",
	}
}

// LookupPTR implements Resolver. The trailing dot of the answer is removed.
func (r *DNSResolver) LookupPTR(ctx context.Context, ip string) (string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(util.ReverseName(ip), dns.TypePTR)
	msg.RecursionDesired = true

	start := int(atomic.AddUint32(&r.next, 1))
	var lastErr error
	for attempt, timeout := range r.Timeouts {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		server := r.Servers[(start+attempt)%len(r.Servers)]

		client := &dns.Client{Net: r.Net, Timeout: timeout}
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, _, err := client.ExchangeContext(attemptCtx, msg, server)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.Rcode != dns.RcodeSuccess {
			return "", &RcodeError{Server: server, Rcode: resp.Rcode}
		}
		for _, answer := range resp.Answer {
			if ptr, ok := answer.(*dns.PTR); ok {
				return strings.TrimSuffix(ptr.Ptr, "."), nil
			}
		}
		return "", ErrNoPTR
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("lookup of %s failed after %d attempts: %w", ip, len(r.Timeouts), lastErr)
}
