package hostmap

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startDNSServer runs a PTR server on a random local port:
// 1.2.3.4 resolves, 1.2.3.5 is NXDOMAIN, 1.2.3.6 has no PTR answer and
// 1.2.3.7 is never answered
func startDNSServer(t *testing.T) string {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
		resp := new(dns.Msg)
		resp.SetReply(req)

		switch req.Question[0].Name {
		case "4.3.2.1.in-addr.arpa.":
			resp.Answer = append(resp.Answer, &dns.PTR{
				Hdr: dns.RR_Header{Name: req.Question[0].Name, Rrtype: dns.TypePTR, Class: dns.ClassINET, Ttl: 60},
				Ptr: "host.example.com.",
			})
		case "5.3.2.1.in-addr.arpa.":
			resp.SetRcode(req, dns.RcodeNameError)
		case "6.3.2.1.in-addr.arpa.":
		case "7.3.2.1.in-addr.arpa.":
			return
		}
		w.WriteMsg(resp)
	})

	started := make(chan struct{})
	server := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go server.ActivateAndServe()
	<-started
	t.Cleanup(func() { server.Shutdown() })

	return pc.LocalAddr().String()
}

// silentServer accepts queries and never answers
func silentServer(t *testing.T) string {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { pc.Close() })
	return pc.LocalAddr().String()
}

func TestDNSResolverAnswers(t *testing.T) {
	addr := startDNSServer(t)
	resolver := NewDNSResolver([]string{addr}, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond})
	ctx := context.Background()

	name, err := resolver.LookupPTR(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "host.example.com", name, "trailing dot is trimmed")

	_, err = resolver.LookupPTR(ctx, "1.2.3.5")
	var rcodeErr *RcodeError
	require.True(t, errors.As(err, &rcodeErr))
	assert.Equal(t, dns.RcodeNameError, rcodeErr.Rcode)

	_, err = resolver.LookupPTR(ctx, "1.2.3.6")
	assert.Equal(t, ErrNoPTR, err)

	started := time.Now()
	_, err = resolver.LookupPTR(ctx, "1.2.3.7")
	assert.Error(t, err)
	assert.True(t, time.Since(started) >= 250*time.Millisecond, "every rung of the timeout ladder is used")
}

func TestDNSResolverFallsBack(t *testing.T) {
	live := startDNSServer(t)
	dead := silentServer(t)

	resolver := NewDNSResolver([]string{dead, live}, []time.Duration{100 * time.Millisecond, time.Second})
	for i := 0; i < 4; i++ {
		name, err := resolver.LookupPTR(context.Background(), "1.2.3.4")
		require.NoError(t, err)
		assert.Equal(t, "host.example.com", name)
	}
}

func TestDNSResolverCancelled(t *testing.T) {
	resolver := NewDNSResolver([]string{silentServer(t)}, []time.Duration{5 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	started := time.Now()
	_, err := resolver.LookupPTR(ctx, "1.2.3.4")
	assert.Equal(t, context.DeadlineExceeded, err)
	assert.True(t, time.Since(started) < 5*time.Second)
}

func TestNewDNSResolverDefaults(t *testing.T) {
	resolver := NewDNSResolver(nil, nil)
	assert.Equal(t, DefaultServers, resolver.Servers)
	assert.Equal(t, DefaultTimeouts, resolver.Timeouts)

	resolver = NewDNSResolver([]string{"192.0.2.1"}, nil)
	assert.Equal(t, []string{"192.0.2.1:53"}, resolver.Servers)
}

func TestPipelineWithDNSServer(t *testing.T) {
	addr := startDNSServer(t)
	resolver := NewDNSResolver([]string{addr}, []time.Duration{100 * time.Millisecond})

	records, err := ResolveAll(context.Background(), resolver, []string{"1.2.3.4", "1.2.3.5", "1.2.3.7"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{IP: "1.2.3.4", Hostname: "host.example.com"},
		{IP: "1.2.3.5", Hostname: NA},
		{IP: "1.2.3.7", Hostname: NA},
	}, records)
}
