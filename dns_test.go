package dnsupdater_test

import (
	"net"
	"testing"

	"github.com/miekg/dns"
)

// startDNSServer runs handler on a local UDP port and returns its address.
// Every opcode is passed to handler.
func startDNSServer(t *testing.T, handler dns.HandlerFunc) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unable to listen: %s", err)
	}
	started := make(chan struct{})
	srv := &dns.Server{
		PacketConn:        pc,
		Handler:           handler,
		NotifyStartedFunc: func() { close(started) },
		// the default accept func answers UPDATE messages with NOTIMP
		MsgAcceptFunc: func(dns.Header) dns.MsgAcceptAction { return dns.MsgAccept },
	}
	fin := make(chan error, 1)
	go func() { fin <- srv.ActivateAndServe() }()

	select {
	case <-started:
	case err := <-fin:
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(func() { srv.Shutdown() })
	return pc.LocalAddr().String()
}
