package main

import (
	"net"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestServeFailsWhenAddressInUse(t *testing.T) {
	c := qt.New(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	c.Assert(err, qt.IsNil)
	defer ln.Close()

	log, hook := test.NewNullLogger()
	srv := &http.Server{Addr: ln.Addr().String(), Handler: http.NotFoundHandler()}

	done := make(chan int, 1)
	go func() { done <- serve(srv, make(chan os.Signal), time.Second, log) }()

	select {
	case code := <-done:
		c.Assert(code, qt.Equals, exitRuntimeError)
	case <-time.After(5 * time.Second):
		c.Fatal("serve kept running without a listener")
	}
	c.Assert(hook.LastEntry().Message, qt.Equals, "http server error")
}

func TestServeStopsOnSignal(t *testing.T) {
	c := qt.New(t)
	log, hook := test.NewNullLogger()
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	sig := make(chan os.Signal, 1)
	sig <- syscall.SIGTERM
	c.Assert(serve(srv, sig, time.Second, log), qt.Equals, exitSuccess)

	entries := hook.AllEntries()
	c.Assert(entries[0].Message, qt.Equals, "shutting down")
	c.Assert(entries[0].Data["signal"], qt.Equals, "terminated")
	c.Assert(hook.LastEntry().Message, qt.Equals, "stopped")
}
