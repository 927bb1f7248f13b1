package netprobe

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestCheckConnectivityOK(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	status, err := CheckConnectivity(context.Background(), "127.0.0.1", uint16(addr.Port), time.Second)
	if err != nil {
		t.Fatalf("CheckConnectivity: %v", err)
	}
	if status != StatusOK {
		t.Errorf("status = %v, want OK", status)
	}
}

func TestCheckConnectivityErrorOnClosedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close() // nothing listening now

	status, err := CheckConnectivity(context.Background(), "127.0.0.1", uint16(port), 500*time.Millisecond)
	if status != StatusError || err == nil {
		t.Errorf("status=%v err=%v, want ERROR with a non-nil error", status, err)
	}
}

func TestCheckConnectivityInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// 10.255.255.1 is a non-routable address chosen to hang rather than
	// immediately refuse, so the already-canceled context is what ends the
	// dial attempt.
	status, _ := CheckConnectivity(ctx, "10.255.255.1", 80, 5*time.Second)
	if status != StatusInterrupted {
		t.Errorf("status = %v, want INTERRUPTED", status)
	}
}
