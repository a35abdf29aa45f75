package webclient

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type splitTester struct {
	raw    string
	scheme string
	host   string
	opaque string
	fails  bool
}

func (st *splitTester) runTest(test *testing.T, name string) {
	scheme, host, opaque, err := splitRawURL(st.raw)
	if st.fails {
		if err == nil {
			test.Errorf("[%s] expected error for %q", name, st.raw)
		}
		return
	}
	if err != nil {
		test.Errorf("[%s] unexpected error: %v", name, err)
		return
	}
	if scheme != st.scheme || host != st.host || opaque != st.opaque {
		test.Errorf("[%s] got %s://%s opaque=%q", name, scheme, host, opaque)
	}
}

var splitTests = map[string]*splitTester{
	"plain": {
		raw:    "http://10.0.0.1:8080/",
		scheme: "http",
		host:   "10.0.0.1:8080",
		opaque: "/",
	},
	"double-encoded": {
		raw:    "https://host/cgi-bin/.%%32%65/etc/passwd",
		scheme: "https",
		host:   "host",
		opaque: "/cgi-bin/.%%32%65/etc/passwd",
	},
	"no-path": {
		raw:    "http://host:80",
		scheme: "http",
		host:   "host:80",
		opaque: "/",
	},
	"no-scheme": {
		raw:   "host/path",
		fails: true,
	},
	"no-host": {
		raw:   "http:///path",
		fails: true,
	},
}

func TestSplitRawURL(t *testing.T) {
	for name, tester := range splitTests {
		tester.runTest(t, name)
	}
}

// The request line must carry the path byte-for-byte, even when
// it is not valid percent-encoding.
func TestRawPathPreserved(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer ln.Close()

	lines := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		line, _ := r.ReadString('\n')
		lines <- strings.TrimSpace(line)
		fmt.Fprintf(conn, "HTTP/1.1 200 OK\r\nContent-Length: 2\r\nConnection: close\r\n\r\nok")
	}()

	c := New(Options{Timeout: 2 * time.Second})
	raw := fmt.Sprintf("http://%s/a/.%%%%32%%65/b", ln.Addr())
	resp, err := c.Get(context.Background(), raw)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	select {
	case line := <-lines:
		want := "GET /a/.%%32%65/b HTTP/1.1"
		if line != want {
			t.Errorf("path was rewritten:\nwant %q\ngot  %q", want, line)
		}
	case <-time.After(time.Second):
		t.Fatal("server saw no request")
	}
}

func TestRedirectsNotFollowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/elsewhere", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Options{Timeout: 2 * time.Second})
	resp, err := c.Get(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if resp.StatusCode != http.StatusFound {
		t.Errorf("redirect was followed: got status %d", resp.StatusCode)
	}
}

func TestResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "Apache/2.4.49 (Unix)")
		fmt.Fprint(w, "root:x:0:0:root:/root:/bin/bash")
	}))
	defer srv.Close()

	c := New(Options{Timeout: 2 * time.Second})
	resp, err := c.Get(context.Background(), srv.URL+"/etc/passwd")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	if got := resp.Header.Get("Server"); got != "Apache/2.4.49 (Unix)" {
		t.Errorf("unexpected server header: %q", got)
	}
	if !resp.BodyContains("root:x:0:0:") {
		t.Errorf("body lookup failed: %q", resp.Body)
	}
}
