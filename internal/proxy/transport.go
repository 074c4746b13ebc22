package proxy

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"
)

// Transport pool defaults.
const (
	DefaultConnectTimeout      = 10 * time.Second
	DefaultMaxIdleConnsPerHost = 32
	DefaultIdleConnTimeout     = 90 * time.Second
)

// deadlineConn arms a fresh deadline before every read and write, so a
// timeout bounds each socket operation rather than the whole exchange.
type deadlineConn struct {
	net.Conn
	read  time.Duration
	write time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if c.read > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.read)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if c.write > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.write)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(b)
}

// transportPool keeps one http.Transport per timeout policy so pooled
// connections never cross policies.
type transportPool struct {
	mu             sync.Mutex
	transports     map[Timeouts]*http.Transport
	connectTimeout time.Duration
}

func newTransportPool(connectTimeout time.Duration) *transportPool {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	return &transportPool{
		transports:     make(map[Timeouts]*http.Transport),
		connectTimeout: connectTimeout,
	}
}

func (p *transportPool) get(t Timeouts) *http.Transport {
	p.mu.Lock()
	defer p.mu.Unlock()

	if tr, ok := p.transports[t]; ok {
		return tr
	}

	dialer := &net.Dialer{Timeout: p.connectTimeout, KeepAlive: 30 * time.Second}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &deadlineConn{Conn: conn, read: t.Read, write: t.Write}, nil
		},
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   p.connectTimeout,
		ExpectContinueTimeout: time.Second,
	}
	p.transports[t] = tr
	return tr
}

func (p *transportPool) closeIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, tr := range p.transports {
		tr.CloseIdleConnections()
	}
}
