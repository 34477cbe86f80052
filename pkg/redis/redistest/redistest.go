// Package redistest provides an in-memory Redis for tests.
package redistest

import (
	"net"
	"testing"

	"dcabot/backend/pkg/redis"

	"github.com/alicebob/miniredis/v2"
)

// New starts a miniredis server for the duration of t and returns a connected client
func New(t testing.TB) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	if err != nil {
		t.Fatalf("split miniredis addr: %v", err)
	}

	client, err := redis.New(redis.Config{Host: host, Port: port})
	if err != nil {
		t.Fatalf("connect miniredis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}
