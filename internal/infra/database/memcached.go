package database

import (
	"github.com/bradfitz/gomemcache/memcache"
)

// NewMemcached returns nil when no server is configured; callers treat a nil
// client as a disabled cache.
func NewMemcached(server string) *memcache.Client {
	if server == "" {
		return nil
	}
	return memcache.New(server)
}
