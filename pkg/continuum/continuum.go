// Package continuum implements a Ketama-style consistent-hashing ring: a
// sorted array of (point, server index) pairs built once per server-list
// change, used to route keys to servers and to fail over to the next
// point when the first choice is down.
package continuum

import (
	"fmt"
	"sort"

	"github.com/cachemir/mc/pkg/hashfn"
)

// pointsPerBucket is the number of continuum points extracted from a
// single MD5 digest (4 bytes grouped little-endian into one uint32 each).
const pointsPerBucket = 4

// bucketsPerServer is the number of MD5 digests computed per server,
// giving 160 virtual points per server in total (spec.md section 3).
const bucketsPerServer = 40

// point is one entry of the sorted ring.
type point struct {
	hash   uint32
	server uint16
}

// Ring is the immutable, sorted set of virtual points produced from a
// server list. It is safe for concurrent reads; it is rebuilt wholesale
// whenever the server list changes and never mutated in place.
type Ring struct {
	servers []Server
	points  []point
}

// Build constructs a Ring from servers, in insertion order (ties in point
// value are broken by that order, matching spec.md's "stable ordering").
func Build(servers []Server) (*Ring, error) {
	if len(servers) == 0 {
		return nil, fmt.Errorf("continuum: at least one server is required")
	}

	r := &Ring{servers: append([]Server(nil), servers...)}
	r.points = make([]point, 0, len(servers)*bucketsPerServer*pointsPerBucket)

	for idx, srv := range servers {
		label := srv.Label()
		for bucket := 0; bucket < bucketsPerServer; bucket++ {
			digest := hashfn.MD5Digest(fmt.Sprintf("%s-%d", label, bucket))
			for p := 0; p < pointsPerBucket; p++ {
				off := p * 4
				h := uint32(digest[off]) | uint32(digest[off+1])<<8 |
					uint32(digest[off+2])<<16 | uint32(digest[off+3])<<24
				r.points = append(r.points, point{hash: h, server: uint16(idx)})
			}
		}
	}

	sort.SliceStable(r.points, func(i, j int) bool {
		return r.points[i].hash < r.points[j].hash
	})

	return r, nil
}

// Servers returns the server list the ring was built from, in order.
func (r *Ring) Servers() []Server { return r.servers }

// search returns the index of the smallest point >= hash, wrapping to 0 on
// overflow (the ring's circular property).
func (r *Ring) search(hash uint32) int {
	idx := sort.Search(len(r.points), func(i int) bool {
		return r.points[i].hash >= hash
	})
	if idx == len(r.points) {
		idx = 0
	}
	return idx
}

// Lookup returns the server index the ring's first choice maps key to,
// regardless of server health — spec.md's get_host_by_key.
func (r *Ring) Lookup(key []byte, h hashfn.Func) int {
	hash := h(key)
	idx := r.search(hash)
	return int(r.points[idx].server)
}

// LookupFailover is Lookup, except that when dead(serverIndex) is true for
// the chosen point it advances clockwise to the next point, skipping dead
// servers, giving up after at most len(servers) distinct probes — spec.md's
// get_realtime_host_by_key. ok is false if no live server was found.
func (r *Ring) LookupFailover(key []byte, h hashfn.Func, dead func(serverIndex int) bool) (serverIndex int, ok bool) {
	hash := h(key)
	start := r.search(hash)
	n := len(r.points)
	maxProbes := len(r.servers)

	seen := make(map[uint16]bool, maxProbes)
	for i := 0; i < n && len(seen) < maxProbes; i++ {
		p := r.points[(start+i)%n]
		if seen[p.server] {
			continue
		}
		seen[p.server] = true
		if !dead(int(p.server)) {
			return int(p.server), true
		}
	}
	return 0, false
}
