package continuum

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultPort is used when a ServerSpec omits an explicit port, both for
// the hash label (spec.md "host[:port] (port omitted for the default
// 11211)") and for dialing.
const DefaultPort = 11211

// Server is a single host endpoint in the continuum. Hashing uses Alias if
// provided, otherwise the host[:port] form (port elided when it is the
// default 11211); the connection target is always host:port.
type Server struct {
	Host  string
	Port  int
	Alias string
}

// ParseServer parses one "host[:port][ alias]" entry from a servers list,
// matching the client config option documented in spec.md section 6.
func ParseServer(spec string) (Server, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Server{}, fmt.Errorf("continuum: empty server spec")
	}

	fields := strings.Fields(spec)
	addr := fields[0]
	alias := ""
	if len(fields) > 1 {
		alias = fields[1]
	}

	host := addr
	port := DefaultPort
	if idx := strings.LastIndex(addr, ":"); idx >= 0 {
		host = addr[:idx]
		p, err := strconv.Atoi(addr[idx+1:])
		if err != nil {
			return Server{}, fmt.Errorf("continuum: invalid port in %q: %w", spec, err)
		}
		port = p
	}

	return Server{Host: host, Port: port, Alias: alias}, nil
}

// Addr is the dial target, always host:port.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Label is the string hashed into the continuum: Alias if set, else
// host[:port] with the default port elided.
func (s Server) Label() string {
	if s.Alias != "" {
		return s.Alias
	}
	if s.Port == DefaultPort {
		return s.Host
	}
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
