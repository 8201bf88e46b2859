package testserver

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Server is a minimal ASCII memcached server backed by a Store, good
// enough to drive pkg/client and pkg/engine in tests: it understands
// get/gets/set/add/replace/append/prepend/cas/incr/decr/delete/touch/
// flush_all/stats/version/quit.
type Server struct {
	Store *Store
	log   *logrus.Logger

	ln net.Listener
	wg sync.WaitGroup
}

// New starts listening on "127.0.0.1:0" and returns a Server whose
// Addr() can be wired into a client.Config's Servers list.
func New() (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &Server{Store: NewStore(), log: logrus.StandardLogger(), ln: ln}
	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

// Addr returns the "host:port" the server is listening on.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Close stops accepting new connections and closes the listener.
func (s *Server) Close() error {
	err := s.ln.Close()
	s.wg.Wait()
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		verb := fields[0]

		if verb == "quit" {
			return
		}

		reply, needsBody, bodyLen := s.dispatchHeader(verb, fields)
		if needsBody {
			body := make([]byte, bodyLen+2)
			if _, err := readFull(r, body); err != nil {
				return
			}
			reply = s.dispatchBody(verb, fields, body[:bodyLen])
		}
		if reply == "" {
			continue
		}
		if _, err := conn.Write([]byte(reply)); err != nil {
			return
		}
	}
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// dispatchHeader handles every verb that needs no request body, and for
// storage verbs returns needsBody=true plus the expected byte count so
// the caller can read the payload before calling dispatchBody.
func (s *Server) dispatchHeader(verb string, fields []string) (reply string, needsBody bool, bodyLen int) {
	switch verb {
	case "get", "gets":
		return s.handleGet(fields, verb == "gets"), false, 0
	case "delete":
		return s.handleDelete(fields), false, 0
	case "incr":
		return s.handleDelta(fields, true), false, 0
	case "decr":
		return s.handleDelta(fields, false), false, 0
	case "touch":
		return s.handleTouch(fields), false, 0
	case "flush_all":
		s.Store.FlushAll()
		if hasNoreply(fields) {
			return "", false, 0
		}
		return "OK\r\n", false, 0
	case "version":
		return "VERSION 1.6.0-testserver\r\n", false, 0
	case "stats":
		return s.handleStats(), false, 0
	case "set", "add", "replace", "append", "prepend", "cas":
		if len(fields) < 5 {
			return "ERROR\r\n", false, 0
		}
		n, err := strconv.Atoi(fields[4])
		if err != nil || n < 0 {
			return "ERROR\r\n", false, 0
		}
		return "", true, n
	default:
		return "ERROR\r\n", false, 0
	}
}

func hasNoreply(fields []string) bool {
	return len(fields) > 0 && fields[len(fields)-1] == "noreply"
}

func (s *Server) handleGet(fields []string, withCas bool) string {
	var b strings.Builder
	for _, key := range fields[1:] {
		it, ok := s.Store.Get(key)
		if !ok {
			continue
		}
		if withCas {
			fmt.Fprintf(&b, "VALUE %s %d %d %d\r\n", key, it.flags, len(it.data), it.cas)
		} else {
			fmt.Fprintf(&b, "VALUE %s %d %d\r\n", key, it.flags, len(it.data))
		}
		b.Write(it.data)
		b.WriteString("\r\n")
	}
	b.WriteString("END\r\n")
	return b.String()
}

func (s *Server) handleDelete(fields []string) string {
	if len(fields) < 2 {
		return "ERROR\r\n"
	}
	noreply := hasNoreply(fields)
	ok := s.Store.Delete(fields[1])
	if noreply {
		return ""
	}
	if ok {
		return "DELETED\r\n"
	}
	return "NOT_FOUND\r\n"
}

func (s *Server) handleDelta(fields []string, incr bool) string {
	if len(fields) < 3 {
		return "ERROR\r\n"
	}
	noreply := hasNoreply(fields)
	delta, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil {
		return "CLIENT_ERROR invalid numeric delta argument\r\n"
	}
	n, ok := s.Store.Delta(fields[1], delta, incr)
	if noreply {
		return ""
	}
	if !ok {
		return "NOT_FOUND\r\n"
	}
	return strconv.FormatUint(n, 10) + "\r\n"
}

func (s *Server) handleTouch(fields []string) string {
	if len(fields) < 3 {
		return "ERROR\r\n"
	}
	noreply := hasNoreply(fields)
	exptime, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return "CLIENT_ERROR invalid exptime argument\r\n"
	}
	ok := s.Store.Touch(fields[1], exptime)
	if noreply {
		return ""
	}
	if ok {
		return "TOUCHED\r\n"
	}
	return "NOT_FOUND\r\n"
}

func (s *Server) handleStats() string {
	s.Store.mu.RLock()
	n := len(s.Store.items)
	s.Store.mu.RUnlock()
	return fmt.Sprintf("STAT curr_items %d\r\nSTAT version testserver\r\nEND\r\n", n)
}

func (s *Server) dispatchBody(verb string, fields []string, body []byte) string {
	key := fields[1]
	flags64, _ := strconv.ParseUint(fields[2], 10, 16)
	flags := uint16(flags64)
	exptime, _ := strconv.ParseInt(fields[3], 10, 64)
	noreply := hasNoreply(fields)

	var status string
	switch verb {
	case "set":
		s.Store.Set(key, body, flags, exptime)
		status = "STORED"
	case "add":
		if s.Store.Add(key, body, flags, exptime) {
			status = "STORED"
		} else {
			status = "NOT_STORED"
		}
	case "replace":
		if s.Store.Replace(key, body, flags, exptime) {
			status = "STORED"
		} else {
			status = "NOT_STORED"
		}
	case "append":
		if s.Store.Append(key, body) {
			status = "STORED"
		} else {
			status = "NOT_STORED"
		}
	case "prepend":
		if s.Store.Prepend(key, body) {
			status = "STORED"
		} else {
			status = "NOT_STORED"
		}
	case "cas":
		if len(fields) < 6 {
			return "ERROR\r\n"
		}
		token, err := strconv.ParseUint(fields[5], 10, 64)
		if err != nil {
			return "CLIENT_ERROR invalid cas token\r\n"
		}
		switch s.Store.Cas(key, body, flags, exptime, token) {
		case CasStored:
			status = "STORED"
		case CasExists:
			status = "EXISTS"
		default:
			status = "NOT_FOUND"
		}
	default:
		return "ERROR\r\n"
	}

	if noreply {
		return ""
	}
	return status + "\r\n"
}
