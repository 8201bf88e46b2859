// Package wire implements the memcached ASCII protocol: building outbound
// command bytes and incrementally parsing the interleaved ASCII responses
// a server streams back. All commands are CRLF-terminated; value framing
// is "<flags> <exptime> <bytes>\r\n<data>\r\n" (spec.md section 6).
package wire

import (
	"fmt"
	"strconv"
	"strings"
)

const crlf = "\r\n"

// GetCommand builds a "get k1 k2 ... kn\r\n" command. withCas selects
// "gets" so the server includes the CAS token on each VALUE line.
func GetCommand(keys []string, withCas bool) []byte {
	verb := "get"
	if withCas {
		verb = "gets"
	}
	var b strings.Builder
	b.WriteString(verb)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
	}
	b.WriteString(crlf)
	return []byte(b.String())
}

// StoreVerb is one of the memcached storage commands.
type StoreVerb string

const (
	VerbSet     StoreVerb = "set"
	VerbAdd     StoreVerb = "add"
	VerbReplace StoreVerb = "replace"
	VerbAppend  StoreVerb = "append"
	VerbPrepend StoreVerb = "prepend"
	VerbCas     StoreVerb = "cas"
)

// StoreCommand builds "<verb> key flags exptime bytes [cas_token]
// [noreply]\r\n<data>\r\n". casToken is ignored unless verb is VerbCas.
func StoreCommand(verb StoreVerb, key string, flags uint16, exptime int64, data []byte, casToken uint64, noreply bool) []byte {
	var b strings.Builder
	b.WriteString(string(verb))
	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(uint64(flags), 10))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(exptime, 10))
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(len(data)))
	if verb == VerbCas {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatUint(casToken, 10))
	}
	if noreply {
		b.WriteString(" noreply")
	}
	b.WriteString(crlf)
	b.Write(data)
	b.WriteString(crlf)
	return []byte(b.String())
}

// DeltaCommand builds "incr/decr key delta [noreply]\r\n".
func DeltaCommand(incr bool, key string, delta uint64, noreply bool) []byte {
	verb := "incr"
	if !incr {
		verb = "decr"
	}
	cmd := fmt.Sprintf("%s %s %d", verb, key, delta)
	if noreply {
		cmd += " noreply"
	}
	return []byte(cmd + crlf)
}

// DeleteCommand builds "delete key [noreply]\r\n".
func DeleteCommand(key string, noreply bool) []byte {
	cmd := "delete " + key
	if noreply {
		cmd += " noreply"
	}
	return []byte(cmd + crlf)
}

// TouchCommand builds "touch key exptime [noreply]\r\n".
func TouchCommand(key string, exptime int64, noreply bool) []byte {
	cmd := fmt.Sprintf("touch %s %d", key, exptime)
	if noreply {
		cmd += " noreply"
	}
	return []byte(cmd + crlf)
}

// FlushAllCommand builds "flush_all [noreply]\r\n".
func FlushAllCommand(noreply bool) []byte {
	if noreply {
		return []byte("flush_all noreply" + crlf)
	}
	return []byte("flush_all" + crlf)
}

// StatsCommand builds "stats\r\n".
func StatsCommand() []byte { return []byte("stats" + crlf) }

// VersionCommand builds "version\r\n".
func VersionCommand() []byte { return []byte("version" + crlf) }

// QuitCommand builds "quit\r\n".
func QuitCommand() []byte { return []byte("quit" + crlf) }
