// Package codec implements the value codec from spec.md section 4.4: a
// 16-bit flags word describing how a payload was produced (raw bytes,
// decimal-printed scalar, or host-language serialized object), optionally
// zlib-compressed, and optionally split into chunks when the final blob
// exceeds a configured size.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/cachemir/mc/pkg/mcerr"
	"github.com/klauspost/compress/zlib"
)

// DefaultChunkSize is the threshold above which a stored blob is split
// into chunks under derived keys (spec.md section 3).
const DefaultChunkSize = 1_000_000

// chunkKey builds the derived key for chunk i of a logical key.
func chunkKey(key string, i int) string {
	return fmt.Sprintf("%s/%d", key, i)
}

// Options configures one Codec instance. Zero value is valid and disables
// compression (CompThreshold 0) while defaulting ChunkSize to
// DefaultChunkSize.
type Options struct {
	CompThreshold int // minimum bytes before compression is attempted; 0 disables it
	ChunkSize     int // maximum bytes per stored blob before chunking; 0 means DefaultChunkSize
	NoCompress    bool
	Object        ObjectCodec // defaults to DefaultObjectCodec
}

// Codec encodes/decodes values according to Options. It is stateless
// beyond its Options and safe for concurrent use.
type Codec struct {
	opts Options
}

func New(opts Options) *Codec {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Object == nil {
		opts.Object = DefaultObjectCodec
	}
	return &Codec{opts: opts}
}

// StoredItem is one physical memcached item produced by Encode: either a
// chunk (Key is a derived "<key>/<n>") or the top-level item stored under
// the caller's own key (always the last element).
type StoredItem struct {
	Key   string
	Flags Flags
	Data  []byte
}

// Encode turns value into one or more StoredItems to write under key.
// userFlags is opaque to the codec and OR'd into the stored flags word on
// top of the bits the codec itself assigns; any codec-owned bits
// (compressed, structured, raw, int, long, bool, chunked) set in
// userFlags are cleared first.
func (c *Codec) Encode(key string, value any, userFlags uint16) ([]StoredItem, error) {
	raw, flags, err := c.marshal(value)
	if err != nil {
		return nil, mcerr.New(mcerr.ProgrammingErr, key, err)
	}

	if c.opts.CompThreshold > 0 && !c.opts.NoCompress && len(raw) >= c.opts.CompThreshold {
		if compressed, ok := compress(raw); ok {
			raw = compressed
			flags |= FlagCompressed
		}
	}

	flags |= Flags(userFlags) &^ (FlagCompressed | FlagStructured | FlagRaw | FlagInt | FlagLong | FlagBool | FlagChunked)

	if len(raw) <= c.opts.ChunkSize {
		return []StoredItem{{Key: key, Flags: flags, Data: raw}}, nil
	}

	return c.chunk(key, raw, flags), nil
}

// marshal picks the flag bit and byte encoding for value, per spec.md
// section 4.4's Encode cases.
func (c *Codec) marshal(value any) ([]byte, Flags, error) {
	switch v := value.(type) {
	case []byte:
		return v, FlagRaw, nil
	case string:
		return []byte(v), FlagRaw, nil
	case bool:
		if v {
			return []byte("1"), FlagBool, nil
		}
		return []byte("0"), FlagBool, nil
	case int:
		return []byte(strconv.Itoa(v)), FlagInt, nil
	case int32:
		return []byte(strconv.FormatInt(int64(v), 10)), FlagInt, nil
	case int64:
		return []byte(strconv.FormatInt(v, 10)), FlagLong, nil
	case uint64:
		return []byte(strconv.FormatUint(v, 10)), FlagLong, nil
	default:
		data, err := c.opts.Object.Encode(value)
		if err != nil {
			return nil, 0, err
		}
		return data, FlagStructured, nil
	}
}

// chunk splits raw into ceil(N/chunk_size) child items plus a descriptor
// stored under key, per spec.md section 4.4/6.
func (c *Codec) chunk(key string, raw []byte, innerFlags Flags) []StoredItem {
	size := c.opts.ChunkSize
	n := (len(raw) + size - 1) / size

	items := make([]StoredItem, 0, n+1)
	for i := 0; i < n; i++ {
		start := i * size
		end := start + size
		if end > len(raw) {
			end = len(raw)
		}
		items = append(items, StoredItem{Key: chunkKey(key, i), Flags: FlagRaw, Data: raw[start:end]})
	}

	descriptor := []byte(fmt.Sprintf("%d %d %d", n, len(raw), uint16(innerFlags)))
	items = append(items, StoredItem{Key: key, Flags: FlagChunked, Data: descriptor})
	return items
}

// ChildGetter fetches a chunk child previously stored by Encode's chunk
// step. ok is false on a cache miss for that child.
type ChildGetter func(key string) (data []byte, flags Flags, ok bool, err error)

// Decode is the inverse of Encode. If flags has FlagChunked, it parses the
// descriptor, fetches every child via get, concatenates them, and decodes
// recursively with the inner flags word. Any missing child yields a miss
// (ok=false), not an error, per spec.md's chunk reassembly invariant.
func (c *Codec) Decode(key string, data []byte, flags uint16, get ChildGetter) (value any, ok bool, err error) {
	f := Flags(flags)

	if f.has(FlagChunked) {
		n, total, inner, perr := parseDescriptor(data)
		if perr != nil {
			return nil, false, mcerr.New(mcerr.IncompleteBufferErr, key, perr)
		}
		buf := make([]byte, 0, total)
		for i := 0; i < n; i++ {
			childData, childFlags, found, gerr := get(chunkKey(key, i))
			if gerr != nil {
				return nil, false, gerr
			}
			if !found {
				return nil, false, nil
			}
			_ = childFlags
			buf = append(buf, childData...)
		}
		return c.Decode(key, buf, uint16(inner), get)
	}

	raw := data
	if f.has(FlagCompressed) {
		decompressed, derr := decompress(raw)
		if derr != nil {
			return nil, false, mcerr.New(mcerr.IncompleteBufferErr, key, derr)
		}
		raw = decompressed
	}

	switch {
	case f.has(FlagRaw):
		return raw, true, nil
	case f.has(FlagBool):
		return string(raw) == "1", true, nil
	case f.has(FlagInt):
		n, perr := strconv.Atoi(string(raw))
		if perr != nil {
			return nil, false, mcerr.New(mcerr.ProgrammingErr, key, perr)
		}
		return n, true, nil
	case f.has(FlagLong):
		n, perr := strconv.ParseInt(string(raw), 10, 64)
		if perr != nil {
			return nil, false, mcerr.New(mcerr.ProgrammingErr, key, perr)
		}
		return n, true, nil
	case f.has(FlagStructured):
		var out any
		if perr := c.opts.Object.Decode(raw, &out); perr != nil {
			return nil, false, mcerr.New(mcerr.ProgrammingErr, key, perr)
		}
		return out, true, nil
	default:
		return raw, true, nil
	}
}

func parseDescriptor(data []byte) (n int, total int, inner uint16, err error) {
	var innerInt int
	count, serr := fmt.Sscanf(string(data), "%d %d %d", &n, &total, &innerInt)
	if serr != nil || count != 3 {
		return 0, 0, 0, fmt.Errorf("codec: malformed chunk descriptor %q", data)
	}
	return n, total, uint16(innerInt), nil
}

// compress zlib-compresses raw, returning ok=false if the result is not
// smaller (spec.md: "attempt compression; on a size win set COMPRESSED").
func compress(raw []byte) ([]byte, bool) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	if buf.Len() >= len(raw) {
		return nil, false
	}
	return buf.Bytes(), true
}

func decompress(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
