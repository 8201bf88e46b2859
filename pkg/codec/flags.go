package codec

// Flags is the 16-bit word stored alongside every item, encoding how its
// bytes were produced and how to invert the transformation on read.
type Flags uint16

const (
	FlagCompressed Flags = 1 << 0 // zlib-compressed payload
	FlagStructured Flags = 1 << 1 // host-language object serialization
	FlagRaw        Flags = 1 << 2 // bytes-like value stored verbatim
	FlagInt        Flags = 1 << 3 // decimal ASCII, fits int
	FlagLong       Flags = 1 << 4 // decimal ASCII, fits int64
	FlagBool       Flags = 1 << 5 // "0" or "1"
	FlagChunked    Flags = 1 << 12
)

func (f Flags) has(bit Flags) bool { return f&bit != 0 }
