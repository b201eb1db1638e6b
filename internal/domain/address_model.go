package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedAddress is returned when an address cannot be packed into 32 bits.
var ErrMalformedAddress = errors.New("malformed ipv4 address")

// Address is a dotted-quad IPv4 host candidate as read from a list file.
// It is not validated on construction.
type Address string

// ParseUint32 packs the four dot-separated segments of addr most-significant
// first. Every segment must be a base-10 integer in 0-255.
func ParseUint32(addr Address) (uint32, error) {
	s := string(addr)
	var out uint32
	for i := 0; i < 4; i++ {
		seg := s
		if i < 3 {
			dot := strings.IndexByte(s, '.')
			if dot < 0 {
				return 0, fmt.Errorf("%w: %q has fewer than 4 segments", ErrMalformedAddress, string(addr))
			}
			seg, s = s[:dot], s[dot+1:]
		} else if strings.IndexByte(s, '.') >= 0 {
			return 0, fmt.Errorf("%w: %q has more than 4 segments", ErrMalformedAddress, string(addr))
		}

		if seg == "" || len(seg) > 3 {
			return 0, fmt.Errorf("%w: %q segment %d is %q", ErrMalformedAddress, string(addr), i+1, seg)
		}
		v, err := strconv.ParseUint(seg, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("%w: %q segment %d is %q", ErrMalformedAddress, string(addr), i+1, seg)
		}
		out = out<<8 | uint32(v)
	}
	return out, nil
}

// FormatUint32 renders a packed address back to dotted-quad form.
func FormatUint32(v uint32) Address {
	return Address(fmt.Sprintf("%d.%d.%d.%d", byte(v>>24), byte(v>>16), byte(v>>8), byte(v)))
}
