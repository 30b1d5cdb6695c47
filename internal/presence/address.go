package presence

import (
	"net"
	"net/netip"
	"strings"
)

// NormalizeAddr reduces a caller address to the bare form used in
// discovery records. It strips a port ("10.0.0.5:5123"), brackets and
// zones, and unmaps IPv4-mapped IPv6 ("::ffff:10.0.0.5"). Input that is not
// an IP address is returned trimmed and otherwise unchanged.
func NormalizeAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	addr = strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")

	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return addr
	}
	return ip.WithZone("").Unmap().String()
}
