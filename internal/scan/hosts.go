package scan

import (
	"net"
	"net/netip"
	"sort"

	"github.com/nerrad567/presence-core/internal/presence"
)

// Host is one device that answered on the local network.
type Host struct {
	IP  netip.Addr
	MAC net.HardwareAddr
}

// prefixSize is the number of addresses in an IPv4 prefix.
func prefixSize(pfx netip.Prefix) int {
	return 1 << (32 - pfx.Bits())
}

// targets lists the addresses to probe in pfx, skipping self and, for
// prefixes of /30 and wider, the network and broadcast addresses.
// Callers bound pfx with prefixSize first.
func targets(pfx netip.Prefix, self netip.Addr) []netip.Addr {
	pfx = pfx.Masked()
	all := make([]netip.Addr, 0, prefixSize(pfx))
	for ip := pfx.Addr(); pfx.Contains(ip); ip = ip.Next() {
		all = append(all, ip)
	}
	if pfx.Bits() <= 30 && len(all) > 2 {
		all = all[1 : len(all)-1]
	}

	out := all[:0]
	for _, ip := range all {
		if ip != self {
			out = append(out, ip)
		}
	}
	return out
}

// hostSet collects replies keyed by IP. The first MAC seen for an IP wins.
type hostSet map[netip.Addr]Host

func (s hostSet) add(ip netip.Addr, mac net.HardwareAddr) {
	if !ip.IsValid() || ip.IsUnspecified() || len(mac) == 0 {
		return
	}
	if _, ok := s[ip]; ok {
		return
	}
	s[ip] = Host{IP: ip, MAC: append(net.HardwareAddr(nil), mac...)}
}

func (s hostSet) sorted() []Host {
	out := make([]Host, 0, len(s))
	for _, h := range s {
		out = append(out, h)
	}
	sortHosts(out)
	return out
}

func sortHosts(hosts []Host) {
	sort.Slice(hosts, func(i, j int) bool {
		return hosts[i].IP.Less(hosts[j].IP)
	})
}

// ToDiscovery converts hosts into discovery records observed by self,
// sorted by IPv4. MACs use the lower-case colon form of
// net.HardwareAddr.String.
func ToDiscovery(hosts []Host, self Interface, location string) []presence.DiscoveredDevice {
	sorted := append([]Host(nil), hosts...)
	sortHosts(sorted)

	remoteIP := ""
	if self.Addr.IsValid() {
		remoteIP = self.Addr.String()
	}

	out := make([]presence.DiscoveredDevice, 0, len(sorted))
	for _, h := range sorted {
		out = append(out, presence.DiscoveredDevice{
			IPv4:      h.IP.String(),
			IPv6:      []string{},
			DeviceMAC: h.MAC.String(),
			RemoteIP:  remoteIP,
			RemoteMAC: self.MAC.String(),
			Location:  location,
		})
	}
	return out
}
