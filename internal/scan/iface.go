package scan

import (
	"fmt"
	"net"
	"net/netip"
)

// Interface is the local side of a scan: where requests are sent from.
type Interface struct {
	Name   string
	MAC    net.HardwareAddr
	Addr   netip.Addr
	Prefix netip.Prefix
}

// resolveInterface returns the named interface, or the first interface
// that is up, not loopback and has an IPv4 address.
func resolveInterface(name string) (*net.Interface, Interface, error) {
	if name != "" {
		ifi, err := net.InterfaceByName(name)
		if err != nil {
			return nil, Interface{}, fmt.Errorf("interface %s: %w", name, err)
		}
		self, err := describe(ifi)
		if err != nil {
			return nil, Interface{}, err
		}
		return ifi, self, nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, Interface{}, fmt.Errorf("listing interfaces: %w", err)
	}
	for i := range ifaces {
		ifi := &ifaces[i]
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagLoopback != 0 || len(ifi.HardwareAddr) == 0 {
			continue
		}
		if self, err := describe(ifi); err == nil {
			return ifi, self, nil
		}
	}
	return nil, Interface{}, ErrNoInterface
}

func describe(ifi *net.Interface) (Interface, error) {
	addrs, err := ifi.Addrs()
	if err != nil {
		return Interface{}, fmt.Errorf("addresses of %s: %w", ifi.Name, err)
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.To4() == nil {
			continue
		}
		addr, _ := netip.AddrFromSlice(ipnet.IP.To4())
		ones, _ := ipnet.Mask.Size()
		return Interface{
			Name:   ifi.Name,
			MAC:    ifi.HardwareAddr,
			Addr:   addr,
			Prefix: netip.PrefixFrom(addr, ones).Masked(),
		}, nil
	}
	return Interface{}, fmt.Errorf("%w: %s", ErrNoIPv4, ifi.Name)
}
