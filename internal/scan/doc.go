// Package scan finds devices on the local IPv4 network with an ARP sweep
// and turns them into discovery records for the presence topic.
//
// A Scanner is bound to one interface. Scan sends a request to every
// address in the interface's prefix and gathers replies until its
// timeout. Prefixes larger than Options.MaxHosts are refused at New.
//
//	s, err := scan.New(scan.Options{Interface: "eth0"})
//	hosts, err := s.Scan(ctx)
//	payload, err := presence.EncodeDiscovery(scan.ToDiscovery(hosts, s.Self(), "lab"))
package scan
