package scan

import (
	"errors"
	"net"
	"net/netip"
	"testing"
)

func mustMAC(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	mac, err := net.ParseMAC(s)
	if err != nil {
		t.Fatalf("ParseMAC(%q): %v", s, err)
	}
	return mac
}

func TestPrefixSize(t *testing.T) {
	tests := []struct {
		prefix string
		want   int
	}{
		{"192.168.1.0/24", 256},
		{"10.0.0.0/30", 4},
		{"10.0.0.1/32", 1},
		{"10.0.0.0/22", 1024},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			if got := prefixSize(netip.MustParsePrefix(tt.prefix)); got != tt.want {
				t.Errorf("prefixSize(%s) = %d, want %d", tt.prefix, got, tt.want)
			}
		})
	}
}

func TestTargets(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		self   string
		want   []string
	}{
		{
			name:   "slash 30 skips network broadcast and self",
			prefix: "10.0.0.0/30",
			self:   "10.0.0.1",
			want:   []string{"10.0.0.2"},
		},
		{
			name:   "unmasked prefix",
			prefix: "10.0.0.2/30",
			self:   "10.0.0.2",
			want:   []string{"10.0.0.1"},
		},
		{
			name:   "slash 31 keeps both ends",
			prefix: "10.0.0.0/31",
			self:   "10.0.0.0",
			want:   []string{"10.0.0.1"},
		},
		{
			name:   "slash 32 is only self",
			prefix: "10.0.0.9/32",
			self:   "10.0.0.9",
			want:   []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := targets(netip.MustParsePrefix(tt.prefix), netip.MustParseAddr(tt.self))
			if len(got) != len(tt.want) {
				t.Fatalf("targets() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i].String() != tt.want[i] {
					t.Errorf("targets()[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTargets_Slash24(t *testing.T) {
	got := targets(netip.MustParsePrefix("192.168.1.0/24"), netip.MustParseAddr("192.168.1.10"))
	if len(got) != 253 {
		t.Fatalf("len(targets) = %d, want 253", len(got))
	}
	if got[0].String() != "192.168.1.1" || got[len(got)-1].String() != "192.168.1.254" {
		t.Errorf("targets range = %s..%s", got[0], got[len(got)-1])
	}
	for _, ip := range got {
		if ip.String() == "192.168.1.10" {
			t.Error("targets includes self")
		}
	}
}

func TestHostSet(t *testing.T) {
	hs := hostSet{}
	first := mustMAC(t, "aa:aa:aa:aa:aa:aa")

	hs.add(netip.MustParseAddr("10.0.0.20"), first)
	hs.add(netip.MustParseAddr("10.0.0.20"), mustMAC(t, "bb:bb:bb:bb:bb:bb"))
	hs.add(netip.MustParseAddr("10.0.0.3"), mustMAC(t, "cc:cc:cc:cc:cc:cc"))
	hs.add(netip.MustParseAddr("0.0.0.0"), mustMAC(t, "dd:dd:dd:dd:dd:dd"))
	hs.add(netip.MustParseAddr("10.0.0.4"), nil)

	// The stored MAC must not alias the caller's buffer.
	first[0] = 0xff

	got := hs.sorted()
	if len(got) != 2 {
		t.Fatalf("len(sorted) = %d, want 2: %v", len(got), got)
	}
	if got[0].IP.String() != "10.0.0.3" {
		t.Errorf("sorted[0].IP = %s, want 10.0.0.3", got[0].IP)
	}
	if got[1].MAC.String() != "aa:aa:aa:aa:aa:aa" {
		t.Errorf("sorted[1].MAC = %s, want first MAC seen", got[1].MAC)
	}
}

func TestToDiscovery(t *testing.T) {
	self := Interface{
		Name:   "eth0",
		MAC:    mustMAC(t, "02:00:00:00:00:01"),
		Addr:   netip.MustParseAddr("10.0.0.1"),
		Prefix: netip.MustParsePrefix("10.0.0.0/24"),
	}
	hosts := []Host{
		{IP: netip.MustParseAddr("10.0.0.30"), MAC: mustMAC(t, "AA:BB:CC:00:00:30")},
		{IP: netip.MustParseAddr("10.0.0.4"), MAC: mustMAC(t, "aa:bb:cc:00:00:04")},
	}

	got := ToDiscovery(hosts, self, "lab")
	if len(got) != 2 {
		t.Fatalf("len(ToDiscovery) = %d, want 2", len(got))
	}
	if got[0].IPv4 != "10.0.0.4" || got[1].IPv4 != "10.0.0.30" {
		t.Errorf("order = %s, %s; want 10.0.0.4, 10.0.0.30", got[0].IPv4, got[1].IPv4)
	}
	if got[1].DeviceMAC != "aa:bb:cc:00:00:30" {
		t.Errorf("DeviceMAC = %q, want lower-case colon form", got[1].DeviceMAC)
	}
	for _, d := range got {
		if d.RemoteIP != "10.0.0.1" || d.RemoteMAC != "02:00:00:00:00:01" {
			t.Errorf("remote = %s/%s, want scanner interface", d.RemoteIP, d.RemoteMAC)
		}
		if d.Location != "lab" {
			t.Errorf("Location = %q, want lab", d.Location)
		}
		if d.IPv6 == nil || len(d.IPv6) != 0 {
			t.Errorf("IPv6 = %v, want empty non-nil slice", d.IPv6)
		}
	}

	// Input order is left alone.
	if hosts[0].IP.String() != "10.0.0.30" {
		t.Error("ToDiscovery reordered its input")
	}
}

func TestToDiscovery_Empty(t *testing.T) {
	got := ToDiscovery(nil, Interface{}, "")
	if got == nil || len(got) != 0 {
		t.Errorf("ToDiscovery(nil) = %v, want empty non-nil slice", got)
	}
}

func TestNew_UnknownInterface(t *testing.T) {
	_, err := New(Options{Interface: "does-not-exist0"})
	if err == nil {
		t.Fatal("New() expected error for unknown interface")
	}
	if errors.Is(err, ErrPrefixTooLarge) {
		t.Errorf("New() error = %v, want interface lookup failure", err)
	}
}
