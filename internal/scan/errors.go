package scan

import "errors"

var (
	ErrNoInterface    = errors.New("scan: no usable interface found")
	ErrNoIPv4         = errors.New("scan: no IPv4 address on interface")
	ErrPrefixTooLarge = errors.New("scan: prefix has more addresses than max_hosts")
)
