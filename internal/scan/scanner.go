package scan

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/mdlayher/arp"
)

// Defaults for Options fields left zero.
const (
	DefaultTimeout  = 3 * time.Second
	DefaultMaxHosts = 1024
)

// Options configures a Scanner.
type Options struct {
	// Interface to scan from. Empty picks the first usable one.
	Interface string
	Timeout   time.Duration
	MaxHosts  int
}

// Logger is the logging interface used by the scanner.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Scanner sweeps one interface's IPv4 prefix with ARP requests.
type Scanner struct {
	ifi    *net.Interface
	self   Interface
	opts   Options
	logger Logger
}

// New resolves the interface and checks its prefix against MaxHosts.
func New(opts Options) (*Scanner, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxHosts <= 0 {
		opts.MaxHosts = DefaultMaxHosts
	}

	ifi, self, err := resolveInterface(opts.Interface)
	if err != nil {
		return nil, err
	}
	if n := prefixSize(self.Prefix); n > opts.MaxHosts {
		return nil, fmt.Errorf("%w: %s has %d addresses, max %d", ErrPrefixTooLarge, self.Prefix, n, opts.MaxHosts)
	}

	return &Scanner{ifi: ifi, self: self, opts: opts, logger: noopLogger{}}, nil
}

// SetLogger sets the logger.
func (s *Scanner) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Self returns the interface the scanner sends from.
func (s *Scanner) Self() Interface {
	return s.self
}

// Scan sends one ARP request per target and collects every reply seen
// until the timeout elapses or ctx is done. Hosts return sorted by IP.
// Raw sockets need CAP_NET_RAW.
func (s *Scanner) Scan(ctx context.Context) ([]Host, error) {
	c, err := arp.Dial(s.ifi)
	if err != nil {
		return nil, fmt.Errorf("opening arp socket on %s: %w", s.self.Name, err)
	}
	defer c.Close()

	deadline := time.Now().Add(s.opts.Timeout)
	if err := c.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("setting read deadline: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = c.SetReadDeadline(time.Now())
	})
	defer stop()

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		for _, ip := range targets(s.self.Prefix, s.self.Addr) {
			if reqCtx.Err() != nil {
				return
			}
			if err := c.Request(ip); err != nil {
				s.logger.Debug("arp request failed", "ip", ip.String(), "error", err)
			}
		}
	}()

	hosts := hostSet{}
	for {
		pkt, _, err := c.Read()
		if err != nil {
			if isTimeout(err) || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Debug("arp read failed", "error", err)
			if time.Now().After(deadline) {
				break
			}
			continue
		}
		if pkt.SenderIP == s.self.Addr || !s.self.Prefix.Contains(pkt.SenderIP) {
			continue
		}
		hosts.add(pkt.SenderIP, pkt.SenderHardwareAddr)
	}

	if err := ctx.Err(); err != nil {
		return hosts.sorted(), err
	}
	return hosts.sorted(), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
