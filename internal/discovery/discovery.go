// Package discovery advertises this node over mDNS/DNS-SD and surfaces
// peer add/remove events by periodically browsing the network, per spec
// §4.3 and §6. Grounded on this codebase's mDNS advertiser/resolver
// ancestor: a server-factory/resolver test seam around
// github.com/grandcat/zeroconf, generalized from Matter's three
// discriminator-filtered service types down to TAD's single
// `_tad._tcp.local.` service.
package discovery

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"
)

// ServiceType is the TAD mDNS service type (spec §6).
const ServiceType = "_tad._tcp"

// DefaultDomain is the mDNS domain.
const DefaultDomain = "local."

// DefaultPort is the default TAD TCP port (spec §6).
const DefaultPort = 8765

// DefaultBrowseInterval is how often the network is re-scanned for
// peers. A peer missing from a single scan is treated as "lost".
const DefaultBrowseInterval = 15 * time.Second

// MDNSServer is the interface for mDNS service registration, allowing a
// fake in unit tests.
type MDNSServer interface {
	Shutdown()
}

// MDNSServerFactory creates MDNSServer instances.
type MDNSServerFactory interface {
	Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error)
}

// MDNSResolver is the interface for mDNS browsing, allowing a fake in unit tests.
type MDNSResolver interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

type zeroconfServerFactory struct{}

func (zeroconfServerFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces)
}

type zeroconfResolver struct {
	r *zeroconf.Resolver
}

func newZeroconfResolver() (*zeroconfResolver, error) {
	r, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}
	return &zeroconfResolver{r: r}, nil
}

func (z *zeroconfResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	return z.r.Browse(ctx, service, domain, entries)
}

// PeerFoundFunc is invoked when a new peer is observed.
type PeerFoundFunc func(nodeID, address string)

// PeerLostFunc is invoked when a previously observed peer drops out of
// the advertisement set.
type PeerLostFunc func(nodeID string)

// Config configures Discovery.
type Config struct {
	// NodeID is this node's own node_id; its own advertisement is always
	// ignored on browse (spec §4.3: "MUST ignore its own advertisement").
	NodeID  string
	Port    int
	Version string

	Interfaces []net.Interface

	BrowseInterval time.Duration

	ServerFactory MDNSServerFactory
	Resolver      MDNSResolver

	OnPeerFound PeerFoundFunc
	OnPeerLost  PeerLostFunc

	LoggerFactory logging.LoggerFactory
}

// Discovery advertises the local TAD service and browses for peers.
type Discovery struct {
	cfg Config
	log logging.LeveledLogger

	server   MDNSServer
	resolver MDNSResolver

	mu      sync.Mutex
	seen    map[string]string // node_id -> address, from the most recent scan
	started bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Discovery instance with defaults applied.
func New(cfg Config) (*Discovery, error) {
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	if cfg.BrowseInterval <= 0 {
		cfg.BrowseInterval = DefaultBrowseInterval
	}

	d := &Discovery{cfg: cfg, seen: make(map[string]string)}
	if cfg.LoggerFactory != nil {
		d.log = cfg.LoggerFactory.NewLogger("discovery")
	}

	if cfg.ServerFactory == nil {
		d.cfg.ServerFactory = zeroconfServerFactory{}
	}
	if cfg.Resolver == nil {
		zr, err := newZeroconfResolver()
		if err != nil {
			return nil, err
		}
		d.resolver = zr
	} else {
		d.resolver = cfg.Resolver
	}

	return d, nil
}

// Start advertises the local service and begins the periodic browse loop.
func (d *Discovery) Start() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if d.started {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}

	txt := ServiceTXT{NodeID: d.cfg.NodeID, Port: d.cfg.Port, Version: d.cfg.Version}
	server, err := d.cfg.ServerFactory.Register(d.cfg.NodeID, ServiceType, DefaultDomain, d.cfg.Port, txt.Encode(), d.cfg.Interfaces)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	d.server = server
	d.started = true

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.mu.Unlock()

	if d.log != nil {
		d.log.Infof("advertising %s on port %d", ServiceType, d.cfg.Port)
	}

	d.wg.Add(1)
	go d.browseLoop(ctx)
	return nil
}

func (d *Discovery) browseLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.BrowseInterval)
	defer ticker.Stop()

	d.scanOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.scanOnce(ctx)
		}
	}
}

func (d *Discovery) scanOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, d.cfg.BrowseInterval)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})

	current := make(map[string]string)
	go func() {
		defer close(done)
		for entry := range entries {
			txt, err := ParseTXT(entry.Text)
			if err != nil {
				continue
			}
			if txt.NodeID == d.cfg.NodeID {
				continue // ignore our own advertisement
			}
			addr := resolveAddress(entry, txt.Port)
			if addr == "" {
				continue
			}
			current[txt.NodeID] = addr
		}
	}()

	if err := d.resolver.Browse(ctx, ServiceType, DefaultDomain, entries); err != nil {
		close(entries)
		<-done
		if d.log != nil {
			d.log.Warnf("browse failed: %v", err)
		}
		return
	}
	<-done

	d.reconcile(current)
}

func resolveAddress(entry *zeroconf.ServiceEntry, port int) string {
	for _, ip := range entry.AddrIPv4 {
		return net.JoinHostPort(ip.String(), itoa(port))
	}
	for _, ip := range entry.AddrIPv6 {
		return net.JoinHostPort(ip.String(), itoa(port))
	}
	return ""
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func (d *Discovery) reconcile(current map[string]string) {
	d.mu.Lock()
	var found []string
	var lost []string
	for id, addr := range current {
		if prev, ok := d.seen[id]; !ok || prev != addr {
			found = append(found, id)
		}
	}
	for id := range d.seen {
		if _, ok := current[id]; !ok {
			lost = append(lost, id)
		}
	}
	d.seen = current
	d.mu.Unlock()

	for _, id := range found {
		if d.cfg.OnPeerFound != nil {
			d.cfg.OnPeerFound(id, current[id])
		}
	}
	for _, id := range lost {
		if d.cfg.OnPeerLost != nil {
			d.cfg.OnPeerLost(id)
		}
	}
}

// Stop halts browsing and withdraws the advertisement.
func (d *Discovery) Stop() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.closed = true
	if d.cancel != nil {
		d.cancel()
	}
	server := d.server
	d.mu.Unlock()

	if server != nil {
		server.Shutdown()
	}
	d.wg.Wait()
	return nil
}
