package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct{ shutdowns int }

func (s *fakeServer) Shutdown() { s.shutdowns++ }

type fakeServerFactory struct {
	server  *fakeServer
	lastTXT []string
	err     error
}

func (f *fakeServerFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastTXT = txt
	f.server = &fakeServer{}
	return f.server, nil
}

// fakeResolver immediately closes the entries channel: no peers found.
type fakeResolver struct{}

func (fakeResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	close(entries)
	return nil
}

func TestNewAppliesDefaults(t *testing.T) {
	d, err := New(Config{NodeID: "self", ServerFactory: &fakeServerFactory{}, Resolver: fakeResolver{}})
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, d.cfg.Port)
	assert.Equal(t, DefaultBrowseInterval, d.cfg.BrowseInterval)
	assert.Equal(t, "1.0.0", d.cfg.Version)
}

func TestStartRegistersAndAdvertisesTXT(t *testing.T) {
	factory := &fakeServerFactory{}
	d, err := New(Config{NodeID: "self", Port: 9999, ServerFactory: factory, Resolver: fakeResolver{}, BrowseInterval: time.Hour})
	require.NoError(t, err)

	require.NoError(t, d.Start())
	defer d.Stop()

	txt, err := ParseTXT(factory.lastTXT)
	require.NoError(t, err)
	assert.Equal(t, "self", txt.NodeID)
	assert.Equal(t, 9999, txt.Port)
}

func TestStartTwiceFails(t *testing.T) {
	d, err := New(Config{NodeID: "self", ServerFactory: &fakeServerFactory{}, Resolver: fakeResolver{}, BrowseInterval: time.Hour})
	require.NoError(t, err)

	require.NoError(t, d.Start())
	defer d.Stop()
	assert.ErrorIs(t, d.Start(), ErrAlreadyStarted)
}

func TestStopShutsDownServerAndRejectsReuse(t *testing.T) {
	factory := &fakeServerFactory{}
	d, err := New(Config{NodeID: "self", ServerFactory: factory, Resolver: fakeResolver{}, BrowseInterval: time.Hour})
	require.NoError(t, err)

	require.NoError(t, d.Start())
	require.NoError(t, d.Stop())

	assert.Equal(t, 1, factory.server.shutdowns)
	assert.ErrorIs(t, d.Stop(), ErrClosed)
	assert.ErrorIs(t, d.Start(), ErrClosed)
}

func TestReconcileFiresFoundAndLost(t *testing.T) {
	var found, lost []string
	d := &Discovery{
		cfg: Config{
			OnPeerFound: func(nodeID, address string) { found = append(found, nodeID) },
			OnPeerLost:  func(nodeID string) { lost = append(lost, nodeID) },
		},
		seen: map[string]string{"p1": "10.0.0.1:8765"},
	}

	d.reconcile(map[string]string{"p1": "10.0.0.1:8765", "p2": "10.0.0.2:8765"})
	assert.Equal(t, []string{"p2"}, found)
	assert.Empty(t, lost)

	found, lost = nil, nil
	d.reconcile(map[string]string{"p2": "10.0.0.2:8765"})
	assert.Empty(t, found)
	assert.Equal(t, []string{"p1"}, lost)
}

func TestReconcileFiresFoundOnAddressChange(t *testing.T) {
	var found []string
	d := &Discovery{
		cfg:  Config{OnPeerFound: func(nodeID, address string) { found = append(found, nodeID) }},
		seen: map[string]string{"p1": "10.0.0.1:8765"},
	}

	d.reconcile(map[string]string{"p1": "10.0.0.2:8765"})
	assert.Equal(t, []string{"p1"}, found)
}

func TestItoa(t *testing.T) {
	assert.Equal(t, "0", itoa(0))
	assert.Equal(t, "8765", itoa(8765))
	assert.Equal(t, "-42", itoa(-42))
}
