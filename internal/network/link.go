// Package network provides the host implementations of the device capabilities the
// scheduler consumes: joining a network and keeping wall-clock time.
package network

import (
	"errors"
	"net"
	"sync"

	"go.uber.org/zap"
)

// ErrBadCredentials is returned by Connect when the credentials are unusable.
var ErrBadCredentials = errors.New("bad network credentials")

// Credentials identify the network to join.
type Credentials struct {
	SSID     string
	Password string
}

// Link is the network association capability. Connect starts joining and returns
// immediately; Connected is polled until it reports true.
type Link interface {
	Connect(creds Credentials) error
	Connected() bool
	LocalAddress() string
}

// InterfaceLink treats the host as joined once an up, non-loopback interface has an
// IPv4 address. Association itself is left to the operating system, so the
// credentials are only checked and logged.
type InterfaceLink struct {
	mu     sync.Mutex
	iface  string // restrict to this interface; empty means any
	addr   string
	logger *zap.Logger

	// interfaces is swapped in tests.
	interfaces func() ([]net.Interface, error)
	addrs      func(net.Interface) ([]net.Addr, error)
}

func NewInterfaceLink(iface string, logger *zap.Logger) *InterfaceLink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InterfaceLink{
		iface:      iface,
		logger:     logger,
		interfaces: net.Interfaces,
		addrs:      func(i net.Interface) ([]net.Addr, error) { return i.Addrs() },
	}
}

func (l *InterfaceLink) Connect(creds Credentials) error {
	if creds.SSID == "" {
		return ErrBadCredentials
	}
	l.logger.Info("joining network", zap.String("ssid", creds.SSID), zap.String("interface", l.iface))
	return nil
}

func (l *InterfaceLink) Connected() bool {
	addr := l.lookup()
	l.mu.Lock()
	l.addr = addr
	l.mu.Unlock()
	return addr != ""
}

func (l *InterfaceLink) LocalAddress() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addr
}

func (l *InterfaceLink) lookup() string {
	ifaces, err := l.interfaces()
	if err != nil {
		l.logger.Debug("list interfaces", zap.Error(err))
		return ""
	}
	for _, ifc := range ifaces {
		if l.iface != "" && ifc.Name != l.iface {
			continue
		}
		if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := l.addrs(ifc)
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipnet.IP.To4(); ip4 != nil && !ip4.IsLoopback() {
				return ip4.String()
			}
		}
	}
	return ""
}
