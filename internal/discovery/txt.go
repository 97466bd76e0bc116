package discovery

import (
	"fmt"
	"strconv"
	"strings"
)

// TXT record keys, per spec §6.
const (
	txtKeyID      = "id"
	txtKeyPort    = "port"
	txtKeyVersion = "version"
)

// ServiceTXT is the advertised metadata for the TAD mDNS service.
type ServiceTXT struct {
	NodeID  string
	Port    int
	Version string
}

// Encode renders the TXT record as the flat key=value slice zeroconf.Register expects.
func (t ServiceTXT) Encode() []string {
	return []string{
		fmt.Sprintf("%s=%s", txtKeyID, t.NodeID),
		fmt.Sprintf("%s=%d", txtKeyPort, t.Port),
		fmt.Sprintf("%s=%s", txtKeyVersion, t.Version),
	}
}

// ParseTXT decodes a flat key=value TXT record slice into a ServiceTXT.
func ParseTXT(fields []string) (ServiceTXT, error) {
	var t ServiceTXT
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			continue
		}
		switch k {
		case txtKeyID:
			t.NodeID = v
		case txtKeyPort:
			port, err := strconv.Atoi(v)
			if err != nil {
				return ServiceTXT{}, ErrInvalidTXT
			}
			t.Port = port
		case txtKeyVersion:
			t.Version = v
		}
	}
	if t.NodeID == "" || t.Port == 0 {
		return ServiceTXT{}, ErrInvalidTXT
	}
	return t, nil
}
