package webterm

import (
	"fmt"
	"net"
)

// BindingClass classifies a network address for the purpose of
// warning the user before exposing the web terminal on it.
type BindingClass string

const (
	ClassLoopback BindingClass = "loopback"
	ClassPrivate  BindingClass = "private"
	ClassPublic   BindingClass = "public"
)

// Binding is one IPv4 address the server can listen on.
type Binding struct {
	Address   string
	Interface string
	Class     BindingClass
}

var privateRanges = []string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
	"100.64.0.0/10",
}

// EnumerateBindings lists every IPv4 address of every network
// interface on the host, classifying each as loopback, private or
// public.
func EnumerateBindings() ([]Binding, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("webterm: list interfaces: %w", err)
	}

	var bindings []Binding
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ip := addrFromNetAddr(addr)
			if ip == nil || ip.To4() == nil {
				continue
			}
			bindings = append(bindings, Binding{
				Address:   ip.String(),
				Interface: iface.Name,
				Class:     classifyIP(ip),
			})
		}
	}
	return bindings, nil
}

func addrFromNetAddr(addr net.Addr) net.IP {
	switch v := addr.(type) {
	case *net.IPNet:
		return v.IP
	case *net.IPAddr:
		return v.IP
	default:
		return nil
	}
}

func classifyIP(ip net.IP) BindingClass {
	if ip.IsLoopback() {
		return ClassLoopback
	}
	for _, cidr := range privateRanges {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if network.Contains(ip) {
			return ClassPrivate
		}
	}
	return ClassPublic
}

// BindingStatus reports the live state of one configured binding.
type BindingStatus struct {
	Binding
	Unavailable bool
}

// ResolveBindingStatuses matches saved binding addresses against the
// host's currently live interfaces, reporting any saved binding whose
// interface is no longer present as unavailable without dropping it
// from the returned list.
func ResolveBindingStatuses(saved []string) ([]BindingStatus, error) {
	live, err := EnumerateBindings()
	if err != nil {
		return nil, err
	}

	byAddress := make(map[string]Binding, len(live))
	for _, b := range live {
		byAddress[b.Address] = b
	}

	statuses := make([]BindingStatus, 0, len(saved))
	for _, addr := range saved {
		if b, ok := byAddress[addr]; ok {
			statuses = append(statuses, BindingStatus{Binding: b})
			continue
		}
		statuses = append(statuses, BindingStatus{
			Binding:     Binding{Address: addr},
			Unavailable: true,
		})
	}
	return statuses, nil
}
