package transfer

import (
	"context"
	"fmt"
	"net"
)

// LocalAddrFor returns the local IPv4 address the target should connect
// back to: one whose network contains the target, else one sharing the
// target's /24 prefix. A loopback target gets 127.0.0.1.
func LocalAddrFor(ctx context.Context, target string) (string, error) {
	ip, err := resolveIPv4(ctx, target)
	if err != nil {
		return "", err
	}
	if ip.IsLoopback() {
		return "127.0.0.1", nil
	}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", fmt.Errorf("listing interface addresses: %w", err)
	}
	return pickLocal(addrs, ip)
}

func pickLocal(addrs []net.Addr, target net.IP) (string, error) {
	var prefixMatch string
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		local := ipn.IP.To4()
		if local == nil || local.IsLoopback() {
			continue
		}
		if ipn.Contains(target) {
			return local.String(), nil
		}
		if prefixMatch == "" && local[0] == target[0] && local[1] == target[1] && local[2] == target[2] {
			prefixMatch = local.String()
		}
	}
	if prefixMatch != "" {
		return prefixMatch, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoLocalAddress, target)
}

func resolveIPv4(ctx context.Context, target string) (net.IP, error) {
	if ip := net.ParseIP(target); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
		return nil, fmt.Errorf("%w: %s is not IPv4", ErrNoLocalAddress, target)
	}
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", target)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", target, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("%w: %s has no IPv4 address", ErrNoLocalAddress, target)
	}
	return ips[0].To4(), nil
}
