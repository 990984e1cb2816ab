// Package transport provides the connectionless UDP datagram endpoint
// nodes use to exchange protocol messages, plus the request/reply
// correlation table that turns a subset of that traffic into synchronous
// calls.
package transport

import (
	"fmt"
	"net"
)

// pickIP selects a suitable IPv4 address from the local interfaces
// according to the given mode ("private" or "public").
func pickIP(mode string) (net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		if (iface.Flags&net.FlagUp) == 0 || (iface.Flags&net.FlagLoopback) != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() {
				continue
			}
			ip = ip.To4()
			if ip == nil {
				continue
			}
			if mode == "private" && isPrivateIP(ip) {
				return ip, nil
			}
			if mode == "public" && !isPrivateIP(ip) {
				return ip, nil
			}
		}
	}
	return nil, fmt.Errorf("transport: no suitable %s interface found", mode)
}

func isPrivateIP(ip net.IP) bool {
	blocks := []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}
	for _, block := range blocks {
		_, cidr, _ := net.ParseCIDR(block)
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// Listen opens the node's UDP endpoint bound to bind:port and returns it
// alongside the advertised "host:port" string peers should use to dial it.
// mode selects which local interface to advertise ("private"|"public")
// when host is left empty.
func Listen(mode, bind, host string, port int) (*net.UDPConn, string, error) {
	if bind == "" {
		bind = "0.0.0.0"
	}
	laddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", bind, port))
	if err != nil {
		return nil, "", err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, "", err
	}

	actualPort := conn.LocalAddr().(*net.UDPAddr).Port

	if host == "" {
		ip, err := pickIP(mode)
		if err != nil {
			conn.Close()
			return nil, "", err
		}
		host = ip.String()
	} else if ip := net.ParseIP(host); ip != nil {
		if mode == "private" && !isPrivateIP(ip) {
			conn.Close()
			return nil, "", fmt.Errorf("transport: host %s is not private but mode=private", host)
		}
		if mode == "public" && isPrivateIP(ip) {
			conn.Close()
			return nil, "", fmt.Errorf("transport: host %s is private but mode=public", host)
		}
	}

	advertised := fmt.Sprintf("%s:%d", host, actualPort)
	return conn, advertised, nil
}
