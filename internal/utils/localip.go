package utils

import (
	"net"
	"strings"
)

// LocalIP returns the machine's LAN IPv4 address so the QR code can point
// phones at the server. WiFi-style 192.168.x.x addresses are preferred,
// then 10.x and 172.x private ranges, with a UDP-dial fallback.
func LocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err == nil {
		var fallback string
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.IsLoopback() {
				continue
			}
			ip := ipNet.IP.To4()
			if ip == nil {
				continue
			}
			s := ip.String()
			if strings.HasPrefix(s, "192.168.") {
				return s
			}
			if fallback == "" && (strings.HasPrefix(s, "10.") || strings.HasPrefix(s, "172.")) {
				fallback = s
			}
		}
		if fallback != "" {
			return fallback
		}
	}

	// Route-based fallback; no packet is sent for UDP dial.
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()

	if udpAddr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return udpAddr.IP.String()
	}
	return "127.0.0.1"
}
