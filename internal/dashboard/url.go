package dashboard

import (
	"net"
	"strconv"
)

// BaseURL is the dashboard address for a gateway on host:port. It is
// well-formed whether or not the gateway is running.
func BaseURL(host string, port int) string {
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/"
}
