package uacp

import (
	"net/url"

	"github.com/open62541/open62541-sub001/errors"
)

// hostPort extracts the dial address from an opc.tcp:// or opc.wss://
// endpoint URL. OPC UA endpoint URLs carry a path (the server's chosen
// application identity segment) that net.Dial has no use for.
func hostPort(endpointURL string) (string, error) {
	u, err := url.Parse(endpointURL)
	if err != nil {
		return "", errors.Wrap(err, "uacp: parse endpoint url")
	}
	switch u.Scheme {
	case "opc.tcp", "opc.wss", "opc.ws":
	default:
		return "", errors.Errorf("uacp: unsupported endpoint scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.Errorf("uacp: endpoint url %q has no host", endpointURL)
	}
	host := u.Host
	if u.Port() == "" {
		switch u.Scheme {
		case "opc.tcp":
			host += ":4840"
		case "opc.wss":
			host += ":443"
		case "opc.ws":
			host += ":80"
		}
	}
	return host, nil
}

// IsWebSocket reports whether endpointURL names a WebSocket binding,
// which Dial uses to route to DialWebSocket instead of the raw TCP path.
func IsWebSocket(endpointURL string) bool {
	u, err := url.Parse(endpointURL)
	if err != nil {
		return false
	}
	return u.Scheme == "opc.wss" || u.Scheme == "opc.ws"
}
