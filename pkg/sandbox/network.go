package sandbox

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	networkConnectTimeout = 10 * time.Second
	networkReadTimeout    = 10 * time.Second
)

// Network is the network capability: a set of allowed host names matched by
// exact equality.
type Network struct {
	revocable

	allowed map[string]bool
	client  *http.Client
}

func newNetwork(hosts []string) *Network {
	allowed := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		allowed[h] = true
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: networkConnectTimeout}).DialContext,
	}

	return &Network{
		allowed: allowed,
		client:  &http.Client{Transport: transport, Timeout: networkConnectTimeout + networkReadTimeout},
	}
}

func (n *Network) checkHost(rawURL string) (string, error) {
	if err := n.checkLive(); err != nil {
		return "", err
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", &RuntimeError{Reason: "invalid URL", Err: err}
	}

	host := parsed.Hostname()
	if !n.allowed[host] {
		return "", &SecurityError{Reason: fmt.Sprintf("host %q is not in the network allowlist", host)}
	}
	return host, nil
}

// HTTPGet performs a synchronous GET against url, rejecting hosts outside
// the capability's allowlist before any connection is opened.
func (n *Network) HTTPGet(targetURL string) (string, error) {
	if _, err := n.checkHost(targetURL); err != nil {
		return "", err
	}

	resp, err := n.client.Get(targetURL)
	if err != nil {
		return "", &RuntimeError{Reason: "GET failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &RuntimeError{Reason: "failed to read response body", Err: err}
	}
	return string(body), nil
}

// HTTPPost performs a synchronous POST against url with the given body and
// content type, rejecting hosts outside the capability's allowlist before
// any connection is opened.
func (n *Network) HTTPPost(targetURL string, body string, contentType string) (string, error) {
	if _, err := n.checkHost(targetURL); err != nil {
		return "", err
	}

	resp, err := n.client.Post(targetURL, contentType, strings.NewReader(body))
	if err != nil {
		return "", &RuntimeError{Reason: "POST failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &RuntimeError{Reason: "failed to read response body", Err: err}
	}
	return string(respBody), nil
}
