package httpclient

import (
	"net"
	"net/http"
	"time"
)

// NewDefaultHTTPClient creates a simple HTTP client with a timeout
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// NewASRHTTPClient creates an HTTP client suitable for long-running speech
// recognition calls. Transcribing a multi-hour episode can hold the response
// open for hours, so the client carries no overall timeout; the transport
// bounds the dial and TLS handshake instead, and response header reads get
// a four hour ceiling. Callers bound the body read with their context.
func NewASRHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Minute,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   1 * time.Minute,
		ResponseHeaderTimeout: 4 * time.Hour,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		// No Timeout: the default client's overall deadline would cap the
		// transcription response mid-body.
	}
}

// NewDownloadHTTPClient creates an HTTP client for streaming media downloads.
// The caller enforces the end-to-end deadline via request context, so the
// client itself carries only connection-level timeouts.
func NewDownloadHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   30 * time.Second,
		ResponseHeaderTimeout: 2 * time.Minute,
		IdleConnTimeout:       90 * time.Second,
	}

	return &http.Client{Transport: transport}
}
