package client

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TLS settings travel either through the Options struct or as query
// parameters on the address string:
//
//	orientdb://host:2424?tls=true&tlsCAFile=/etc/ssl/orient-ca.pem
//
// Recognized parameters: tls, tlsInsecureSkipVerify, tlsCertFile,
// tlsKeyFile, tlsCAFile. A parameter that is present always applies,
// so one connection string fully describes an endpoint.

// splitAddressParams separates the query-parameter suffix from the
// dialable part of an address string.
func splitAddressParams(addr string) (string, map[string]string, error) {
	idx := strings.Index(addr, "?")
	if idx < 0 {
		return addr, nil, nil
	}

	base := addr[:idx]
	query := addr[idx+1:]
	params := make(map[string]string)

	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return "", nil, &ConnectionError{
				Code:    "INVALID_ADDRESS",
				Type:    "CONNECTION_ERROR",
				Message: fmt.Sprintf("malformed address parameter: %q", pair),
				Details: map[string]interface{}{
					"address": addr,
				},
				Timestamp: time.Now(),
			}
		}
		params[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}

	return base, params, nil
}

// applyTLSParams folds address query parameters into the options.
func applyTLSParams(opts *Options, params map[string]string) error {
	for key, value := range params {
		switch key {
		case "tls":
			enabled, err := strconv.ParseBool(value)
			if err != nil {
				return invalidAddressParam(key, value, err)
			}
			opts.TLSEnabled = enabled
		case "tlsInsecureSkipVerify":
			skip, err := strconv.ParseBool(value)
			if err != nil {
				return invalidAddressParam(key, value, err)
			}
			opts.TLSInsecureSkipVerify = skip
		case "tlsCertFile":
			opts.TLSCertFile = value
		case "tlsKeyFile":
			opts.TLSKeyFile = value
		case "tlsCAFile":
			opts.TLSCAFile = value
		default:
			return &ConnectionError{
				Code:    "INVALID_ADDRESS",
				Type:    "CONNECTION_ERROR",
				Message: fmt.Sprintf("unknown address parameter: %q", key),
				Details: map[string]interface{}{
					"parameter": key,
				},
				Timestamp: time.Now(),
			}
		}
	}

	// A cert without its key (or the reverse) cannot complete a client
	// handshake, reject it here instead of at dial time.
	if (opts.TLSCertFile == "") != (opts.TLSKeyFile == "") {
		return &ConnectionError{
			Code:    "TLS_CONFIG_INVALID",
			Type:    "CONNECTION_ERROR",
			Message: "tlsCertFile and tlsKeyFile must be set together",
			Details: map[string]interface{}{
				"certFile": opts.TLSCertFile,
				"keyFile":  opts.TLSKeyFile,
			},
			Timestamp: time.Now(),
		}
	}

	return nil
}

func invalidAddressParam(key, value string, cause error) error {
	return &ConnectionError{
		Code:    "INVALID_ADDRESS",
		Type:    "CONNECTION_ERROR",
		Message: fmt.Sprintf("invalid value for address parameter %q: %q", key, value),
		Details: map[string]interface{}{
			"parameter": key,
			"value":     value,
		},
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// classifyTLSError maps TLS handshake failures onto specific error
// codes so callers can tell an expired server certificate from a
// hostname mismatch without string matching. Non-TLS errors pass
// through unchanged.
func classifyTLSError(address string, err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	var code, friendly string

	switch {
	case strings.Contains(msg, "certificate has expired"):
		code = "TLS_CERT_EXPIRED"
		friendly = "server certificate has expired"
	case strings.Contains(msg, "certificate is not trusted"):
		code = "TLS_CERT_UNTRUSTED"
		friendly = "server certificate is not trusted (try setting tlsCAFile or tlsInsecureSkipVerify for testing)"
	case strings.Contains(msg, "doesn't match"), strings.Contains(msg, "not valid for"):
		code = "TLS_HOSTNAME_MISMATCH"
		friendly = "server certificate hostname doesn't match connection address"
	case strings.Contains(msg, "unknown authority"):
		code = "TLS_UNKNOWN_CA"
		friendly = "server certificate signed by unknown authority (try setting tlsCAFile)"
	case strings.Contains(msg, "TLS handshake"):
		code = "TLS_HANDSHAKE_FAILED"
		friendly = "TLS handshake failed"
	default:
		return err
	}

	return &ConnectionError{
		Code:    code,
		Type:    "CONNECTION_ERROR",
		Message: fmt.Sprintf("%s: %s", friendly, address),
		Details: map[string]interface{}{
			"address": address,
		},
		Cause:      err,
		StackTrace: captureStackTrace(),
		Timestamp:  time.Now(),
	}
}
