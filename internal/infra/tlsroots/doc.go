// Package tlsroots builds client TLS configurations from PEM files.
//
// The NATS ledger uses it to trust a private CA and to present a client
// certificate. With no files configured the system roots apply.
package tlsroots
