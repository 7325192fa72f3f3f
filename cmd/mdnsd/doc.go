// Command mdnsd broadcasts a host name over multicast DNS.
//
// Usage:
//
//	mdnsd --name myhost --interface eth0 --interface eth1
//	mdnsd myhost
//
// The name resolves as <name>.local to the machine's current
// non-loopback addresses. Without --interface (or with a literal "*")
// every interface contributes; otherwise only the named ones do.
//
// Behavior:
//
// The daemon re-reads the interface list every few seconds and
// restarts the responder whenever the visible address set changes, so
// the advertisement tracks DHCP renewals and links going up or down.
// It runs until SIGINT or SIGTERM, withdrawing its records on the way
// out, and exits non-zero on any fatal error (missing name, responder
// bind failure, interface enumeration failure).
package main
