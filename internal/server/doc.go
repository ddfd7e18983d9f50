// Package server implements the UDP peer that exchanges bitplane packets with
// the remote intercom, and the HTTP endpoints used to monitor a session.
package server
