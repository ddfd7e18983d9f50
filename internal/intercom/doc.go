// Package intercom runs the per-period loop of a session: capture, encode,
// send, then reconstruct and play the chunk the peer sent earlier.
package intercom
