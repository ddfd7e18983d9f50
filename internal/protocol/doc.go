// Package protocol implements the intercom packet format.
// Every datagram starts with an 8-byte header. A session opens with an
// announce packet describing the chunk layout; audio then travels as one
// packet per bitplane per channel, so a receiver can rebuild a chunk from any
// prefix of the planes it was sent.
package protocol
