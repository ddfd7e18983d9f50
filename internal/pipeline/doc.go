// Package pipeline sequences the chunk transforms of one intercom session.
//
// The send path decorrelates a captured chunk, decomposes the reference
// channel into subbands and packs every value into sign-magnitude words ready
// to be sliced into bitplanes. The play path runs the same stages in reverse
// on a jitter buffer slot that may be missing its least significant planes.
package pipeline
