// Package audio holds the stereo chunk model and everything that moves chunks
// in and out of the transform pipeline: the jitter buffer of chunk slots,
// capture sources, playback sinks and WAV encoding.
package audio
