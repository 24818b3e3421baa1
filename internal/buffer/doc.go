// Package buffer provides RingBuffer, a thread-safe fixed-size buffer that
// overwrites its oldest element when full instead of blocking the writer.
//
// This is the drop-oldest queue shape the ingress frame pipeline needs: the
// per-connection STT and analysis queues must never make an audio socket's
// read loop wait on a slow consumer, so overflow silently evicts the oldest
// frame and the eviction is counted by the caller.
package buffer
