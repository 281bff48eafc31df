// Package link carries mailbox descriptors between address spaces.
package link

// A link replaces the shared memory of the mailbox when the caller and
// the peer run in different processes or machines. Each request is one
// packet, answered by exactly one reply packet with the same sequence.
// Input buffers travel with the request; output buffers travel back with
// the reply and are copied into the caller's buffers, so the caller sees
// the same in-place semantics as with a local Mailbox.
//
// Producer: Server (peer side)
// Consumer: Client (caller side)
