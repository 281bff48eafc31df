// Package mailbox provides a single-slot command/response mailbox between
// a caller context and a peer context.
package mailbox

// The mailbox models the command transport between an application core
// and a radio core sharing memory. Exactly one command descriptor is in
// flight at a time: the caller acquires the request slot, writes a
// descriptor, transfers it and blocks until the peer has written the
// response slot and signaled back.
//
// Ownership of the slots alternates between the two contexts and moves
// with the signals. Callers wanting concurrent access must serialize
// outside the mailbox (see Serial); an unserialized second caller is
// rejected with ErrBusy.
//
// Producer: peer (radio core)
// Consumer: caller (application core)
