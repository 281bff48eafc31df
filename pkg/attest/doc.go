// Package attest forwards device attestation operations to the peer core.
//
// The application side never touches the device attestation private key:
// it provisions the key once and asks the peer to sign, both through a
// mailbox.Caller. Service is the peer side of the same operations.
package attest
