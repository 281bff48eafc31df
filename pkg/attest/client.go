package attest

import (
	"context"

	"github.com/robotalks/mbox.go/pkg/mailbox"
)

// Client is the application side facade of attestation operations.
// It forwards requests verbatim and returns the peer status unchanged.
type Client struct {
	Caller mailbox.Caller
}

// NewClient creates a Client.
func NewClient(caller mailbox.Caller) *Client {
	return &Client{Caller: caller}
}

// InitializeDeviceKey provisions the private key in the peer.
func (c *Client) InitializeDeviceKey(ctx context.Context, privateKey []byte) (mailbox.Status, error) {
	return c.Do(ctx, &PrivateKeySet{PrivateKey: privateKey})
}

// Sign asks the peer to sign message. The signature is written into
// signature, which should hold at least SignatureLength bytes.
func (c *Client) Sign(ctx context.Context, message, publicKey, signature []byte) (mailbox.Status, error) {
	return c.Do(ctx, &Signature{Message: message, PublicKey: publicKey, Signature: signature})
}

// Do sends a typed request and returns the peer status.
// The error is only set on transport failures, with the status mapped
// from it.
func (c *Client) Do(ctx context.Context, req mailbox.Request) (mailbox.Status, error) {
	var cmd mailbox.Command
	if err := mailbox.EncodeRequest(req, &cmd); err != nil {
		return mailbox.StatusInvalidArgument, err
	}
	rsp, err := c.Caller.Call(ctx, &cmd)
	if err != nil {
		return mailbox.StatusFromError(err), err
	}
	return rsp.Status(), nil
}
