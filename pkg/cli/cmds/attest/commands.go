package attest

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/mbox.go/pkg/attest"
	"github.com/robotalks/mbox.go/pkg/cli/sh"
)

// the public key of the last provisioned private key.
const pubKeyKey = "$dac.pubkey"

func publicKeyArg(c *ishell.Context, n int) ([]byte, error) {
	if len(c.Args) > n {
		pub, err := hex.DecodeString(c.Args[n])
		if err != nil {
			return nil, fmt.Errorf("invalid PUBKEY: %v", err)
		}
		return pub, nil
	}
	if pub, ok := sh.ShellFrom(c).Shell.Get(pubKeyKey).([]byte); ok {
		return pub, nil
	}
	return nil, fmt.Errorf("PUBKEY required, no key provisioned in this session")
}

var (
	// KeySetCmd provisions the device private key.
	KeySetCmd = ishell.Cmd{
		Name:    "dac.keyset",
		Aliases: []string{"dks"},
		Help:    "[PRIVKEY(hex)]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			var key []byte
			var err error
			if len(c.Args) > 0 {
				key, err = hex.DecodeString(c.Args[0])
			} else {
				key, err = attest.GeneratePrivateKey(rand.Reader)
			}
			if err != nil {
				c.Err(fmt.Errorf("invalid PRIVKEY: %v", err))
				return
			}
			status, err := attest.NewClient(sh.CallerFrom(c)).InitializeDeviceKey(context.TODO(), key)
			if !sh.PrintStatus(c, status, err) {
				return
			}
			if pub, err := attest.PublicKeyFromPrivate(key); err == nil {
				sh.ShellFrom(c).Shell.Set(pubKeyKey, pub)
				if !sh.ShellFrom(c).OutputJSON {
					c.Printf("PUBKEY %s\n", hex.EncodeToString(pub))
				}
			}
		}),
	}

	// SignCmd signs a message with the device key.
	SignCmd = ishell.Cmd{
		Name:    "dac.sign",
		Aliases: []string{"dsig"},
		Help:    "MESSAGE [PUBKEY(hex)]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("MESSAGE required"))
				return
			}
			pub, err := publicKeyArg(c, 1)
			if err != nil {
				c.Err(err)
				return
			}
			sig := make([]byte, attest.SignatureLength)
			status, err := attest.NewClient(sh.CallerFrom(c)).Sign(context.TODO(), []byte(c.Args[0]), pub, sig)
			if sh.PrintStatus(c, status, err) && !sh.ShellFrom(c).OutputJSON {
				c.Printf("SIGNATURE %s\n", hex.EncodeToString(sig))
			}
		}),
	}

	// VerifyCmd verifies a signature locally.
	VerifyCmd = ishell.Cmd{
		Name:    "dac.verify",
		Aliases: []string{"dv"},
		Help:    "MESSAGE SIGNATURE(hex) [PUBKEY(hex)]",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("MESSAGE and SIGNATURE required"))
				return
			}
			sig, err := hex.DecodeString(c.Args[1])
			if err != nil {
				c.Err(fmt.Errorf("invalid SIGNATURE: %v", err))
				return
			}
			pub, err := publicKeyArg(c, 2)
			if err != nil {
				c.Err(err)
				return
			}
			if !attest.Verify(pub, []byte(c.Args[0]), sig) {
				c.Err(fmt.Errorf("signature mismatch"))
				return
			}
			c.Println("OK")
		},
	}

	// PubKeyCmd prints the public key of the provisioned key.
	PubKeyCmd = ishell.Cmd{
		Name:    "dac.pubkey",
		Aliases: []string{"dpk"},
		Help:    "",
		Func: func(c *ishell.Context) {
			pub, err := publicKeyArg(c, 0)
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(hex.EncodeToString(pub))
		},
	}
)

func init() {
	sh.AddCmds(
		&KeySetCmd,
		&SignCmd,
		&VerifyCmd,
		&PubKeyCmd,
	)
}
