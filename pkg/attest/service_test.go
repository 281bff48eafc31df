package attest

import (
	"bytes"
	"context"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/mbox.go/pkg/mailbox"
)

func TestServiceSign(t *testing.T) {
	svc := NewService()
	env := newAttestTestEnv(t, svc.Handler())
	defer env.stop()
	ctx := context.TODO()

	priv, err := GeneratePrivateKey(rand.Reader)
	require.NoError(t, err)
	pub, err := PublicKeyFromPrivate(priv)
	require.NoError(t, err)
	require.Len(t, pub, PublicKeyLength)

	sig := make([]byte, SignatureLength)
	status, err := env.client.Sign(ctx, []byte("abc"), pub, sig)
	require.NoError(t, err)
	require.Equal(t, mailbox.StatusInvalidState, status)

	status, err = env.client.InitializeDeviceKey(ctx, priv)
	require.NoError(t, err)
	require.Equal(t, mailbox.StatusSuccess, status)
	require.Equal(t, pub, svc.PublicKey())

	for _, key := range [][]byte{pub, RawPublicKey(pub)} {
		status, err = env.client.Sign(ctx, []byte("abc"), key, sig)
		require.NoError(t, err)
		require.Equal(t, mailbox.StatusSuccess, status)
		require.True(t, Verify(pub, []byte("abc"), sig))
		require.True(t, Verify(RawPublicKey(pub), []byte("abc"), sig))
		require.False(t, Verify(pub, []byte("abd"), sig))
	}
}

func TestServiceRejects(t *testing.T) {
	svc := NewService()
	env := newAttestTestEnv(t, svc.Handler())
	defer env.stop()
	ctx := context.TODO()

	n := []byte{
		0xff, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xbc, 0xe6, 0xfa, 0xad, 0xa7, 0x17, 0x9e, 0x84, 0xf3, 0xb9, 0xca, 0xc2, 0xfc, 0x63, 0x25, 0x51,
	}
	for _, key := range [][]byte{nil, make([]byte, PrivateKeyLength), n, bytes.Repeat([]byte{1}, 31)} {
		status, err := env.client.InitializeDeviceKey(ctx, key)
		require.NoError(t, err)
		require.Equal(t, mailbox.StatusInvalidArgument, status)
	}
	require.Nil(t, svc.PublicKey())

	priv := bytes.Repeat([]byte{0x17}, PrivateKeyLength)
	status, err := env.client.InitializeDeviceKey(ctx, priv)
	require.NoError(t, err)
	require.Equal(t, mailbox.StatusSuccess, status)
	pub := svc.PublicKey()

	other, err := PublicKeyFromPrivate(bytes.Repeat([]byte{0x18}, PrivateKeyLength))
	require.NoError(t, err)

	testCases := []struct {
		name   string
		pub    []byte
		sig    []byte
		status mailbox.Status
	}{
		{"short signature", pub, make([]byte, SignatureLength-1), mailbox.StatusInvalidArgument},
		{"malformed public key", pub[:10], make([]byte, SignatureLength), mailbox.StatusInvalidArgument},
		{"other public key", other, make([]byte, SignatureLength), mailbox.StatusSecurity},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status, err := env.client.Sign(ctx, []byte("abc"), tc.pub, tc.sig)
			require.NoError(t, err)
			require.Equal(t, tc.status, status)
		})
	}
}
