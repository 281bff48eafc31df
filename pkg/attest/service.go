package attest

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"
	"math/big"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/mbox.go/pkg/mailbox"
)

var (
	// ErrInvalidPrivateKey indicates the private key is not a valid P-256 scalar.
	ErrInvalidPrivateKey = errors.New("invalid private key")
	// ErrInvalidPublicKey indicates the public key can't be parsed.
	ErrInvalidPublicKey = errors.New("invalid public key")
)

// Service holds the attestation key on the peer side and serves
// OpPrivateKeySet and OpSignature.
type Service struct {
	Rand io.Reader

	key  *ecdsa.PrivateKey
	lock sync.Mutex
}

// NewService creates a Service without a provisioned key.
func NewService() *Service {
	return &Service{Rand: rand.Reader}
}

// Register installs handlers into mux.
func (s *Service) Register(mux *mailbox.Mux) *mailbox.Mux {
	return mux.
		HandleFunc(OpPrivateKeySet, s.handlePrivateKeySet).
		HandleFunc(OpSignature, s.handleSignature)
}

// Handler creates a Mux serving only this service.
func (s *Service) Handler() mailbox.Handler {
	return s.Register(mailbox.NewMux())
}

// PublicKey returns the uncompressed public key, nil if not provisioned.
func (s *Service) PublicKey() []byte {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.key == nil {
		return nil
	}
	return elliptic.Marshal(s.key.Curve, s.key.X, s.key.Y)
}

func (s *Service) handlePrivateKeySet(ctx context.Context, cmd *mailbox.Command) mailbox.Response {
	var req PrivateKeySet
	if err := req.DecodeCommand(cmd); err != nil {
		return mailbox.NewResponse(cmd.Opcode, mailbox.StatusInvalidArgument)
	}
	if err := s.SetPrivateKey(req.PrivateKey); err != nil {
		glog.Warningf("attest: reject private key: %v", err)
		return mailbox.NewResponse(cmd.Opcode, mailbox.StatusInvalidArgument)
	}
	return mailbox.NewResponse(cmd.Opcode, mailbox.StatusSuccess)
}

// SetPrivateKey provisions the key directly, replacing the current one.
func (s *Service) SetPrivateKey(privateKey []byte) error {
	key, err := privateKeyFrom(privateKey)
	if err != nil {
		return err
	}
	s.lock.Lock()
	s.key = key
	s.lock.Unlock()
	glog.Info("attest: private key provisioned")
	return nil
}

func (s *Service) handleSignature(ctx context.Context, cmd *mailbox.Command) mailbox.Response {
	var req Signature
	if err := req.DecodeCommand(cmd); err != nil {
		return mailbox.NewResponse(cmd.Opcode, mailbox.StatusInvalidArgument)
	}
	if len(req.Signature) < SignatureLength {
		return mailbox.NewResponse(cmd.Opcode, mailbox.StatusInvalidArgument)
	}
	x, y, err := parsePublicKey(req.PublicKey)
	if err != nil {
		return mailbox.NewResponse(cmd.Opcode, mailbox.StatusInvalidArgument)
	}

	s.lock.Lock()
	key := s.key
	s.lock.Unlock()
	if key == nil {
		return mailbox.NewResponse(cmd.Opcode, mailbox.StatusInvalidState)
	}
	if key.X.Cmp(x) != 0 || key.Y.Cmp(y) != 0 {
		return mailbox.NewResponse(cmd.Opcode, mailbox.StatusSecurity)
	}

	digest := sha256.Sum256(req.Message)
	r, sig, err := ecdsa.Sign(s.Rand, key, digest[:])
	if err != nil {
		glog.Errorf("attest: sign error: %v", err)
		return mailbox.NewResponse(cmd.Opcode, mailbox.StatusFailed)
	}
	putScalar(req.Signature[:32], r)
	putScalar(req.Signature[32:SignatureLength], sig)
	return mailbox.NewResponse(cmd.Opcode, mailbox.StatusSuccess)
}

func privateKeyFrom(b []byte) (*ecdsa.PrivateKey, error) {
	if len(b) != PrivateKeyLength {
		return nil, ErrInvalidPrivateKey
	}
	curve := elliptic.P256()
	d := new(big.Int).SetBytes(b)
	if d.Sign() == 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, ErrInvalidPrivateKey
	}
	key := &ecdsa.PrivateKey{D: d}
	key.Curve = curve
	key.X, key.Y = curve.ScalarBaseMult(b)
	return key, nil
}

// PublicKeyFromPrivate derives the uncompressed public key.
func PublicKeyFromPrivate(privateKey []byte) ([]byte, error) {
	key, err := privateKeyFrom(privateKey)
	if err != nil {
		return nil, err
	}
	return elliptic.Marshal(key.Curve, key.X, key.Y), nil
}

// GeneratePrivateKey creates a random P-256 private key.
func GeneratePrivateKey(rnd io.Reader) ([]byte, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rnd)
	if err != nil {
		return nil, err
	}
	b := make([]byte, PrivateKeyLength)
	putScalar(b, key.D)
	return b, nil
}

// Verify checks a raw r||s signature of message.
func Verify(publicKey, message, signature []byte) bool {
	x, y, err := parsePublicKey(publicKey)
	if err != nil || len(signature) < SignatureLength {
		return false
	}
	digest := sha256.Sum256(message)
	pub := &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:SignatureLength])
	return ecdsa.Verify(pub, digest[:], r, s)
}

// parsePublicKey accepts X||Y or the uncompressed 0x04||X||Y form.
func parsePublicKey(b []byte) (x, y *big.Int, err error) {
	switch len(b) {
	case RawPublicKeyLength:
		b = append([]byte{4}, b...)
	case PublicKeyLength:
	default:
		return nil, nil, ErrInvalidPublicKey
	}
	if x, y = elliptic.Unmarshal(elliptic.P256(), b); x == nil {
		return nil, nil, ErrInvalidPublicKey
	}
	return x, y, nil
}

func putScalar(dst []byte, v *big.Int) {
	b := v.Bytes()
	for n := range dst {
		dst[n] = 0
	}
	copy(dst[len(dst)-len(b):], b)
}

// RawPublicKey strips the uncompressed point prefix.
func RawPublicKey(pub []byte) []byte {
	if len(pub) == PublicKeyLength && pub[0] == 4 {
		return pub[1:]
	}
	return pub
}
