package attest

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/binary"
	"errors"
	"fmt"
	"io/ioutil"
	"sort"
)

// Factory data tags of the device attestation credentials.
const (
	TagCertificationDeclaration uint32 = 1
	TagFirmwareInformation      uint32 = 2
	TagDeviceAttestationCert    uint32 = 3
	TagPAICert                  uint32 = 4
	TagDeviceAttestationPrivKey uint32 = 5
	TagDeviceAttestationPubKey  uint32 = 6
)

const (
	factoryRecordHeader = 8
	// erased flash after the last record
	factoryTagErased uint32 = 0xffffffff
)

var (
	// ErrBadFactoryData indicates a truncated or malformed record.
	ErrBadFactoryData = errors.New("bad factory data")
	// ErrKeyMismatch indicates the stored public key doesn't belong to
	// the stored private key.
	ErrKeyMismatch = errors.New("public key mismatch")
)

// FactoryData holds the records of a factory data blob by tag.
// Each record is <u32 tag><u32 length><value>, little-endian.
type FactoryData map[uint32][]byte

// ParseFactoryData decodes a factory data blob. Parsing stops at the end
// of data or at erased flash (tag 0 or 0xffffffff).
func ParseFactoryData(data []byte) (FactoryData, error) {
	d := make(FactoryData)
	for len(data) > 0 {
		if len(data) < factoryRecordHeader {
			if isErased(data) {
				break
			}
			return nil, ErrBadFactoryData
		}
		tag := binary.LittleEndian.Uint32(data)
		if tag == 0 || tag == factoryTagErased {
			break
		}
		length := binary.LittleEndian.Uint32(data[4:])
		data = data[factoryRecordHeader:]
		if uint64(length) > uint64(len(data)) {
			return nil, fmt.Errorf("%w: tag %d length %d exceeds %d bytes", ErrBadFactoryData, tag, length, len(data))
		}
		d[tag] = append([]byte(nil), data[:length]...)
		data = data[length:]
	}
	return d, nil
}

func isErased(data []byte) bool {
	for _, b := range data {
		if b != data[0] {
			return false
		}
	}
	return data[0] == 0 || data[0] == 0xff
}

// LoadFactoryData reads and parses a factory data file.
func LoadFactoryData(fn string) (FactoryData, error) {
	data, err := ioutil.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	return ParseFactoryData(data)
}

// Encode encodes the records sorted by tag.
func (d FactoryData) Encode() []byte {
	tags := make([]int, 0, len(d))
	for tag := range d {
		tags = append(tags, int(tag))
	}
	sort.Ints(tags)
	var buf bytes.Buffer
	var hdr [factoryRecordHeader]byte
	for _, tag := range tags {
		val := d[uint32(tag)]
		binary.LittleEndian.PutUint32(hdr[:], uint32(tag))
		binary.LittleEndian.PutUint32(hdr[4:], uint32(len(val)))
		buf.Write(hdr[:])
		buf.Write(val)
	}
	return buf.Bytes()
}

// DeviceAttestationKey returns the DAC private key as a raw P-256 scalar.
// The stored key is either raw, PKCS#8 or SEC 1 DER. If the public key
// is also stored, it must match.
func (d FactoryData) DeviceAttestationKey() ([]byte, error) {
	stored, ok := d[TagDeviceAttestationPrivKey]
	if !ok {
		return nil, fmt.Errorf("%w: no private key", ErrBadFactoryData)
	}
	priv, err := rawPrivateKey(stored)
	if err != nil {
		return nil, err
	}
	pub, err := PublicKeyFromPrivate(priv)
	if err != nil {
		return nil, err
	}
	if storedPub, ok := d[TagDeviceAttestationPubKey]; ok {
		expected, err := rawPublicKey(storedPub)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(expected, pub) {
			return nil, ErrKeyMismatch
		}
	}
	return priv, nil
}

func rawPrivateKey(b []byte) ([]byte, error) {
	if len(b) == PrivateKeyLength {
		return b, nil
	}
	var key *ecdsa.PrivateKey
	if parsed, err := x509.ParsePKCS8PrivateKey(b); err == nil {
		key, _ = parsed.(*ecdsa.PrivateKey)
	} else if key, err = x509.ParseECPrivateKey(b); err != nil {
		return nil, ErrInvalidPrivateKey
	}
	if key == nil || key.Curve != elliptic.P256() {
		return nil, ErrInvalidPrivateKey
	}
	raw := make([]byte, PrivateKeyLength)
	putScalar(raw, key.D)
	return raw, nil
}

// rawPublicKey returns the uncompressed point of a raw or PKIX DER key.
func rawPublicKey(b []byte) ([]byte, error) {
	if _, _, err := parsePublicKey(b); err == nil {
		if len(b) == RawPublicKeyLength {
			return append([]byte{4}, b...), nil
		}
		return b, nil
	}
	parsed, err := x509.ParsePKIXPublicKey(b)
	if err != nil {
		return nil, ErrInvalidPublicKey
	}
	key, ok := parsed.(*ecdsa.PublicKey)
	if !ok || key.Curve != elliptic.P256() {
		return nil, ErrInvalidPublicKey
	}
	return elliptic.Marshal(key.Curve, key.X, key.Y), nil
}
