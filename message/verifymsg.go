package message

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing/bn256"
	"go.dedis.ch/kyber/v3/sign/bls"
)

func ConvertStructToHashBytes(s interface{}) ([]byte, error) {
	converted, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	convertedHash := sha256.Sum256(converted)
	return convertedHash[:], nil
}

// Signer holds a per-run BLS key pair over the bn256 suite.
type Signer struct {
	suite  *bn256.Suite
	priKey kyber.Scalar
	pubKey kyber.Point
}

func MakeSigner() *Signer {
	suite := bn256.NewSuite()
	priKey, pubKey := bls.NewKeyPair(suite, suite.RandomStream())
	return &Signer{suite: suite, priKey: priKey, pubKey: pubKey}
}

func (s *Signer) Sign(data []byte) ([]byte, error) {
	return bls.Sign(s.suite, s.priKey, data)
}

// PublicKey returns the binary encoding of the verification key.
func (s *Signer) PublicKey() ([]byte, error) {
	return s.pubKey.MarshalBinary()
}

// SignatureVerify checks sig over data against a marshalled public key.
func SignatureVerify(data, sig, pubKey []byte) error {
	suite := bn256.NewSuite()
	pub := suite.G2().Point()
	if err := pub.UnmarshalBinary(pubKey); err != nil {
		return fmt.Errorf("decode public key: %w", err)
	}
	return bls.Verify(suite, pub, data, sig)
}
