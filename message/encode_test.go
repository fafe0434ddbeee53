package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageEncodeSentinels(t *testing.T) {
	// Sentinels are negative and must survive the gob round trip.
	for _, v := range []int{-3, -2, -1, 0, 1, 255} {
		req, err := MessageEncode(4, TagValue, v)
		require.NoError(t, err)
		assert.Equal(t, 4, req.Sender)
		assert.Equal(t, TagValue, req.Tag)

		got, err := MessageDecode(req)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestMessageDecodeGarbage(t *testing.T) {
	_, err := MessageDecode(ReqMsg{Sender: 2, Args: []byte{0xff, 0x00}})
	assert.Error(t, err)
}

func TestSignatureVerify(t *testing.T) {
	data, err := ConvertStructToHashBytes([]string{"3:0", "4:1"})
	require.NoError(t, err)

	s := MakeSigner()
	sig, err := s.Sign(data)
	require.NoError(t, err)
	pub, err := s.PublicKey()
	require.NoError(t, err)

	assert.NoError(t, SignatureVerify(data, sig, pub))

	tampered := append([]byte{}, data...)
	tampered[0] ^= 1
	assert.Error(t, SignatureVerify(tampered, sig, pub))

	other, err := MakeSigner().PublicKey()
	require.NoError(t, err)
	assert.Error(t, SignatureVerify(data, sig, other))
}
