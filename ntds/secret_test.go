package ntds

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func buildRC4Secret(algo uint16, pekID uint32, salt, pek, plain []byte) []byte {
	tmpKey := hashMD5(pek, salt)
	cipher, err := rc4Crypt(tmpKey, plain)
	if err != nil {
		panic(err)
	}

	buf := make([]byte, 8)
	binary.LittleEndian.PutUint16(buf[0:2], algo)
	binary.LittleEndian.PutUint32(buf[4:8], pekID)
	buf = append(buf, salt...)
	buf = append(buf, cipher...)
	return buf
}

func buildAESSecret(pekID uint32, salt, pek, plain []byte) []byte {
	cipher, err := encryptAES(pek, plain, salt)
	if err != nil {
		panic(err)
	}

	buf := make([]byte, 8)
	binary.LittleEndian.PutUint16(buf[0:2], AlgoDBAES)
	binary.LittleEndian.PutUint32(buf[4:8], pekID)
	buf = append(buf, salt...)

	plainLen := make([]byte, 4)
	binary.LittleEndian.PutUint32(plainLen, uint32(len(plain)))
	buf = append(buf, plainLen...)
	buf = append(buf, cipher...)
	return buf
}

func TestDecryptSecretRC4MissingRID(t *testing.T) {
	r := require.New(t)

	pek := bytes.Repeat([]byte{0x01}, 16)
	salt := bytes.Repeat([]byte{0xAA}, 16)
	plain := []byte("some plaintext!!")

	raw := buildRC4Secret(AlgoDBRC4Salt, 0, salt, pek, plain)

	pl := &PekList{keys: [][]byte{pek}, logger: zerolog.Nop()}
	result := pl.DecryptSecret(raw, nil, false, false, false)

	r.Equal(missingRIDPrefix+hexEncode(plain), result.String())
}

func TestDecryptSecretAESWithDESUnwrap(t *testing.T) {
	r := require.New(t)

	pek := bytes.Repeat([]byte{0x02}, 16)
	salt := bytes.Repeat([]byte{0xBB}, 16)
	rid := uint32(1105)

	ntHash := bytes.Repeat([]byte{0xCC}, 16)
	k1, k2 := deriveDESKeys(rid)
	c1, err := desECBEncryptBlock(k1, ntHash[:8])
	r.NoError(err)
	c2, err := desECBEncryptBlock(k2, ntHash[8:])
	r.NoError(err)
	wrapped := append(c1, c2...)

	raw := buildAESSecret(0, salt, pek, wrapped)

	pl := &PekList{keys: [][]byte{pek}, logger: zerolog.Nop()}
	result := pl.DecryptSecret(raw, &rid, false, true, false)

	r.False(result.IsList())
	r.Equal(hexEncode(ntHash), result.String())
}

func TestDecryptSecretHistoryRC4ADAM(t *testing.T) {
	r := require.New(t)

	pek := bytes.Repeat([]byte{0x03}, 16)
	salt := bytes.Repeat([]byte{0xDD}, 16)
	rid := uint32(500)

	b0 := bytes.Repeat([]byte{0xB0}, 16)
	b1 := bytes.Repeat([]byte{0xB1}, 16)
	b2 := bytes.Repeat([]byte{0xB2}, 16)

	var plain []byte
	count := make([]byte, 4)
	binary.LittleEndian.PutUint32(count, 3)
	plain = append(plain, count...)
	for i, block := range [][]byte{b0, b1, b2} {
		pad := make([]byte, 4)
		binary.LittleEndian.PutUint32(pad, uint32(i))
		plain = append(plain, pad...)
		plain = append(plain, block...)
	}

	raw := buildRC4Secret(AlgoDBRC4, 0, salt, pek, plain)

	pl := &PekList{keys: [][]byte{pek}, logger: zerolog.Nop()}
	result := pl.DecryptSecret(raw, &rid, true, false, true)

	r.True(result.IsList())
	r.Equal([]string{hexEncode(b0), hexEncode(b1), hexEncode(b2)}, result.List())
}

func TestDecryptSecretUnknownAlgoReturnsDecErrorInit(t *testing.T) {
	r := require.New(t)

	pl := &PekList{keys: [][]byte{bytes.Repeat([]byte{0x00}, 16)}, logger: zerolog.Nop()}
	raw := []byte{0xFF, 0xFF, 0, 0, 0, 0, 0, 0}

	result := pl.DecryptSecret(raw, nil, false, false, false)
	r.Equal(DecErrorInit, result.String())
}

func TestDecryptSecretNoDESNoAdamReturnsRawBytes(t *testing.T) {
	r := require.New(t)

	pek := bytes.Repeat([]byte{0x09}, 16)
	salt := bytes.Repeat([]byte{0xEE}, 16)
	plain := []byte("trust secret material!!")

	raw := buildRC4Secret(AlgoDBRC4, 0, salt, pek, plain)

	rid := uint32(1000)
	pl := &PekList{keys: [][]byte{pek}, logger: zerolog.Nop()}
	result := pl.DecryptSecret(raw, &rid, false, false, false)

	r.True(result.IsRaw())
	r.Equal(plain, result.Raw())
}
