package ntds

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// buildSchemeABlob builds a PEK list blob encrypted per Scheme A for a
// single 16-byte PEK.
func buildSchemeABlob(bootKey, keyMaterial, pek []byte) []byte {
	plain := make([]byte, pekSchemeAHeaderLen+pekSchemeABlockSize)
	// header[32] left zero; the single 20-byte block is {padding[4], key[16]}
	copy(plain[pekSchemeAHeaderLen+4:], pek)

	tmpKey := md5RepeatKey(bootKey, keyMaterial, bootKeyMD5Iterations)
	cipher, err := rc4Crypt(tmpKey, plain)
	if err != nil {
		panic(err)
	}

	blob := make([]byte, 0, 8+16+len(cipher))
	blob = append(blob, pekSchemeAHeader...)
	blob = append(blob, 0, 0, 0, 0) // remaining 4 bytes of the 8-byte header
	blob = append(blob, keyMaterial...)
	blob = append(blob, cipher...)
	return blob
}

func TestLoadPekListSchemeARoundTrip(t *testing.T) {
	r := require.New(t)

	bootKey := bytes.Repeat([]byte{0x00}, 16)
	keyMaterial := bytes.Repeat([]byte{0x11}, 16)
	expectedPek := bytes.Repeat([]byte{0x5A}, 16)

	blob := buildSchemeABlob(bootKey, keyMaterial, expectedPek)

	pl, err := LoadPekList(blob, bootKey, zerolog.Nop())
	r.NoError(err)
	r.Equal(1, pl.Len())

	got, ok := pl.Get(0)
	r.True(ok)
	r.Equal(expectedPek, got)
}

// buildSchemeBBlob builds a PEK list blob encrypted per Scheme B for
// the given PEKs, terminated by the sentinel index.
func buildSchemeBBlob(bootKey, iv []byte, peks [][]byte) []byte {
	var plain []byte
	for i, pek := range peks {
		entry := make([]byte, 4)
		binary.LittleEndian.PutUint32(entry, uint32(i))
		entry = append(entry, pek...)
		plain = append(plain, entry...)
	}
	sentinel := make([]byte, 20)
	binary.LittleEndian.PutUint32(sentinel[:4], pekSchemeBSentinel)
	plain = append(plain, sentinel...)

	cipher, err := encryptAES(bootKey, plain, iv)
	if err != nil {
		panic(err)
	}

	blob := make([]byte, 0, 8+16+len(cipher))
	blob = append(blob, pekSchemeBHeader...)
	blob = append(blob, 0, 0, 0, 0)
	blob = append(blob, iv...)
	blob = append(blob, cipher...)
	return blob
}

func TestLoadPekListSchemeBRoundTrip(t *testing.T) {
	r := require.New(t)

	bootKey := bytes.Repeat([]byte{0x00}, 32)
	iv := bytes.Repeat([]byte{0x22}, 16)
	k0 := bytes.Repeat([]byte{0xA0}, 16)
	k1 := bytes.Repeat([]byte{0xA1}, 16)

	blob := buildSchemeBBlob(bootKey[:16], iv, [][]byte{k0, k1})

	pl, err := LoadPekList(blob, bootKey[:16], zerolog.Nop())
	r.NoError(err)
	r.Equal(2, pl.Len())

	got0, _ := pl.Get(0)
	got1, _ := pl.Get(1)
	r.Equal(k0, got0)
	r.Equal(k1, got1)
}

func TestLoadPekListUnrecognizedHeader(t *testing.T) {
	r := require.New(t)

	blob := make([]byte, 40)
	blob[0] = 0xFF

	_, err := LoadPekList(blob, make([]byte, 16), zerolog.Nop())
	r.Error(err)
}

func TestLoadPekListTooShort(t *testing.T) {
	r := require.New(t)

	_, err := LoadPekList([]byte{1, 2, 3}, make([]byte, 16), zerolog.Nop())
	r.Error(err)
}

func TestPekListGetOutOfRange(t *testing.T) {
	r := require.New(t)

	pl := &PekList{keys: [][]byte{{1, 2, 3}}}
	_, ok := pl.Get(5)
	r.False(ok)
	_, ok = pl.Get(-1)
	r.False(ok)
}
