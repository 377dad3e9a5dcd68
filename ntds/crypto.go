package ntds

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des" //nolint:gosec // single-DES is required by the legacy RID-unwrap layer, not a new design choice
	"crypto/md5" //nolint:gosec // MD5 is part of the on-disk PEK/secret key derivation, not used for integrity
	"crypto/rc4" //nolint:gosec // RC4 is part of the legacy (pre-2016) PEK and secret encryption scheme
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

const (
	aesBlockSize = aes.BlockSize // 16
	desBlockSize = des.BlockSize // 8

	// bootKeyMD5Iterations is the fixed number of times the PEK list's
	// key material is folded into the MD5 hash under Scheme A.
	bootKeyMD5Iterations = 1000
)

// hashMD5 computes the MD5 digest of the concatenation of parts.
func hashMD5(parts ...[]byte) []byte {
	h := md5.New() //nolint:gosec
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// md5RepeatKey hashes key followed by material written count times, as
// used to derive the Scheme A PEK list decryption key.
func md5RepeatKey(key []byte, material []byte, count int) []byte {
	h := md5.New() //nolint:gosec
	h.Write(key)
	for i := 0; i < count; i++ {
		h.Write(material)
	}
	return h.Sum(nil)
}

// rc4Crypt XORs data against the RC4 keystream produced by key. RC4 is
// a symmetric stream cipher: the same call encrypts and decrypts.
func rc4Crypt(key, data []byte) ([]byte, error) {
	c, err := rc4.NewCipher(key) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("initializing rc4 cipher: %w", err)
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}

// decryptAES implements the AES helper semantics: when iv is all-zero,
// each 16-byte block is decrypted independently with a fresh zero IV
// (effectively ECB with per-block CBC reset); otherwise standard
// AES-CBC is used across the whole value with the given IV. The final
// block is zero-padded if short. PKCS#7 unpadding is attempted on the
// result; if it fails the raw decrypted bytes are returned unchanged.
func decryptAES(key, value, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("initializing aes cipher: %w", err)
	}

	padded := padToBlockSize(value, aesBlockSize)
	out := make([]byte, len(padded))

	if isAllZero(iv) {
		zeroIV := make([]byte, aesBlockSize)
		for off := 0; off < len(padded); off += aesBlockSize {
			mode := cipher.NewCBCDecrypter(block, zeroIV)
			mode.CryptBlocks(out[off:off+aesBlockSize], padded[off:off+aesBlockSize])
		}
	} else {
		mode := cipher.NewCBCDecrypter(block, iv)
		mode.CryptBlocks(out, padded)
	}

	if unpadded, ok := pkcs7Unpad(out, aesBlockSize); ok {
		return unpadded, nil
	}
	return out, nil
}

// encryptAES is the inverse of decryptAES, used only by tests to
// construct round-trip fixtures; it pads with PKCS#7 before encrypting.
func encryptAES(key, value, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("initializing aes cipher: %w", err)
	}

	padded := pkcs7Pad(value, aesBlockSize)
	out := make([]byte, len(padded))

	if isAllZero(iv) {
		zeroIV := make([]byte, aesBlockSize)
		for off := 0; off < len(padded); off += aesBlockSize {
			mode := cipher.NewCBCEncrypter(block, zeroIV)
			mode.CryptBlocks(out[off:off+aesBlockSize], padded[off:off+aesBlockSize])
		}
	} else {
		mode := cipher.NewCBCEncrypter(block, iv)
		mode.CryptBlocks(out, padded)
	}
	return out, nil
}

func isAllZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func padToBlockSize(b []byte, size int) []byte {
	if len(b)%size == 0 {
		return b
	}
	out := make([]byte, (len(b)/size+1)*size)
	copy(out, b)
	return out
}

func pkcs7Pad(b []byte, size int) []byte {
	padLen := size - (len(b) % size)
	out := make([]byte, len(b)+padLen)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(padLen)
	}
	return out
}

// pkcs7Unpad reports whether b ends in a valid PKCS#7 padding for the
// given block size and, if so, returns the unpadded slice.
func pkcs7Unpad(b []byte, size int) ([]byte, bool) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, false
	}
	padLen := int(b[len(b)-1])
	if padLen == 0 || padLen > size || padLen > len(b) {
		return nil, false
	}
	for i := len(b) - padLen; i < len(b); i++ {
		if b[i] != byte(padLen) {
			return nil, false
		}
	}
	return b[:len(b)-padLen], true
}

// transformKey inflates a 7-byte DES key fragment to the 8-byte form
// DES expects, spreading the 56 input bits across the top 7 bits of
// each output byte and setting the low bit of each byte for odd
// parity.
func transformKey(key7 []byte) [8]byte {
	k := func(i int) uint16 { return uint16(key7[i]) }

	var out [8]byte
	out[0] = key7[0] & 0xFE
	out[1] = byte(((k(0) << 7) | (k(1) >> 1)) & 0xFE)
	out[2] = byte(((k(1) << 6) | (k(2) >> 2)) & 0xFE)
	out[3] = byte(((k(2) << 5) | (k(3) >> 3)) & 0xFE)
	out[4] = byte(((k(3) << 4) | (k(4) >> 4)) & 0xFE)
	out[5] = byte(((k(4) << 3) | (k(5) >> 5)) & 0xFE)
	out[6] = byte(((k(5) << 2) | (k(6) >> 6)) & 0xFE)
	out[7] = byte((k(6) << 1) & 0xFE)

	for i, b := range out {
		out[i] = setOddParity(b)
	}
	return out
}

// setOddParity sets bit 0 of b, which carries no key data, so the byte
// as a whole has an odd number of set bits.
func setOddParity(b byte) byte {
	b &^= 1
	parity := byte(0)
	v := b
	for i := 0; i < 8; i++ {
		parity ^= v & 1
		v >>= 1
	}
	if parity == 0 {
		return b | 1
	}
	return b
}

// deriveDESKeys builds the two 7-byte key fragments used by the
// RID-keyed DES unwrap from a 32-bit little-endian RID, then expands
// each to a full 8-byte DES key.
func deriveDESKeys(rid uint32) (k1, k2 [8]byte) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], rid)

	frag1 := []byte{b[0], b[1], b[2], b[3], b[0], b[1], b[2]}
	frag2 := []byte{b[3], b[0], b[1], b[2], b[3], b[0], b[1]}

	return transformKey(frag1), transformKey(frag2)
}

// desECBDecryptBlock decrypts a single 8-byte block with single-DES in
// ECB mode under key.
func desECBDecryptBlock(key [8]byte, block []byte) ([]byte, error) {
	c, err := des.NewCipher(key[:]) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("initializing des cipher: %w", err)
	}
	out := make([]byte, desBlockSize)
	c.Decrypt(out, block)
	return out, nil
}

// desECBEncryptBlock is the inverse of desECBDecryptBlock, used only by
// tests to construct RID-DES fixtures.
func desECBEncryptBlock(key [8]byte, block []byte) ([]byte, error) {
	c, err := des.NewCipher(key[:]) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("initializing des cipher: %w", err)
	}
	out := make([]byte, desBlockSize)
	c.Encrypt(out, block)
	return out, nil
}

// ridUnwrap applies the RID-keyed two-DES unwrap to a 16-byte block:
// the first 8 cipher bytes decrypt under k1, the last 8 under k2.
func ridUnwrap(rid uint32, block []byte) ([]byte, error) {
	if len(block) != 16 {
		return nil, fmt.Errorf("ridUnwrap: block must be 16 bytes, got %d", len(block))
	}
	k1, k2 := deriveDESKeys(rid)

	first, err := desECBDecryptBlock(k1, block[:8])
	if err != nil {
		return nil, err
	}
	second, err := desECBDecryptBlock(k2, block[8:])
	if err != nil {
		return nil, err
	}
	return append(first, second...), nil
}

func hexEncode(b []byte) string { return hex.EncodeToString(b) }
