package ntds

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/rs/zerolog"
)

// PEK list header prefixes. Scheme A covers Windows <= 2012 R2
// (MD5-keyed RC4); Scheme B covers Windows >= 2016 (AES-CBC keyed with
// the boot key, so AES-128 for a 16-byte SYSKEY).
var (
	pekSchemeAHeader = []byte{0x02, 0x00, 0x00, 0x00}
	pekSchemeBHeader = []byte{0x03, 0x00, 0x00, 0x00}
)

const (
	pekKeySize          = 16
	pekSchemeABlockSize = 20 // {u8 padding[4]; u8 key[16]}
	pekSchemeBEntrySize = 20 // {u32 index_LE; u8 key[16]}
	pekSchemeAHeaderLen = 32
	pekBlobHeaderLen    = 8 + pekKeySize // {char header[8]; char key_material[16]}

	// pekSchemeBSentinel is the terminator index Scheme B blobs use to
	// mark the end of the key sequence.
	pekSchemeBSentinel = 0x08080808
)

// PekList is the decrypted, ordered sequence of Password Encryption
// Keys recovered from a single ntds.dit's pek_list attribute.
type PekList struct {
	keys   [][]byte
	logger zerolog.Logger
}

// LoadPekList decrypts the raw encrypted PEK blob (as read from the
// domain/ADAM/schema pek_list attribute) using the 16-byte SYSKEY boot
// key, selecting Scheme A or B by the blob's 4-byte header.
func LoadPekList(rawEncPek, bootKey []byte, logger zerolog.Logger) (*PekList, error) {
	if len(rawEncPek) < pekBlobHeaderLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrPEKBlobTooShort, len(rawEncPek))
	}

	header := rawEncPek[:8]
	keyMaterial := rawEncPek[8:pekBlobHeaderLen]
	encryptedPek := rawEncPek[pekBlobHeaderLen:]

	switch {
	case bytes.Equal(header[:4], pekSchemeAHeader):
		keys, err := decryptPekSchemeA(bootKey, keyMaterial, encryptedPek)
		if err != nil {
			return nil, fmt.Errorf("decrypting pek list (scheme A): %w", err)
		}
		return &PekList{keys: keys, logger: logger}, nil

	case bytes.Equal(header[:4], pekSchemeBHeader):
		keys, err := decryptPekSchemeB(bootKey, keyMaterial, encryptedPek)
		if err != nil {
			return nil, fmt.Errorf("decrypting pek list (scheme B): %w", err)
		}
		return &PekList{keys: keys, logger: logger}, nil

	default:
		return nil, fmt.Errorf("%w: % x", ErrUnrecognizedPEKHeader, header[:4])
	}
}

func decryptPekSchemeA(bootKey, keyMaterial, encryptedPek []byte) ([][]byte, error) {
	tmpKey := md5RepeatKey(bootKey, keyMaterial, bootKeyMD5Iterations)

	plain, err := rc4Crypt(tmpKey, encryptedPek)
	if err != nil {
		return nil, err
	}
	if len(plain) < pekSchemeAHeaderLen {
		return nil, fmt.Errorf("scheme A plaintext too short: %d bytes", len(plain))
	}

	decryptedPek := plain[pekSchemeAHeaderLen:]

	var keys [][]byte
	for off := 0; off+pekSchemeABlockSize <= len(decryptedPek); off += pekSchemeABlockSize {
		block := decryptedPek[off : off+pekSchemeABlockSize]
		key := make([]byte, pekKeySize)
		copy(key, block[4:])
		keys = append(keys, key)
	}
	return keys, nil
}

func decryptPekSchemeB(bootKey, iv, encryptedPek []byte) ([][]byte, error) {
	plain, err := decryptAES(bootKey, encryptedPek, iv)
	if err != nil {
		return nil, err
	}

	var keys [][]byte
	wantIndex := uint32(0)
	for off := 0; off+pekSchemeBEntrySize <= len(plain); off += pekSchemeBEntrySize {
		entry := plain[off : off+pekSchemeBEntrySize]
		index := binary.LittleEndian.Uint32(entry[:4])
		if index != wantIndex || index == pekSchemeBSentinel {
			break
		}
		key := make([]byte, pekKeySize)
		copy(key, entry[4:])
		keys = append(keys, key)
		wantIndex++
	}
	return keys, nil
}

// Len reports the number of PEKs recovered.
func (p *PekList) Len() int { return len(p.keys) }

// Get returns the PEK at the given index and whether it is in range.
func (p *PekList) Get(id int) ([]byte, bool) {
	if id < 0 || id >= len(p.keys) {
		return nil, false
	}
	return p.keys[id], true
}
