// Package winsec decodes the binary security descriptors, SIDs and ACLs
// found in ntds.dit's sd_table, and offers a best-effort Windows access
// check over the decoded form.
package winsec

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// GUID holds the various parts of a Windows GUID, wire-compatible with the
// mixed-endian layout Microsoft stores on disk: Data1-3 little-endian,
// Data4 a raw 8-byte array.
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// NewGUID is a constructor that will parse out a GUID from a byte buffer.
func NewGUID(buf *bytes.Buffer) (GUID, error) {
	guid := GUID{}
	if err := binary.Read(buf, binary.LittleEndian, &guid.Data1); err != nil {
		return guid, fmt.Errorf("reading GUID Data1: %w", err)
	}
	if err := binary.Read(buf, binary.LittleEndian, &guid.Data2); err != nil {
		return guid, fmt.Errorf("reading GUID Data2: %w", err)
	}
	if err := binary.Read(buf, binary.LittleEndian, &guid.Data3); err != nil {
		return guid, fmt.Errorf("reading GUID Data3: %w", err)
	}
	if err := binary.Read(buf, binary.LittleEndian, &guid.Data4); err != nil {
		return guid, fmt.Errorf("reading GUID Data4: %w", err)
	}
	return guid, nil
}

// NewGUIDFromBytes parses a 16-byte Windows-ordered GUID blob, the layout
// objectGUID, schemaIDGUID and the other UUID_FIELDS attributes carry.
func NewGUIDFromBytes(raw []byte) (GUID, error) {
	if len(raw) != 16 {
		return GUID{}, fmt.Errorf("winsec: GUID requires 16 bytes, got %d", len(raw))
	}
	return NewGUID(bytes.NewBuffer(raw))
}

// ToBytes serializes the GUID back to its 16-byte Windows wire form.
func (g GUID) ToBytes() []byte {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, g.Data1)
	binary.Write(buf, binary.LittleEndian, g.Data2)
	binary.Write(buf, binary.LittleEndian, g.Data3)
	binary.Write(buf, binary.LittleEndian, g.Data4)
	return buf.Bytes()
}

// UUID reorders the mixed-endian Windows GUID into RFC 4122 big-endian
// field order and returns it as a github.com/google/uuid.UUID, giving
// callers the standard library-adjacent UUID type instead of a bespoke
// string format.
func (g GUID) UUID() (uuid.UUID, error) {
	raw := g.ToBytes()
	rfc := make([]byte, 16)
	rfc[0], rfc[1], rfc[2], rfc[3] = raw[3], raw[2], raw[1], raw[0]
	rfc[4], rfc[5] = raw[5], raw[4]
	rfc[6], rfc[7] = raw[7], raw[6]
	copy(rfc[8:], raw[8:])
	return uuid.FromBytes(rfc)
}

// String will return the human-readable version of a GUID. It returns an
// empty string in case of a null-initialized GUID.
func (g GUID) String() string {
	guid := fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		g.Data1, g.Data2, g.Data3, g.Data4[0:2], g.Data4[2:8])
	if guid == "00000000-0000-0000-0000-000000000000" {
		guid = ""
	}
	return guid
}

// Resolve returns the common human-readable object name as defined by
// Microsoft. If the GUID is not resolvable, the GUID string is returned
// instead.
//
// https://docs.microsoft.com/en-us/windows/win32/adschema/control-access-rights
func (g GUID) Resolve() string {
	guid := g.String()
	if found := ControlAccessRightsGUIDs[guid]; found != "" {
		return found
	}
	return guid
}
