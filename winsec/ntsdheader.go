package winsec

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// NtSecurityDescriptorHeader is the fixed-size header of a self-relative
// security descriptor, carrying byte offsets to its owner SID, group SID,
// SACL and DACL.
type NtSecurityDescriptorHeader struct {
	Revision    byte
	Sbz1        byte
	Control     uint16
	OffsetOwner uint32
	OffsetGroup uint32
	OffsetSacl  uint32
	OffsetDacl  uint32
}

// Security descriptor control flags, carried in the header's Control word.
const (
	DACLAutoInheritReq = 0x0100
	DACLAutoInherited  = 0x0400
	SACLAutoInherited  = 0x0800
	DACLProtected      = 0x1000
)

// NewNTSDHeader parses out an NtSecurityDescriptorHeader from a byte
// buffer.
func NewNTSDHeader(buf *bytes.Buffer) (header NtSecurityDescriptorHeader, err error) {
	err = binary.Read(buf, binary.LittleEndian, &header)
	if err != nil {
		return header, fmt.Errorf("reading NTSD header: %w", err)
	}
	return header, nil
}
