package winsec_test

import (
	"bytes"
	"encoding/binary"

	"github.com/sprocket-security/ntdsdump/winsec"
)

// buildTestSID returns the raw wire bytes for a one-subauthority SID.
func buildTestSID(authority byte, subAuthority uint32) []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte(1) // Revision
	buf.WriteByte(1) // NumAuthorities
	buf.Write([]byte{0, 0, 0, 0, 0, authority})
	binary.Write(buf, binary.LittleEndian, subAuthority)
	return buf.Bytes()
}

// getTestNtsdBytes assembles a minimal, well-formed self-relative
// security descriptor: owner and group both Local System, a DACL granting
// GENERIC_READ to Everyone, and no SACL.
func getTestNtsdBytes() ([]byte, error) {
	ownerSID := buildTestSID(5, 18) // S-1-5-18, Local System
	groupSID := buildTestSID(5, 18)

	ace := &bytes.Buffer{}
	binary.Write(ace, binary.LittleEndian, winsec.ACEHeader{
		Type:  winsec.AceTypeAccessAllowed,
		Flags: 0,
		Size:  20,
	})
	binary.Write(ace, binary.LittleEndian, uint32(winsec.AccessMaskGenericRead))
	ace.Write(buildTestSID(1, 0)) // S-1-1-0, Everyone

	dacl := &bytes.Buffer{}
	binary.Write(dacl, binary.LittleEndian, winsec.ACLHeader{
		Revision: 2,
		Sbz1:     0,
		Size:     uint16(8 + ace.Len()),
		AceCount: 1,
		Sbz2:     0,
	})
	dacl.Write(ace.Bytes())

	const headerSize = 20
	offsetDacl := uint32(headerSize)
	offsetOwner := offsetDacl + uint32(dacl.Len())
	offsetGroup := offsetOwner + uint32(len(ownerSID))

	out := &bytes.Buffer{}
	binary.Write(out, binary.LittleEndian, winsec.NtSecurityDescriptorHeader{
		Revision:    1,
		Sbz1:        0,
		Control:     0,
		OffsetOwner: offsetOwner,
		OffsetGroup: offsetGroup,
		OffsetSacl:  0,
		OffsetDacl:  offsetDacl,
	})
	out.Write(dacl.Bytes())
	out.Write(ownerSID)
	out.Write(groupSID)

	return out.Bytes(), nil
}

// newTestSD parses the getTestNtsdBytes fixture, panicking on failure
// since the fixture bytes are hand-verified.
func newTestSD() winsec.NtSecurityDescriptor {
	raw, err := getTestNtsdBytes()
	if err != nil {
		panic(err)
	}
	sd, err := winsec.NewNtSecurityDescriptor(raw)
	if err != nil {
		panic(err)
	}
	return sd
}

// getTestNtsdSDDLTestString returns the SDDL rendering expected for the
// newTestSD fixture.
func getTestNtsdSDDLTestString() (string, error) {
	return "O:S-1-5-18G:S-1-5-18D:(A;;GR;;;S-1-1-0)", nil
}
