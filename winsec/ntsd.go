package winsec

import (
	"bytes"
	"fmt"
)

// NtSecurityDescriptor represents a self-relative Windows security
// descriptor: its header, DACL, SACL, owner and group.
type NtSecurityDescriptor struct {
	Header NtSecurityDescriptorHeader
	DACL   ACL
	SACL   ACL
	Owner  SID
	Group  SID
}

// String returns general information about the security descriptor.
// See also SDDLBuilder for a full SDDL rendering.
func (s NtSecurityDescriptor) String() string {
	return fmt.Sprintf(
		"Parsed Security Descriptor:\n Offsets:\n Owner=%v Group=%v Sacl=%v Dacl=%v\n",
		s.Header.OffsetOwner,
		s.Header.OffsetGroup,
		s.Header.OffsetSacl,
		s.Header.OffsetDacl,
	)
}

// NewNtSecurityDescriptor parses an NtSecurityDescriptor out of its raw
// on-disk bytes, as stored in ntds.dit's sd_table. It reads the DACL
// directly after the 20-byte header and then the owner and group SIDs,
// each sized OffsetGroup-OffsetOwner; the header's DACL and SACL offsets
// are not followed, and the SACL is left empty.
func NewNtSecurityDescriptor(ntsdBytes []byte) (NtSecurityDescriptor, error) {
	buf := bytes.NewBuffer(ntsdBytes)
	var err error

	ntsd := NtSecurityDescriptor{}
	ntsd.Header, err = NewNTSDHeader(buf)
	if err != nil {
		return ntsd, fmt.Errorf("parsing security descriptor header: %w", err)
	}

	ntsd.DACL, err = NewACL(buf)
	if err != nil {
		return ntsd, fmt.Errorf("parsing DACL: %w", err)
	}

	sidSize := ntsd.Header.OffsetGroup - ntsd.Header.OffsetOwner

	// Some descriptors carry the owner/group only as the first ACE's
	// principal, with no separate trailing SIDs.
	if sidSize == 0 {
		if len(ntsd.DACL.Aces) > 0 {
			ntsd.Owner = ntsd.DACL.Aces[0].GetPrincipal()
			ntsd.Group = ntsd.DACL.Aces[0].GetPrincipal()
		}
		return ntsd, nil
	}

	ntsd.Owner, err = NewSID(buf, int(sidSize))
	if err != nil {
		return ntsd, fmt.Errorf("parsing owner SID: %w", err)
	}

	ntsd.Group, err = NewSID(buf, int(sidSize))
	if err != nil {
		return ntsd, fmt.Errorf("parsing group SID: %w", err)
	}

	return ntsd, nil
}

// ToSDDL renders the security descriptor as a Security Descriptor
// Definition Language string, using SDDLBuilder.
func (s NtSecurityDescriptor) ToSDDL() string {
	sb := NewSDDLBuilder().
		WithOwnerSID(s.Owner).
		WithGroupSID(s.Group).
		WithDACL()

	for _, ace := range s.DACL.Aces {
		sid := ace.GetPrincipal().String()
		mask := ace.AccessMask.Raw()
		flags := ace.Header.Flags

		switch ace.Header.Type {
		case AceTypeAccessDenied, AceTypeAccessDeniedObject, AceTypeAccessDeniedCallback, AceTypeAccessDeniedCallbackObject:
			sb.AccessDeniedACE(sid, mask, flags)
		default:
			sb.AccessAllowedACE(sid, mask, flags)
		}
	}

	if len(s.SACL.Aces) > 0 {
		sb.WithSACL()
		for _, ace := range s.SACL.Aces {
			sid := ace.GetPrincipal().String()
			mask := ace.AccessMask.Raw()
			flags := ace.Header.Flags
			success := flags&ACEHeaderFlagsSuccessfulAccessAceFlag != 0
			failure := flags&ACEHeaderFlagsFailedAccessAceFlag != 0
			sb.AuditACE(sid, mask, flags, success, failure)
		}
	}

	return sb.Build()
}
