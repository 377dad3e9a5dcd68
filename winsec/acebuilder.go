package winsec

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// NewAce parses a full ACE - header, access mask and body - out of a byte
// buffer, dispatching to NewBasicAce or NewAdvancedAce based on the
// header's AceType.
func NewAce(buf *bytes.Buffer) (ACE, error) {
	ace := ACE{}
	var err error

	ace.Header, err = NewACEHeader(buf)
	if err != nil {
		return ace, fmt.Errorf("reading ACE header: %w", err)
	}

	err = binary.Read(buf, binary.LittleEndian, &ace.AccessMask.Value)
	if err != nil {
		return ace, fmt.Errorf("reading ACE access mask: %w", err)
	}

	switch ace.Header.Type {
	case AceTypeAccessAllowed, AceTypeAccessDenied, AceTypeSystemAudit, AceTypeSystemAlarm,
		AceTypeAccessAllowedCallback, AceTypeAccessDeniedCallback, AceTypeSystemAuditCallback, AceTypeSystemAlarmCallback,
		AceTypeSystemMandatoryLabel:

		ace.ObjectAce, err = NewBasicAce(buf, ace.Header.Size)
		if err != nil {
			return ace, fmt.Errorf("parsing basic ACE: %w", err)
		}

	case AceTypeAccessAllowedObject, AceTypeAccessDeniedObject, AceTypeSystemAuditObject, AceTypeSystemAlarmObject,
		AceTypeAccessAllowedCallbackObject, AceTypeAccessDeniedCallbackObject, AceTypeSystemAuditCallbackObject, AceTypeSystemAlarmCallbackObject:

		ace.ObjectAce, err = NewAdvancedAce(buf, ace.Header.Size)
		if err != nil {
			return ace, fmt.Errorf("parsing advanced ACE: %w", err)
		}

	default:
		return ace, fmt.Errorf("unknown ACE type: %d", ace.Header.Type)
	}

	return ace, nil
}

// NewBasicAce parses a BasicAce body - just a trailing SID - out of a byte
// buffer. totalSize is the ACE's full on-wire size, from its header.
func NewBasicAce(buf *bytes.Buffer, totalSize uint16) (BasicAce, error) {
	oa := BasicAce{}

	sidSize := int(totalSize) - 8
	if sidSize <= 0 {
		return oa, fmt.Errorf("invalid ACE size for SID: %d", sidSize)
	}

	sid, err := NewSID(buf, sidSize)
	if err != nil {
		return oa, fmt.Errorf("parsing SID in basic ACE: %w", err)
	}

	oa.SecurityIdentifier = sid
	return oa, nil
}

// NewAdvancedAce parses an AdvancedAce body - an inheritance-flags DWORD,
// optional ObjectType/InheritedObjectType GUIDs and a trailing SID - out
// of a byte buffer. totalSize is the ACE's full on-wire size, from its
// header.
func NewAdvancedAce(buf *bytes.Buffer, totalSize uint16) (AdvancedAce, error) {
	oa := AdvancedAce{}
	var err error

	err = binary.Read(buf, binary.LittleEndian, &oa.Flags)
	if err != nil {
		return oa, fmt.Errorf("reading ACE inheritance flags: %w", err)
	}

	offset := 12

	if (oa.Flags & ACEInheritanceFlagsObjectTypePresent) != 0 {
		oa.ObjectType, err = NewGUID(buf)
		if err != nil {
			return oa, fmt.Errorf("reading object type GUID: %w", err)
		}
		offset += 16
	}

	if (oa.Flags & ACEInheritanceFlagsInheritedObjectTypePresent) != 0 {
		oa.InheritedObjectType, err = NewGUID(buf)
		if err != nil {
			return oa, fmt.Errorf("reading inherited object type GUID: %w", err)
		}
		offset += 16
	}

	sidSize := int(totalSize) - offset
	if sidSize <= 0 {
		return oa, fmt.Errorf("invalid advanced ACE size for SID: %d", sidSize)
	}

	sid, err := NewSID(buf, sidSize)
	if err != nil {
		return oa, fmt.Errorf("parsing SID in advanced ACE: %w", err)
	}

	oa.SecurityIdentifier = sid
	return oa, nil
}
