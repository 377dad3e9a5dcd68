package winsec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
)

// ACE type byte values, as defined by the ACE_HEADER's AceType field.
// https://docs.microsoft.com/en-us/windows/win32/secauthz/ace-strings
const (
	AceTypeAccessAllowed                   = 0x00
	AceTypeAccessDenied                    = 0x01
	AceTypeSystemAudit                     = 0x02
	AceTypeSystemAlarm                     = 0x03
	AceTypeAccessAllowedCompound           = 0x04
	AceTypeAccessAllowedObject             = 0x05
	AceTypeAccessDeniedObject              = 0x06
	AceTypeSystemAuditObject               = 0x07
	AceTypeSystemAlarmObject               = 0x08
	AceTypeAccessAllowedCallback           = 0x09
	AceTypeAccessDeniedCallback            = 0x0A
	AceTypeAccessAllowedCallbackObject     = 0x0B
	AceTypeAccessDeniedCallbackObject      = 0x0C
	AceTypeSystemAuditCallback             = 0x0D
	AceTypeSystemAlarmCallback             = 0x0E
	AceTypeSystemAuditCallbackObject       = 0x0F
	AceTypeSystemAlarmCallbackObject       = 0x10
	AceTypeSystemMandatoryLabel            = 0x11
)

// AceTypeNames maps the numeric ACE type to its Windows constant name.
var AceTypeNames = map[byte]string{
	AceTypeAccessAllowed:               "ACCESS_ALLOWED",
	AceTypeAccessDenied:                "ACCESS_DENIED",
	AceTypeSystemAudit:                 "SYSTEM_AUDIT",
	AceTypeSystemAlarm:                 "SYSTEM_ALARM",
	AceTypeAccessAllowedCompound:       "ACCESS_ALLOWED_COMPOUND",
	AceTypeAccessAllowedObject:         "ACCESS_ALLOWED_OBJECT",
	AceTypeAccessDeniedObject:          "ACCESS_DENIED_OBJECT",
	AceTypeSystemAuditObject:           "SYSTEM_AUDIT_OBJECT",
	AceTypeSystemAlarmObject:           "SYSTEM_ALARM_OBJECT",
	AceTypeAccessAllowedCallback:       "ACCESS_ALLOWED_CALLBACK",
	AceTypeAccessDeniedCallback:        "ACCESS_DENIED_CALLBACK",
	AceTypeAccessAllowedCallbackObject: "ACCESS_ALLOWED_CALLBACK_OBJECT",
	AceTypeAccessDeniedCallbackObject:  "ACCESS_DENIED_CALLBACK_OBJECT",
	AceTypeSystemAuditCallback:         "SYSTEM_AUDIT_CALLBACK",
	AceTypeSystemAlarmCallback:         "SYSTEM_ALARM_CALLBACK",
	AceTypeSystemAuditCallbackObject:   "SYSTEM_AUDIT_CALLBACK_OBJECT",
	AceTypeSystemAlarmCallbackObject:   "SYSTEM_ALARM_CALLBACK_OBJECT",
	AceTypeSystemMandatoryLabel:        "SYSTEM_MANDATORY_LABEL",
}

// ACE header flags (AceFlags byte).
const (
	ACEHeaderFlagsObjectInheritAce        = 0x01
	ACEHeaderFlagsContainerInheritAce     = 0x02
	ACEHeaderFlagsNoPropogateInheritAce   = 0x04
	ACEHeaderFlagsInheritOnlyAce          = 0x08
	ACEHeaderFlagsInheritedAce            = 0x10
	ACEHeaderFlagsSuccessfulAccessAceFlag = 0x40
	ACEHeaderFlagsFailedAccessAceFlag     = 0x80
)

// aceHeaderFlagNames preserves a stable ordering when rendering flag strings.
var aceHeaderFlagNames = []struct {
	mask byte
	name string
}{
	{ACEHeaderFlagsObjectInheritAce, "OBJECT_INHERIT_ACE"},
	{ACEHeaderFlagsContainerInheritAce, "CONTAINER_INHERIT_ACE"},
	{ACEHeaderFlagsNoPropogateInheritAce, "NO_PROPAGATE_INHERIT_ACE"},
	{ACEHeaderFlagsInheritOnlyAce, "INHERIT_ONLY_ACE"},
	{ACEHeaderFlagsInheritedAce, "INHERITED_ACE"},
	{ACEHeaderFlagsSuccessfulAccessAceFlag, "SUCCESSFUL_ACCESS_ACE_FLAG"},
	{ACEHeaderFlagsFailedAccessAceFlag, "FAILED_ACCESS_ACE_FLAG"},
}

// Advanced (object) ACE inheritance flags (the Flags DWORD preceding the
// optional ObjectType/InheritedObjectType GUIDs).
const (
	ACEInheritanceFlagsObjectTypePresent          = 0x1
	ACEInheritanceFlagsInheritedObjectTypePresent = 0x2
)

// Access mask bits, as defined by the ACCESS_MASK structure.
// https://docs.microsoft.com/en-us/windows/win32/secauthz/access-mask
const (
	AccessMaskGenericRead        = 0x80000000
	AccessMaskGenericWrite       = 0x40000000
	AccessMaskGenericExecute     = 0x20000000
	AccessMaskGenericAll         = 0x10000000
	AccessMaskMaximumAllowed     = 0x02000000
	AccessMaskAccessSystemSec    = 0x01000000
	AccessMaskSynchronize        = 0x00100000
	AccessMaskWriteOwner         = 0x00080000
	AccessMaskWriteDACL          = 0x00040000
	AccessMaskReadControl        = 0x00020000
	AccessMaskDelete             = 0x00010000
)

// accessMaskNames preserves a stable ordering when rendering mask strings.
var accessMaskNames = []struct {
	mask uint32
	name string
}{
	{AccessMaskGenericRead, "GENERIC_READ"},
	{AccessMaskGenericWrite, "GENERIC_WRITE"},
	{AccessMaskGenericExecute, "GENERIC_EXECUTE"},
	{AccessMaskGenericAll, "GENERIC_ALL"},
	{AccessMaskMaximumAllowed, "MAXIMUM_ALLOWED"},
	{AccessMaskAccessSystemSec, "ACCESS_SYSTEM_SECURITY"},
	{AccessMaskSynchronize, "SYNCHRONIZE"},
	{AccessMaskWriteOwner, "WRITE_OWNER"},
	{AccessMaskWriteDACL, "WRITE_DAC"},
	{AccessMaskReadControl, "READ_CONTROL"},
	{AccessMaskDelete, "DELETE"},
}

// ACEHeader is the common 4-byte header present at the start of every ACE.
type ACEHeader struct {
	Type  byte
	Flags byte
	Size  uint16
}

// FlagsString renders the header's AceFlags as their Windows constant
// names, space-separated.
func (h ACEHeader) FlagsString() string {
	var names []string
	for _, f := range aceHeaderFlagNames {
		if h.Flags&f.mask != 0 {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, " ")
}

// ACEAccessMask wraps the raw 32-bit ACCESS_MASK value carried by an ACE.
type ACEAccessMask struct {
	Value uint32
}

// Raw returns the unmodified ACCESS_MASK value.
func (m ACEAccessMask) Raw() uint32 {
	return m.Value
}

// StringSlice returns the set of access right names present in the mask.
func (m ACEAccessMask) StringSlice() []string {
	var names []string
	for _, r := range accessMaskNames {
		if m.Value&r.mask != 0 {
			names = append(names, r.name)
		}
	}
	sort.Strings(names)
	return names
}

// String renders the mask as a space-separated list of right names.
func (m ACEAccessMask) String() string {
	return strings.Join(m.StringSlice(), " ")
}

// AceObject is implemented by the two concrete ACE bodies, BasicAce and
// AdvancedAce, allowing callers to recover the principal regardless of
// which shape the ACE carries.
type AceObject interface {
	GetPrincipal() SID
}

// BasicAce is the body of a non-object ACE: just the principal's SID.
type BasicAce struct {
	SecurityIdentifier SID
}

// GetPrincipal returns the ACE's security identifier.
func (b BasicAce) GetPrincipal() SID {
	return b.SecurityIdentifier
}

// AdvancedAce is the body of an object ACE, optionally carrying an
// ObjectType and/or InheritedObjectType GUID ahead of the principal's SID.
type AdvancedAce struct {
	Flags               uint32
	ObjectType          GUID
	InheritedObjectType GUID
	SecurityIdentifier  SID
}

// GetPrincipal returns the ACE's security identifier.
func (a AdvancedAce) GetPrincipal() SID {
	return a.SecurityIdentifier
}

// FlagsString renders the object ACE's inheritance flags as their Windows
// constant names.
func (a AdvancedAce) FlagsString() string {
	var names []string
	if a.Flags&ACEInheritanceFlagsObjectTypePresent != 0 {
		names = append(names, "ACE_OBJECT_TYPE_PRESENT")
	}
	if a.Flags&ACEInheritanceFlagsInheritedObjectTypePresent != 0 {
		names = append(names, "ACE_INHERITED_OBJECT_TYPE_PRESENT")
	}
	return strings.Join(names, " ")
}

// ACE represents a single Access Control Entry: a header, an access mask
// and either a BasicAce or AdvancedAce body.
type ACE struct {
	Header     ACEHeader
	AccessMask ACEAccessMask
	ObjectAce  AceObject
}

// GetType returns the ACE's numeric type.
func (a ACE) GetType() byte {
	return a.Header.Type
}

// GetTypeString returns the ACE's type as its Windows constant name.
func (a ACE) GetTypeString() string {
	if name, ok := AceTypeNames[a.Header.Type]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", a.Header.Type)
}

// GetPrincipal returns the SID carried by the ACE's body.
func (a ACE) GetPrincipal() SID {
	if a.ObjectAce == nil {
		return SID{}
	}
	return a.ObjectAce.GetPrincipal()
}

// String renders a multi-line, human-readable summary of the ACE.
func (a ACE) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "AceType: %s\n", a.GetTypeString())

	if flags := a.Header.FlagsString(); flags != "" {
		fmt.Fprintf(&sb, "Flags: %s\n", flags)
	}

	if adv, ok := a.ObjectAce.(AdvancedAce); ok {
		if adv.Flags&ACEInheritanceFlagsObjectTypePresent != 0 {
			fmt.Fprintf(&sb, "ObjectType: %s\n", adv.ObjectType.Resolve())
		}
		if adv.Flags&ACEInheritanceFlagsInheritedObjectTypePresent != 0 {
			fmt.Fprintf(&sb, "InheritedObjectType: %s\n", adv.InheritedObjectType.Resolve())
		}
	}

	fmt.Fprintf(&sb, "Permissions: %s\n", a.AccessMask.String())
	fmt.Fprintf(&sb, "SID: %s\n", a.GetPrincipal().String())

	return sb.String()
}

// NewACEHeader parses an ACEHeader out of a byte buffer.
func NewACEHeader(buf *bytes.Buffer) (header ACEHeader, err error) {
	err = binary.Read(buf, binary.LittleEndian, &header)
	if err != nil {
		return header, fmt.Errorf("reading ACE header: %w", err)
	}
	return header, nil
}
