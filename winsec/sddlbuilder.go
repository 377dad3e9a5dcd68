package winsec

import (
	"fmt"
	"strings"
)

// SDDLBuilder provides a fluent API for constructing Security Descriptor
// Definition Language strings.
type SDDLBuilder struct {
	owner    string // SID or special name
	group    string // SID or special name
	dacl     []string
	sacl     []string
	flags    uint16
	useOwner bool
	useGroup bool
	useDacl  bool
	useSacl  bool
	useFlags bool
}

// NewSDDLBuilder creates a new SDDL builder instance.
func NewSDDLBuilder() *SDDLBuilder {
	return &SDDLBuilder{
		dacl: make([]string, 0),
		sacl: make([]string, 0),
	}
}

// WithOwner sets the owner SID in the security descriptor.
func (sb *SDDLBuilder) WithOwner(sid string) *SDDLBuilder {
	sb.owner = sid
	sb.useOwner = true
	return sb
}

// WithOwnerSID sets the owner SID using a SID object.
func (sb *SDDLBuilder) WithOwnerSID(sid SID) *SDDLBuilder {
	return sb.WithOwner(sid.String())
}

// WithGroup sets the group SID in the security descriptor.
func (sb *SDDLBuilder) WithGroup(sid string) *SDDLBuilder {
	sb.group = sid
	sb.useGroup = true
	return sb
}

// WithGroupSID sets the group SID using a SID object.
func (sb *SDDLBuilder) WithGroupSID(sid SID) *SDDLBuilder {
	return sb.WithGroup(sid.String())
}

// WithFlags sets the security descriptor control flags.
func (sb *SDDLBuilder) WithFlags(flags uint16) *SDDLBuilder {
	sb.flags = flags
	sb.useFlags = true
	return sb
}

func (sb *SDDLBuilder) formatACL(aces []string) string {
	return strings.Join(aces, "")
}

// WithFlag adds a named flag (P, AR, AI, SA, ...) to the security
// descriptor's control flags.
func (sb *SDDLBuilder) WithFlag(flag string) *SDDLBuilder {
	flagMap := map[string]uint16{
		"P":   DACLProtected,
		"AR":  DACLAutoInheritReq,
		"AI":  DACLAutoInherited,
		"SA":  SACLAutoInherited,
		"SR":  0x0200, // SACL Auto Inherit Req
		"SP":  0x2000, // SACL Protected
		"NO":  0x0100, // No Owner propagate
		"NG":  0x0200, // No Group propagate
		"SD":  0x0001, // Self-relative
		"DT":  0x0008, // DACL Trusted
		"SS":  0x0008, // SACL Trusted
		"RM":  0x2000, // RM Control Valid
		"CR":  0x0010, // Create Revision
		"CO":  0x0004, // Control Access
		"SR1": 0x0800, // Server Security
	}

	if val, ok := flagMap[flag]; ok {
		sb.flags |= val
		sb.useFlags = true
	}

	return sb
}

// WithDACL marks the builder as carrying a DACL, even if empty.
func (sb *SDDLBuilder) WithDACL() *SDDLBuilder {
	sb.useDacl = true
	return sb
}

// WithSACL marks the builder as carrying a SACL, even if empty.
func (sb *SDDLBuilder) WithSACL() *SDDLBuilder {
	sb.useSacl = true
	return sb
}

// AccessAllowedACE appends an Access Allowed ACE to the DACL.
func (sb *SDDLBuilder) AccessAllowedACE(sid string, accessMask uint32, flags byte) *SDDLBuilder {
	sb.useDacl = true
	aceString := fmt.Sprintf("(A;%s;%s;;;%s)", formatACEFlags(flags), formatAccessMask(accessMask), sid)
	sb.dacl = append(sb.dacl, aceString)
	return sb
}

// AccessDeniedACE appends an Access Denied ACE to the DACL.
func (sb *SDDLBuilder) AccessDeniedACE(sid string, accessMask uint32, flags byte) *SDDLBuilder {
	sb.useDacl = true
	aceString := fmt.Sprintf("(D;%s;%s;;;%s)", formatACEFlags(flags), formatAccessMask(accessMask), sid)
	sb.dacl = append(sb.dacl, aceString)
	return sb
}

// AuditACE appends an Audit ACE to the SACL.
func (sb *SDDLBuilder) AuditACE(sid string, accessMask uint32, flags byte, success, failure bool) *SDDLBuilder {
	sb.useSacl = true

	auditType := ""
	if success && failure {
		auditType = "AU"
	} else if success {
		auditType = "SA"
	} else if failure {
		auditType = "FA"
	}

	aceString := fmt.Sprintf("(%s;%s;%s;;;%s)", auditType, formatACEFlags(flags), formatAccessMask(accessMask), sid)
	sb.sacl = append(sb.sacl, aceString)
	return sb
}

func formatACEFlags(flags byte) string {
	result := ""

	flagMap := map[byte]string{
		byte(ACEHeaderFlagsObjectInheritAce):        "OI",
		byte(ACEHeaderFlagsContainerInheritAce):     "CI",
		byte(ACEHeaderFlagsNoPropogateInheritAce):   "NP",
		byte(ACEHeaderFlagsInheritOnlyAce):          "IO",
		byte(ACEHeaderFlagsInheritedAce):            "ID",
		byte(ACEHeaderFlagsSuccessfulAccessAceFlag): "SA",
		byte(ACEHeaderFlagsFailedAccessAceFlag):     "FA",
	}

	for mask, flag := range flagMap {
		if flags&mask != 0 {
			result += flag
		}
	}

	return result
}

func formatAccessMask(mask uint32) string {
	basic := formatBasicAccessMask(mask)
	if basic != "" {
		return basic
	}

	return fmt.Sprintf("0x%08X", mask)
}

func formatBasicAccessMask(mask uint32) string {
	rightsMap := map[uint32]string{
		AccessMaskGenericAll:     "GA",
		AccessMaskGenericExecute: "GX",
		AccessMaskGenericWrite:   "GW",
		AccessMaskGenericRead:    "GR",
		AccessMaskMaximumAllowed: "MA",
		AccessMaskReadControl:    "RC",
		AccessMaskWriteDACL:      "WD",
		AccessMaskWriteOwner:     "WO",
		AccessMaskDelete:         "SD",
		AccessMaskSynchronize:    "SY",
	}

	for right, code := range rightsMap {
		if mask == right {
			return code
		}
	}

	result := ""
	for right, code := range rightsMap {
		if mask&right != 0 {
			result += code
		}
	}

	return result
}

// Build constructs the final SDDL string.
func (sb *SDDLBuilder) Build() string {
	var parts []string

	if sb.useOwner {
		parts = append(parts, fmt.Sprintf("O:%s", sb.owner))
	}

	if sb.useGroup {
		parts = append(parts, fmt.Sprintf("G:%s", sb.group))
	}

	if sb.useDacl {
		daclPart := "D:"

		if sb.useFlags {
			daclPart += formatSDFlags(sb.flags)
		}

		if len(sb.dacl) > 0 {
			daclPart += sb.formatACL(sb.dacl)
		}

		parts = append(parts, daclPart)
	} else if sb.useFlags {
		parts = append(parts, fmt.Sprintf("D:%s", formatSDFlags(sb.flags)))
	}

	if sb.useSacl {
		if len(sb.sacl) > 0 {
			parts = append(parts, fmt.Sprintf("S:%s", sb.formatACL(sb.sacl)))
		} else {
			parts = append(parts, "S:")
		}
	}

	return strings.Join(parts, "")
}

func formatSDFlags(flags uint16) string {
	result := ""

	flagMap := map[uint16]string{
		DACLProtected:      "P",
		DACLAutoInheritReq: "AR",
		DACLAutoInherited:  "AI",
		SACLAutoInherited:  "SA",
		0x0200:             "SR", // SACL Auto Inherit Req
		0x2000:             "SP", // SACL Protected
	}

	for flag, code := range flagMap {
		if flags&flag != 0 {
			result += code
		}
	}

	return result
}

// Parse does not parse SDDL: it always returns a nil descriptor and an
// error. Security descriptors are decoded only from their binary
// on-disk form, by NewNtSecurityDescriptor.
func (sb *SDDLBuilder) Parse(sddl string) (*NtSecurityDescriptor, error) {
	return nil, fmt.Errorf("SDDL parsing not implemented in the builder yet")
}
