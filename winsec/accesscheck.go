package winsec

import (
	"fmt"
)

// AccessCheckResult is the outcome of an AccessCheck call.
type AccessCheckResult struct {
	Granted bool           // Whether access was granted
	Reason  string         // Reason for the decision
	Ace     *ACE           // The ACE that determined the result, if any
	Access  uint32         // Access mask that was granted
	Details []CheckDetails // Detailed reasoning about the check
}

// CheckDetails provides detailed information about a step in the access check.
type CheckDetails struct {
	Step        string
	Description string
	Outcome     bool
}

// TokenUser represents the subject of an access check: a user SID and the
// group SIDs its token carries.
type TokenUser struct {
	UserSID SID
	Groups  []SID
	Flags   uint32
}

// NewTokenUser creates a new TokenUser.
func NewTokenUser(userSID SID, groups []SID) *TokenUser {
	return &TokenUser{
		UserSID: userSID,
		Groups:  groups,
		Flags:   0,
	}
}

// AccessCheckOptions configures an AccessCheck call.
type AccessCheckOptions struct {
	IgnoreObjectType bool // Skip object type checks for object ACEs
	CheckIntegrity   bool // Check integrity levels
	IntegrityPolicy  IntegrityLevelPolicy
	SubjectIntegrity IntegrityLevel // Subject's integrity level
	ObjectIntegrity  IntegrityLevel // Object's integrity level
	GenericMapping   map[uint32]uint32
}

// DefaultAccessCheckOptions returns a sensible default set of access check
// options, using the standard generic-rights mapping.
func DefaultAccessCheckOptions() *AccessCheckOptions {
	return &AccessCheckOptions{
		IgnoreObjectType: true,
		CheckIntegrity:   false,
		IntegrityPolicy:  PolicyNoWriteUp,
		GenericMapping: map[uint32]uint32{
			AccessMaskGenericRead:    AccessMaskReadControl,
			AccessMaskGenericWrite:   AccessMaskWriteDACL | AccessMaskWriteOwner,
			AccessMaskGenericExecute: AccessMaskSynchronize,
			AccessMaskGenericAll:     0xFFFFFFFF,
		},
	}
}

// AccessCheck simulates the Windows access-check algorithm: deny ACEs are
// evaluated before allow ACEs, and the first ACE matching the token wins
// for any given access bit.
func AccessCheck(securityDescriptor *NtSecurityDescriptor, token *TokenUser,
	desiredAccess uint32, options *AccessCheckOptions) *AccessCheckResult {

	result := &AccessCheckResult{
		Granted: false,
		Reason:  "",
		Access:  0,
		Details: make([]CheckDetails, 0),
	}

	if options == nil {
		options = DefaultAccessCheckOptions()
	}

	mappedAccess := MapGenericAccess(desiredAccess, options.GenericMapping)

	if options.CheckIntegrity {
		integrityCheck := options.SubjectIntegrity.CheckAccess(
			options.ObjectIntegrity,
			options.IntegrityPolicy,
			mappedAccess)

		result.Details = append(result.Details, CheckDetails{
			Step: "IntegrityLevel",
			Description: fmt.Sprintf("Checking if integrity level %s can access %s with policy %d",
				options.SubjectIntegrity, options.ObjectIntegrity, options.IntegrityPolicy),
			Outcome: integrityCheck,
		})

		if !integrityCheck {
			result.Reason = "Access denied by integrity level policy"
			return result
		}
	}

	if len(securityDescriptor.DACL.Aces) == 0 {
		result.Granted = true
		result.Reason = "No DACL present (full access)"
		result.Access = mappedAccess

		result.Details = append(result.Details, CheckDetails{
			Step:        "EmptyDACL",
			Description: "No DACL present; full access granted",
			Outcome:     true,
		})

		return result
	}

	isOwner := token.UserSID.String() == securityDescriptor.Owner.String()
	ownerRights := uint32(AccessMaskReadControl | AccessMaskWriteDACL)

	result.Details = append(result.Details, CheckDetails{
		Step:        "OwnerCheck",
		Description: fmt.Sprintf("Checking if user is owner: %v", isOwner),
		Outcome:     isOwner,
	})

	if isOwner && (mappedAccess & ^ownerRights) == 0 {
		result.Granted = true
		result.Reason = "Access granted to owner"
		result.Access = mappedAccess & ownerRights

		result.Details = append(result.Details, CheckDetails{
			Step:        "OwnerRights",
			Description: "Access granted based on ownership",
			Outcome:     true,
		})

		return result
	}

	grantedAccess := uint32(0)
	deniedAccess := uint32(0)

	for i, ace := range securityDescriptor.DACL.Aces {
		if ace.Header.Type != AceTypeAccessDenied {
			continue
		}

		applies, reason := aceAppliesToToken(ace, token, options)

		result.Details = append(result.Details, CheckDetails{
			Step:        fmt.Sprintf("DenyACE[%d]", i),
			Description: fmt.Sprintf("Checking if deny ACE applies: %v - %s", applies, reason),
			Outcome:     applies,
		})

		if applies {
			aceMappedAccess := MapGenericAccess(ace.AccessMask.Raw(), options.GenericMapping)

			if aceMappedAccess&mappedAccess != 0 {
				result.Reason = fmt.Sprintf("Access explicitly denied by ACE %d", i)
				deniedAccess |= (aceMappedAccess & mappedAccess)

				result.Details = append(result.Details, CheckDetails{
					Step:        fmt.Sprintf("DenyACE[%d]Match", i),
					Description: fmt.Sprintf("Access denied by ACE - access mask 0x%08X", aceMappedAccess&mappedAccess),
					Outcome:     false,
				})

				if deniedAccess == mappedAccess {
					ace := ace
					result.Ace = &ace
					return result
				}
			}
		}
	}

	for i, ace := range securityDescriptor.DACL.Aces {
		if ace.Header.Type != AceTypeAccessAllowed {
			continue
		}

		applies, reason := aceAppliesToToken(ace, token, options)

		result.Details = append(result.Details, CheckDetails{
			Step:        fmt.Sprintf("AllowACE[%d]", i),
			Description: fmt.Sprintf("Checking if allow ACE applies: %v - %s", applies, reason),
			Outcome:     applies,
		})

		if applies {
			aceMappedAccess := MapGenericAccess(ace.AccessMask.Raw(), options.GenericMapping)

			allowedByThisAce := aceMappedAccess & mappedAccess & ^deniedAccess

			if allowedByThisAce != 0 {
				grantedAccess |= allowedByThisAce

				result.Details = append(result.Details, CheckDetails{
					Step:        fmt.Sprintf("AllowACE[%d]Match", i),
					Description: fmt.Sprintf("Access allowed by ACE - access mask 0x%08X", allowedByThisAce),
					Outcome:     true,
				})

				if (grantedAccess | deniedAccess) == mappedAccess {
					break
				}
			}
		}
	}

	remainingAccess := mappedAccess & ^(grantedAccess | deniedAccess)

	if remainingAccess == 0 && grantedAccess == mappedAccess {
		result.Granted = true
		result.Reason = "Access granted by ACL"
		result.Access = grantedAccess

		result.Details = append(result.Details, CheckDetails{
			Step:        "FinalDecision",
			Description: "All requested access rights were granted",
			Outcome:     true,
		})
	} else {
		result.Granted = false

		if deniedAccess != 0 {
			result.Reason = "Some requested access was explicitly denied"
		} else {
			result.Reason = "Some requested access was not granted by any ACE"
		}

		result.Access = grantedAccess

		result.Details = append(result.Details, CheckDetails{
			Step: "FinalDecision",
			Description: fmt.Sprintf(
				"Access partially granted: requested=%08X, granted=%08X, denied=%08X, unmatched=%08X",
				mappedAccess, grantedAccess, deniedAccess, remainingAccess),
			Outcome: false,
		})
	}

	return result
}

// aceAppliesToToken determines if an ACE's principal matches the token's
// user SID, one of its group SIDs, or the well-known Everyone SID.
func aceAppliesToToken(ace ACE, token *TokenUser, options *AccessCheckOptions) (bool, string) {
	var aceSID SID

	switch oa := ace.ObjectAce.(type) {
	case BasicAce:
		aceSID = oa.SecurityIdentifier
	case AdvancedAce:
		aceSID = oa.SecurityIdentifier
		if !options.IgnoreObjectType {
			// Object-type-aware matching is not modeled; every object
			// ACE is treated as applying regardless of ObjectType.
		}
	default:
		return false, "Unknown ACE object type"
	}

	aceSIDStr := aceSID.String()

	if aceSIDStr == "S-1-1-0" {
		return true, "Everyone SID matches all tokens"
	}

	if aceSIDStr == token.UserSID.String() {
		return true, "Directly matches user SID"
	}

	for _, group := range token.Groups {
		if aceSIDStr == group.String() {
			return true, "Matches a group SID"
		}
	}

	return false, "No SID match found"
}

// MapGenericAccess expands any generic access rights present in access
// into their mapped specific rights.
func MapGenericAccess(access uint32, mapping map[uint32]uint32) uint32 {
	if mapping == nil {
		return access
	}

	result := uint32(0)

	genericRights := []uint32{
		AccessMaskGenericRead,
		AccessMaskGenericWrite,
		AccessMaskGenericExecute,
		AccessMaskGenericAll,
	}

	for _, genericRight := range genericRights {
		if access&genericRight != 0 {
			if specificRights, ok := mapping[genericRight]; ok {
				result |= specificRights
				access &= ^genericRight
			}
		}
	}

	result |= access

	if result == 0 && access != 0 {
		return access
	}

	return result
}
