package winsec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// WellKnownSIDsRE is a map of common Windows SIDs, as regex patterns,
// mapped to their corresponding description.
var WellKnownSIDsRE = map[string]string{
	"S-1-5-[0-9-]+-500":     "Administrator",
	"S-1-5-[0-9-]+-501":     "Guest",
	"S-1-5-[0-9-]+-502":     "KRBTGT",
	"S-1-5-[0-9-]+-512":     "Domain Admins",
	"S-1-5-[0-9-]+-513":     "Domain Users",
	"S-1-5-[0-9-]+-514":     "Domain Guests",
	"S-1-5-[0-9-]+-515":     "Domain Computers",
	"S-1-5-[0-9-]+-516":     "Domain Controllers",
	"S-1-5-[0-9-]+-517":     "Cert Publishers",
	"S-1-5-[0-9-]+-520":     "Group Policy Creator Owners",
	"S-1-5-5-[0-9]+-[0-9]+": "Logon Session",
	"S-1-5-21-[0-9-]+-518":  "Schema Admins",
	"S-1-5-21-[0-9-]+-519":  "Enterprise Admins",
	"S-1-5-21-[0-9-]+-553":  "RAS Servers",
}

// WellKnownSIDs is a map of common Windows SIDs mapped to their
// corresponding description.
var WellKnownSIDs = map[string]string{
	"S-1-0":              "Null Authority",
	"S-1-0-0":            "Nobody",
	"S-1-1":              "World Authority",
	"S-1-1-0":            "Everyone",
	"S-1-2":              "Local Authority",
	"S-1-3":              "Creator Authority",
	"S-1-3-0":            "Creator Owner",
	"S-1-3-1":            "Creator Group",
	"S-1-5":              "NT Authority",
	"S-1-5-7":            "Anonymous",
	"S-1-5-9":            "Enterprise Domain Controllers",
	"S-1-5-10":           "Principal Self",
	"S-1-5-11":           "Authenticated Users",
	"S-1-5-18":           "Local System",
	"S-1-5-19":           "Local Service",
	"S-1-5-20":           "Network Service",
	"S-1-5-21-0-0-0-498": "Enterprise Read-Only Domain Controllers Group",
	"S-1-5-21-0-0-0-500": "Local Administrator",
	"S-1-5-21-0-0-0-501": "Local Guest",
	"S-1-5-21-0-0-0-512": "Domain Admins",
	"S-1-5-21-0-0-0-513": "Domain Users",
	"S-1-5-21-0-0-0-518": "Schema Administrators",
	"S-1-5-21-0-0-0-519": "Enterprise Admins",
	"S-1-5-32-544":       "BUILTIN Administrators",
	"S-1-5-32-545":       "BUILTIN Users",
	"S-1-5-80":           "NT Service",
}

// SID represents a Windows Security Identifier in its parts, as laid out
// on the wire: a one-byte revision, a count of sub-authorities, a 6-byte
// identifier authority and the sub-authorities themselves.
type SID struct {
	Revision       byte
	NumAuthorities byte
	Authority      []byte
	SubAuthorities []uint32
}

// String returns the human-readable SID, e.g. "S-1-5-21-...-500".
func (s SID) String() string {
	var sb strings.Builder

	if len(s.Authority) < 6 {
		return ""
	}

	sb.Grow(50)
	fmt.Fprintf(&sb, "S-%v-%v", s.Revision, int(s.Authority[5]))
	for i := 0; i < int(s.NumAuthorities); i++ {
		fmt.Fprintf(&sb, "-%v", s.SubAuthorities[i])
	}

	return sb.String()
}

// RID returns the relative identifier of the SID: its final
// sub-authority, the value the secret decryption pipeline's RID-keyed DES
// unwrap is keyed from. Returns 0 for a SID with no sub-authorities.
func (s SID) RID() uint32 {
	if len(s.SubAuthorities) == 0 {
		return 0
	}
	return s.SubAuthorities[len(s.SubAuthorities)-1]
}

// NewSID is a constructor that will parse out a SID from a byte buffer.
func NewSID(buf *bytes.Buffer, sidLength int) (SID, error) {
	sid := SID{}
	data := buf.Next(sidLength)

	if len(data) < 8 {
		return sid, SIDInvalidError{"SID data too short"}
	}

	revision := data[0]
	if revision != 1 {
		return sid, SIDInvalidError{"invalid SID revision"}
	}

	numAuth := data[1]
	if numAuth > 15 {
		return sid, SIDInvalidError{"invalid number of subauthorities"}
	}

	expectedLength := 8 + (int(numAuth) * 4)
	if len(data) < expectedLength {
		return sid, SIDInvalidError{"SID data too short for subauthorities"}
	}

	authority := data[2:8]
	subAuth := make([]uint32, numAuth)
	for i := 0; i < int(numAuth); i++ {
		offset := 8 + (i * 4)
		subAuth[i] = binary.LittleEndian.Uint32(data[offset : offset+4])
	}

	sid.Revision = revision
	sid.Authority = authority
	sid.NumAuthorities = numAuth
	sid.SubAuthorities = subAuth

	return sid, nil
}

// NewSIDFromString creates a SID from its string representation, e.g.
// "S-1-5-21-1234567890-1234567890-1234567890-1001".
func NewSIDFromString(sidStr string) (SID, error) {
	parts := strings.Split(sidStr, "-")
	if len(parts) < 3 {
		return SID{}, SIDInvalidError{"invalid SID format"}
	}

	if parts[0] != "S" {
		return SID{}, SIDInvalidError{"SID must start with S-"}
	}

	revision, err := strconv.Atoi(parts[1])
	if err != nil {
		return SID{}, SIDInvalidError{"invalid revision"}
	}

	authority, err := strconv.Atoi(parts[2])
	if err != nil {
		return SID{}, SIDInvalidError{"invalid authority"}
	}

	authorityBytes := make([]byte, 6)
	authorityBytes[5] = byte(authority)

	subAuthorities := make([]uint32, len(parts)-3)
	for i := 3; i < len(parts); i++ {
		val, err := strconv.ParseUint(parts[i], 10, 32)
		if err != nil {
			return SID{}, SIDInvalidError{fmt.Sprintf("invalid sub-authority at index %d", i-3)}
		}
		subAuthorities[i-3] = uint32(val)
	}

	return SID{
		Revision:       byte(revision),
		NumAuthorities: byte(len(subAuthorities)),
		Authority:      authorityBytes,
		SubAuthorities: subAuthorities,
	}, nil
}

// Resolve returns the human readable description of a SID. If one does
// not exist, it returns the normal "S-1-..." notation instead.
func (s SID) Resolve() string {
	s1 := s.String()

	if resolved, ok := WellKnownSIDs[s1]; ok {
		return resolved
	}

	for pattern, name := range WellKnownSIDsRE {
		if match, err := regexp.MatchString(pattern, s1); err == nil && match {
			return name
		}
	}

	return s1
}

// SIDInvalidError represents errors that occur when parsing invalid SID
// data.
type SIDInvalidError struct{ msg string }

func (e SIDInvalidError) Error() string {
	return fmt.Sprintf("NewSID: %s", e.msg)
}
