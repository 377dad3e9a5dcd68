package ntds

import "errors"

// Sentinel errors for construction-time and lookup failures, returned
// bare or wrapped (match them with errors.Is). Other construction
// failures, such as a cipher error while decrypting the PEK list, and a
// malformed descriptor in DecodeSecurityDescriptor come back as wrapped
// errors of their own. Every per-row failure during schema bootstrap,
// DN construction, or secret decryption is logged and skipped instead
// (see schema.go, dnbuilder.go, secret.go).
var (
	// ErrUnrecognizedPEKHeader is returned by LoadPekList when the
	// blob's 4-byte header does not match either known scheme.
	ErrUnrecognizedPEKHeader = errors.New("ntds: unrecognized PEK list header")

	// ErrPEKBlobTooShort is returned by LoadPekList when the blob is
	// too small to contain its own fixed header.
	ErrPEKBlobTooShort = errors.New("ntds: encrypted PEK blob too short")

	// ErrNoEncryptedPekList is returned by NtdsCore construction when
	// the schema pass located no PEK blob in any of the ADAM or
	// standard-AD slots (MissingContext).
	ErrNoEncryptedPekList = errors.New("ntds: schema pass found no encrypted PEK list")

	// ErrBootKeySize is returned when the supplied SYSKEY is not 16
	// bytes.
	ErrBootKeySize = errors.New("ntds: boot key must be 16 bytes")

	// ErrSecurityDescriptorNotFound is returned by
	// NtdsCore.DecodeSecurityDescriptor when sdID has no entry in the
	// security descriptor map built during schema bootstrap.
	ErrSecurityDescriptorNotFound = errors.New("ntds: no security descriptor for that id")
)
