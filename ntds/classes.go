package ntds

import "github.com/google/uuid"

// SAM_ACCOUNT_TYPE values, frozen wire constants.
const (
	SamDomainObject             = 0x0
	SamGroupObject               = 0x10000000
	SamNonSecurityGroupObject    = 0x10000001
	SamAliasObject               = 0x20000000
	SamNonSecurityAliasObject    = 0x20000001
	SamUserObject                = 0x30000000
	SamNormalUserAccount         = 0x30000000
	SamMachineAccount            = 0x30000001
	SamTrustAccount              = 0x30000002
	SamAppBasicGroup             = 0x40000000
	SamAppQueryGroup             = 0x40000001
	SamAccountTypeMax            = 0x7FFFFFFF
)

// USER_ACCOUNT_CONTROL bit flags, frozen wire constants.
const (
	UacScript                       = 0x0001
	UacAccountDisable               = 0x0002
	UacHomedirRequired              = 0x0008
	UacLockout                      = 0x0010
	UacPasswdNotreqd                = 0x0020
	UacPasswdCantChange             = 0x0040
	UacEncryptedTextPwdAllowed      = 0x0080
	UacTempDuplicateAccount         = 0x0100
	UacNormalAccount                = 0x0200
	UacInterdomainTrustAccount      = 0x0800
	UacWorkstationTrustAccount      = 0x1000
	UacServerTrustAccount           = 0x2000
	UacDontExpirePassword           = 0x10000
	UacMnsLogonAccount              = 0x20000
	UacSmartcardRequired            = 0x40000
	UacTrustedForDelegation         = 0x80000
	UacNotDelegated                 = 0x100000
	UacUseDesKeyOnly                = 0x200000
	UacDontReqPreauth               = 0x400000
	UacPasswordExpired              = 0x800000
	UacTrustedToAuthForDelegation   = 0x1000000
	UacPartialSecretsAccount        = 0x04000000
)

// kerberosTypeNames maps an encryption type number to its display name,
// frozen from the original source's KERBEROS_TYPE table.
var kerberosTypeNames = map[int64]string{
	1:          "dec-cbc-crc",
	3:          "des-cbc-md5",
	17:         "aes128-cts-hmac-sha1-96",
	18:         "aes256-cts-hmac-sha1-96",
	0xFFFFFF74: "rc4_hmac",
}

// KerberosTypeName returns the display name for a Kerberos encryption
// type number, and false if the number is not one of the frozen types.
func KerberosTypeName(etype int64) (string, bool) {
	name, ok := kerberosTypeNames[etype]
	return name, ok
}

// KdsRootKey is a typed projection of a serialized KDS_PROV_ROOT_KEY
// record. Only the identity and raw payload are modeled; the
// msKds-KDFAlgorithmID family of attributes stays opaque because this
// module does no MS-GKDI key unwrap.
type KdsRootKey struct {
	ID  uuid.UUID
	Raw RawRecord
}

// NewKdsRootKey builds a KdsRootKey from a raw catalogued record. ID is
// parsed from the record's "cn" attribute when present and well-formed;
// otherwise ID is the zero UUID and raw is still retained.
func NewKdsRootKey(raw RawRecord) KdsRootKey {
	k := KdsRootKey{Raw: raw}
	cn, ok := raw["cn"]
	if !ok {
		return k
	}
	s, ok := stringValue(cn)
	if !ok {
		return k
	}
	if id, err := uuid.Parse(s); err == nil {
		k.ID = id
	}
	return k
}
