package ntds

// AttributeKind classifies a resolved LDAP attribute name for
// serialization purposes.
type AttributeKind int

const (
	KindPlain AttributeKind = iota
	KindGUID
	KindDateTime
	KindFileTime
	KindEncrypted
)

func (k AttributeKind) String() string {
	switch k {
	case KindGUID:
		return "guid"
	case KindDateTime:
		return "datetime"
	case KindFileTime:
		return "filetime"
	case KindEncrypted:
		return "encrypted"
	default:
		return "plain"
	}
}

// uuidFields are ldap names whose value is a raw GUID blob.
var uuidFields = map[string]bool{
	"objectGUID":             true,
	"currentValue":           true,
	"msFVE-RecoveryGuid":     true,
	"msFVE-VolumeGuid":       true,
	"schemaIDGUID":           true,
	"mS-DS-ConsistencyGuid":  true,
}

var datetimeFields = map[string]bool{
	"dSCorePropagationData": true,
	"whenChanged":           true,
	"whenCreated":           true,
}

var filetimeFields = map[string]bool{
	"badPasswordTime":     true,
	"lastLogon":           true,
	"lastLogoff":          true,
	"lastLogonTimestamp":  true,
	"pwdLastSet":          true,
	"accountExpires":      true,
	"lockoutTime":         true,
	"priorSetTime":        true,
	"lastSetTime":         true,
	"msKds-CreateTime":    true,
	"msKds-UseStartTime":  true,
}

// encryptedField carries the (isHistory, hasDES) pair the secret
// decryption pipeline needs for a given encrypted attribute.
type encryptedField struct {
	isHistory bool
	hasDES    bool
}

var encryptedFields = map[string]encryptedField{
	"unicodePwd":        {isHistory: false, hasDES: true},
	"dBCSPwd":           {isHistory: false, hasDES: true},
	"ntPwdHistory":      {isHistory: true, hasDES: true},
	"lmPwdHistory":      {isHistory: true, hasDES: true},
	"currentValue":      {isHistory: false, hasDES: false},
	"trustAuthIncoming": {isHistory: false, hasDES: false},
	"trustAuthOutgoing": {isHistory: false, hasDES: false},
}

// ClassifyAttribute returns the AttributeKind of an LDAP name. An LDAP
// name not present in any of the frozen tables classifies as
// KindPlain; no heuristics are applied.
func ClassifyAttribute(ldapName string) AttributeKind {
	if _, ok := encryptedFields[ldapName]; ok {
		return KindEncrypted
	}
	if uuidFields[ldapName] {
		return KindGUID
	}
	if filetimeFields[ldapName] {
		return KindFileTime
	}
	if datetimeFields[ldapName] {
		return KindDateTime
	}
	return KindPlain
}

// EncryptionParams looks up the (isHistory, hasDES) pair for ldapName
// in ENCRYPTED_FIELDS. ok is false when ldapName is not an encrypted
// attribute.
func EncryptionParams(ldapName string) (isHistory, hasDES, ok bool) {
	field, found := encryptedFields[ldapName]
	if !found {
		return false, false, false
	}
	return field.isHistory, field.hasDES, true
}
