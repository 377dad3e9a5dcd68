package ntds

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sprocket-security/ntdsdump/ese"
)

// buildTestFixture assembles a minimal self-describing datatable: a
// CLASS_SCHEMA row defining "user", ATTRIBUTE_SCHEMA rows resolving
// sAMAccountName/unicodePwd/objectSid to their ATT columns,
// a DOMAIN_DNS row carrying the PEK blob, and one user record with an
// encrypted unicodePwd attribute, plus a second, deleted record.
func buildTestFixture(t *testing.T) (ese.Table, []byte, []byte) {
	t.Helper()

	bootKey := bytes.Repeat([]byte{0x00}, 16)
	keyMaterial := bytes.Repeat([]byte{0x11}, 16)
	pek := bytes.Repeat([]byte{0x5A}, 16)
	pekBlob := buildSchemeABlob(bootKey, keyMaterial, pek)

	salt := bytes.Repeat([]byte{0xBB}, 16)
	ntHash := bytes.Repeat([]byte{0xCC}, 16)
	rid := uint32(1337)
	k1, k2 := deriveDESKeys(rid)
	wrapped := make([]byte, 16)
	first, err := desECBEncryptBlock(k1, ntHash[:8])
	require.NoError(t, err)
	second, err := desECBEncryptBlock(k2, ntHash[8:])
	require.NoError(t, err)
	copy(wrapped[:8], first)
	copy(wrapped[8:], second)
	encryptedPwd := buildAESSecret(0, salt, pek, wrapped)

	objectSidBytes := []byte{
		0x01, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x05,
		0x39, 0x05, 0x00, 0x00,
	}
	objectSidBytes = append(objectSidBytes, byte(rid), byte(rid>>8), byte(rid>>16), byte(rid>>24))

	classSchemaRow := ese.NewMemoryRecord(map[string]ese.Value{
		colObjectClass:       int64(ClassSchemaID),
		colGovernsID:         int64(513),
		colAttributeNameLDAP: "user",
		colAttributeNameCN:   "User",
	})

	attrRows := []struct {
		ldap string
		cn   string
		col  string
		id   int64
	}{
		{"sAMAccountName", "SAM-Account-Name", "ATTm590045", 590045},
		{"unicodePwd", "Unicode-Pwd", "ATTk589914", 589914},
		{"objectSid", "Object-Sid", "ATTr589970", 589970},
	}

	var attrSchemaRows []ese.Record
	for _, a := range attrRows {
		attrSchemaRows = append(attrSchemaRows, ese.NewMemoryRecord(map[string]ese.Value{
			colObjectClass:       int64(AttributeSchemaID),
			colAttributeID:       a.id,
			colAttributeNameLDAP: a.ldap,
			colAttributeNameCN:   a.cn,
		}))
	}

	domainDNSRow := ese.NewMemoryRecord(map[string]ese.Value{
		colObjectClass: int64(DomainDNSID),
		colPekList:     pekBlob,
	})

	userRow := ese.NewMemoryRecord(map[string]ese.Value{
		colObjectClass: int64(513),
		colRDN:         "alice",
		colDNT:         int64(100),
		colPDNT:        int64(1),
		colIsDeleted:   false,
		"ATTm590045":   "alice",
		"ATTk589914":   encryptedPwd,
		"ATTr589970":   objectSidBytes,
	})

	deletedRow := ese.NewMemoryRecord(map[string]ese.Value{
		colObjectClass: int64(513),
		colRDN:         "bob",
		colDNT:         int64(101),
		colPDNT:        int64(1),
		colIsDeleted:   true,
		"ATTm590045":   "bob",
	})

	records := append([]ese.Record{classSchemaRow}, attrSchemaRows...)
	records = append(records, domainDNSRow, userRow, deletedRow)

	columns := []string{"ATTm590045", "ATTk589914", "ATTr589970"}
	datatable := ese.NewMemoryTable("datatable", columns, records)

	return datatable, bootKey, ntHash
}

func TestNtdsCoreDumpDecryptsSecretAndSkipsDeleted(t *testing.T) {
	r := require.New(t)

	datatable, bootKey, ntHash := buildTestFixture(t)

	core, err := NewNtdsCore(datatable, nil, nil, bootKey, zerolog.Nop())
	r.NoError(err)
	r.False(core.IsADAM())

	var serialized []SerializedRecord
	for rec := range core.Dump(true) {
		serialized = append(serialized, rec)
	}
	// The class-schema, three attribute-schema and domain rows are emitted
	// too (with no resolvable columns); only the deleted bob row is
	// skipped, so alice is the sixth and last record.
	r.Len(serialized, 6)

	rec := serialized[5]
	pwd, ok := rec[AttributeName{CommonName: "Unicode-Pwd", LdapName: "unicodePwd"}]
	r.True(ok)
	r.Equal(KindEncrypted, pwd.Kind)
	r.Equal(hexEncode(ntHash), pwd.Value)

	sam, ok := rec[AttributeName{CommonName: "SAM-Account-Name", LdapName: "sAMAccountName"}]
	r.True(ok)
	r.Equal("alice", sam.Value)
}

func TestNtdsCoreDumpWithoutSkipDeletedEmitsBoth(t *testing.T) {
	r := require.New(t)

	datatable, bootKey, _ := buildTestFixture(t)

	core, err := NewNtdsCore(datatable, nil, nil, bootKey, zerolog.Nop())
	r.NoError(err)

	samName := AttributeName{CommonName: "SAM-Account-Name", LdapName: "sAMAccountName"}
	count, users := 0, 0
	for rec := range core.Dump(false) {
		count++
		if _, ok := rec[samName]; ok {
			users++
		}
	}
	// Five schema/domain rows plus both user rows, alice and the deleted bob.
	r.Equal(7, count)
	r.Equal(2, users)
}

func TestNtdsCoreExtractObjectIDName(t *testing.T) {
	r := require.New(t)

	datatable, bootKey, _ := buildTestFixture(t)

	core, err := NewNtdsCore(datatable, nil, nil, bootKey, zerolog.Nop())
	r.NoError(err)

	entry, ok := core.ExtractObjectIDName(513)
	r.True(ok)
	r.Equal(NameEntry{CommonName: "User", LdapName: "user"}, entry)

	_, ok = core.ExtractObjectIDName(999999)
	r.False(ok)
}

func TestNtdsCoreDecodeSecurityDescriptorNotFound(t *testing.T) {
	r := require.New(t)

	datatable, bootKey, _ := buildTestFixture(t)

	core, err := NewNtdsCore(datatable, nil, nil, bootKey, zerolog.Nop())
	r.NoError(err)

	_, err = core.DecodeSecurityDescriptor("does-not-exist")
	r.ErrorIs(err, ErrSecurityDescriptorNotFound)
}

func TestNewNtdsCoreRejectsBadBootKeySize(t *testing.T) {
	r := require.New(t)

	datatable, _, _ := buildTestFixture(t)

	_, err := NewNtdsCore(datatable, nil, nil, []byte{0x01, 0x02}, zerolog.Nop())
	r.ErrorIs(err, ErrBootKeySize)
}

func TestProjectUserExtractsFields(t *testing.T) {
	r := require.New(t)

	serialized := SerializedRecord{
		AttributeName{CommonName: "SAM-Account-Name", LdapName: "sAMAccountName"}: {Value: "alice", Kind: KindPlain},
		AttributeName{CommonName: "Unicode-Pwd", LdapName: "unicodePwd"}:          {Value: "deadbeef", Kind: KindEncrypted},
	}

	proj, ok := ProjectUser(serialized)
	r.True(ok)
	r.Equal("alice", proj.Username)
	r.Equal("deadbeef", proj.NTHash)
}

func TestProjectUserFalseWithoutIdentity(t *testing.T) {
	r := require.New(t)

	_, ok := ProjectUser(SerializedRecord{})
	r.False(ok)
}
