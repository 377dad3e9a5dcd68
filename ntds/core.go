package ntds

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"iter"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sprocket-security/ntdsdump/ese"
	"github.com/sprocket-security/ntdsdump/winsec"
)

// AttributeName is the (common_name, ldap_name) pair a serialized
// record's values are keyed by.
type AttributeName struct {
	CommonName string
	LdapName   string
}

// SerializedValue is one cell of a serialized record: its display
// value (hex-encoded for raw bytes, decrypted secret forms for
// encrypted attributes) plus the classification that produced it.
type SerializedValue struct {
	Value any
	Kind  AttributeKind
}

// SerializedRecord is the output of NtdsCore.SerializeRecord: every
// column present in the row and resolvable against attribute_schema,
// keyed by its (common_name, ldap_name) pair.
type SerializedRecord map[AttributeName]SerializedValue

// NtdsCore is the orchestrator: it owns the schema maps, link
// adjacency, DN table, and PEK list built from a single pass over the
// database, and produces the iterator of decoded objects.
type NtdsCore struct {
	datatable ese.Table

	schema      SchemaMaps
	links       Links
	secDescs    map[string][]byte
	dntToDN     map[string][]string
	pekList     *PekList
	isADAM      bool
	kdsRootKeys []KdsRootKey

	logger zerolog.Logger

	// DecryptSecrets controls whether SerializeRecord runs
	// KindEncrypted columns through the PEK decryption pipeline.
	// Defaults to true; a caller that wants only the schema/DN walk
	// may set it false.
	DecryptSecrets bool
}

// NewNtdsCore runs the schema bootstrap, PEK list decryption, and DN
// construction passes over an already-open database and returns the
// assembled, read-only-after-init core. bootKey must be the 16-byte
// SYSKEY.
func NewNtdsCore(datatable, linktable, sdtable ese.Table, bootKey []byte, logger zerolog.Logger) (*NtdsCore, error) {
	if len(bootKey) != 16 {
		return nil, ErrBootKeySize
	}

	resolver := NewSchemaResolver(logger)
	result, err := resolver.Build(datatable, linktable, sdtable)
	if err != nil {
		return nil, fmt.Errorf("ntds: building schema: %w", err)
	}

	blob := selectPekBlob(result)
	if len(blob) == 0 {
		return nil, ErrNoEncryptedPekList
	}
	pekList, err := LoadPekList(blob, bootKey, logger)
	if err != nil {
		return nil, fmt.Errorf("ntds: loading pek list: %w", err)
	}

	dnBuilder := NewDnBuilder(logger)
	dntToDN := dnBuilder.Build(datatable, result.Maps.Attribute)

	kdsRootKeys := make([]KdsRootKey, 0, len(result.KdsRootKeys))
	for _, raw := range result.KdsRootKeys {
		kdsRootKeys = append(kdsRootKeys, NewKdsRootKey(raw))
	}

	return &NtdsCore{
		datatable:      datatable,
		schema:         result.Maps,
		links:          result.Links,
		secDescs:       result.SecurityDescriptors,
		dntToDN:        dntToDN,
		pekList:        pekList,
		isADAM:         result.IsADAM,
		kdsRootKeys:    kdsRootKeys,
		logger:         logger,
		DecryptSecrets: true,
	}, nil
}

func selectPekBlob(result SchemaResult) []byte {
	switch {
	case len(result.RawEncPekList) > 0:
		return result.RawEncPekList
	case len(result.RootPekList) > 0:
		return result.RootPekList
	case len(result.SchemaPekList) > 0:
		return result.SchemaPekList
	default:
		return nil
	}
}

// SchemaMaps returns the object-class and attribute schema maps built
// during init.
func (c *NtdsCore) SchemaMaps() SchemaMaps { return c.schema }

// Links returns the forward/reverse link adjacency built during init.
func (c *NtdsCore) Links() Links { return c.links }

// DntToDN returns the DNT -> DN table built during init.
func (c *NtdsCore) DntToDN() map[string][]string { return c.dntToDN }

// KdsRootKeys returns the catalogued KDS root key records.
func (c *NtdsCore) KdsRootKeys() []KdsRootKey { return c.kdsRootKeys }

// PekList returns the decrypted PEK list.
func (c *NtdsCore) PekList() *PekList { return c.pekList }

// IsADAM reports whether the schema pass located an AD LDS (ADAM) PEK
// slot rather than a standard AD DOMAIN_DNS one.
func (c *NtdsCore) IsADAM() bool { return c.isADAM }

// ExtractObjectIDName resolves a governsId / object-class numeric id
// to its (common_name, ldap_name) pair.
func (c *NtdsCore) ExtractObjectIDName(classID int64) (NameEntry, bool) {
	entry, ok := c.schema.ObjectClass.Resolve[classID]
	return entry, ok
}

// DecodeSecurityDescriptor decodes the security descriptor bytes
// catalogued under sdID during schema bootstrap. Decoding is lazy: it
// is not performed for every object during Dump, only on demand.
func (c *NtdsCore) DecodeSecurityDescriptor(sdID string) (winsec.NtSecurityDescriptor, error) {
	raw, ok := c.secDescs[sdID]
	if !ok {
		return winsec.NtSecurityDescriptor{}, ErrSecurityDescriptorNotFound
	}
	return winsec.NewNtSecurityDescriptor(raw)
}

// Dump walks datatable and yields each record's serialized form. When
// skipDeleted is true, records whose is_deleted column is truthy are
// omitted. A per-record serialization failure is logged and skipped;
// it never aborts the walk.
func (c *NtdsCore) Dump(skipDeleted bool) iter.Seq[SerializedRecord] {
	return func(yield func(SerializedRecord) bool) {
		for rec := range c.datatable.Records() {
			if skipDeleted {
				if del, ok := rec.Get(colIsDeleted); ok && truthy(del) {
					continue
				}
			}

			serialized, err := c.SerializeRecord(rec)
			if err != nil {
				c.logger.Warn().Str("table", "datatable").Err(err).Msg("failed to serialize record, skipped")
				continue
			}

			if !yield(serialized) {
				return
			}
		}
	}
}

// SerializeRecord projects one datatable row into its (common_name,
// ldap_name) keyed form. Byte values are hex-encoded; columns absent
// from attribute_schema.resolve are omitted. When DecryptSecrets is
// set, KindEncrypted columns are additionally run through the PEK
// decryption pipeline using the record's own RID when it carries one.
func (c *NtdsCore) SerializeRecord(rec ese.Record) (result SerializedRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ntds: panic serializing record: %v", r)
		}
	}()

	out := SerializedRecord{}

	var rid *uint32
	if c.DecryptSecrets {
		rid = c.ridForRecord(rec)
	}

	for col, val := range rec.AsMap() {
		entry, ok := c.schema.Attribute.Resolve[col]
		if !ok {
			continue
		}
		name := AttributeName{CommonName: entry.CommonName, LdapName: entry.LdapName}
		kind := ClassifyAttribute(entry.LdapName)

		if kind == KindEncrypted && c.DecryptSecrets && c.pekList != nil {
			if raw, ok := bytesValue(val); ok {
				isHistory, hasDES, _ := EncryptionParams(entry.LdapName)
				secret := c.pekList.DecryptSecret(raw, rid, isHistory, hasDES, c.isADAM)
				out[name] = SerializedValue{Value: secretDisplayValue(secret), Kind: kind}
				continue
			}
		}

		out[name] = SerializedValue{Value: hexOrPassthrough(val), Kind: kind}
	}

	return out, nil
}

// ridForRecord extracts the RID from a record's own objectSid column,
// when the attribute schema resolves that ldap name and the value
// parses as a well-formed SID.
func (c *NtdsCore) ridForRecord(rec ese.Record) *uint32 {
	col, ok := c.schema.Attribute.Ldap["objectSid"]
	if !ok {
		return nil
	}
	val, ok := rec.Get(col)
	if !ok {
		return nil
	}
	raw, ok := bytesValue(val)
	if !ok {
		return nil
	}
	sid, err := winsec.NewSID(bytes.NewBuffer(raw), len(raw))
	if err != nil {
		return nil
	}
	rid := sid.RID()
	return &rid
}

func hexOrPassthrough(v ese.Value) any {
	if b, ok := bytesValue(v); ok {
		return hexEncode(b)
	}
	return v
}

func secretDisplayValue(v SecretValue) any {
	if v.IsList() {
		return v.List()
	}
	return v.String()
}

func truthy(v ese.Value) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case int32:
		return t != 0
	case int:
		return t != 0
	case string:
		return t != "" && t != "0" && !strings.EqualFold(t, "false")
	default:
		return v != nil
	}
}

// UserProjection is the original source's NtdsUserRecord shape,
// offered as an optional convenience so callers do not have to
// hand-pick fields out of a SerializedRecord.
type UserProjection struct {
	RID      uint32
	Username string
	FullName string
	NTHash   string
	LMHash   string
}

// ProjectUser extracts the common user-account fields from a
// serialized record. ok is false when the record carries neither an
// objectSid nor a sAMAccountName, the minimum needed to call it a user
// projection.
func ProjectUser(serialized SerializedRecord) (UserProjection, bool) {
	find := func(ldap string) (SerializedValue, bool) {
		for name, v := range serialized {
			if name.LdapName == ldap {
				return v, true
			}
		}
		return SerializedValue{}, false
	}

	sidVal, hasSid := find("objectSid")
	userVal, hasUser := find("sAMAccountName")
	if !hasSid && !hasUser {
		return UserProjection{}, false
	}

	var proj UserProjection
	if hasSid {
		if s, ok := sidVal.Value.(string); ok {
			if raw, err := hex.DecodeString(s); err == nil {
				if sid, err := winsec.NewSID(bytes.NewBuffer(raw), len(raw)); err == nil {
					proj.RID = sid.RID()
				}
			}
		}
	}
	if hasUser {
		proj.Username, _ = userVal.Value.(string)
	}
	if fullNameVal, ok := find("displayName"); ok {
		proj.FullName, _ = fullNameVal.Value.(string)
	}
	if ntVal, ok := find("unicodePwd"); ok {
		proj.NTHash, _ = ntVal.Value.(string)
	}
	if lmVal, ok := find("dBCSPwd"); ok {
		proj.LMHash, _ = lmVal.Value.(string)
	}

	return proj, true
}
