package ntds

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sprocket-security/ntdsdump/ese"
)

// Well-known internal column names, used during schema bootstrap
// before the general numeric-id mapping exists.
const (
	colRDN                = "rdn"
	colPekList            = "pek_list"
	colAttributeID        = "attribute_id"
	colAttributeNameLDAP  = "attribute_name_ldap"
	colAttributeNameCN    = "attribute_name_common_name"
	colAttributeNameDN    = "attribute_name_distinguished_name"
	colMsDsIntID          = "ms_ds_int_id"
	colSamAccountType     = "sam_account_type"
	colUserAccountControl = "user_account_control"
	colGovernsID          = "governs_id"
	colObjectClass        = "object_class"
	colLinkID             = "link_id"
	colIsDeleted          = "is_deleted"
)

// Well-known object-class IDs, frozen by the specification.
const (
	ClassSchemaID     = 196621
	AttributeSchemaID = 196622
	DomainDNSID       = 655427
	DMDID             = 196617
	TopID             = 65536
	ConfigurationID   = 655372
	KdsProvRootKeyID  = 655638
)

// NameEntry is the (common_name, ldap_name) pair a schema lookup
// resolves to.
type NameEntry struct {
	CommonName string
	LdapName   string
}

// ObjectClassSchema is the bidirectional view over governsId <->
// (common_name, ldap_name) built from CLASS_SCHEMA rows.
type ObjectClassSchema struct {
	Resolve    map[int64]NameEntry
	Ldap       map[string]int64
	CommonName map[string]int64
}

func newObjectClassSchema() ObjectClassSchema {
	return ObjectClassSchema{
		Resolve:    map[int64]NameEntry{},
		Ldap:       map[string]int64{},
		CommonName: map[string]int64{},
	}
}

func (s *ObjectClassSchema) add(governsID int64, entry NameEntry) {
	s.Resolve[governsID] = entry
	s.Ldap[entry.LdapName] = governsID
	s.CommonName[entry.CommonName] = governsID
}

// UnresolvedAttribute records an ATTRIBUTE_SCHEMA row whose backing
// datatable column could not be located by attribute_id or
// ms_ds_int_id.
type UnresolvedAttribute struct {
	AttributeIDOrInternal string
	MsDsIntIDOrInternal   string
	CommonName            string
}

// AttributeSchema is the set of bidirectional views over internal
// column name <-> (common_name, ldap_name), plus the link-id index and
// the unresolved bucket, built from ATTRIBUTE_SCHEMA rows.
type AttributeSchema struct {
	Resolve    map[string]NameEntry
	Ldap       map[string]string
	CommonName map[string]string
	Links      map[int64]NameEntry
	Unresolved map[string]UnresolvedAttribute
}

func newAttributeSchema() AttributeSchema {
	return AttributeSchema{
		Resolve:    map[string]NameEntry{},
		Ldap:       map[string]string{},
		CommonName: map[string]string{},
		Links:      map[int64]NameEntry{},
		Unresolved: map[string]UnresolvedAttribute{},
	}
}

func (s *AttributeSchema) add(internalCol string, entry NameEntry) {
	s.Resolve[internalCol] = entry
	s.Ldap[entry.LdapName] = internalCol
	s.CommonName[entry.CommonName] = internalCol
}

// SchemaMaps is the complete set of lookup tables the schema resolver
// produces from a single bootstrap pass over datatable.
type SchemaMaps struct {
	ObjectClass             ObjectClassSchema
	Attribute               AttributeSchema
	DatatableColumnsMapping map[int64]string
}

// LinkEntry is one row of link_table, stored under both its forward
// and backward adjacency key.
type LinkEntry struct {
	PeerDNT          int64
	LinkBase         int64
	LinkDelTime      ese.Value
	LinkDeactiveTime ese.Value
	LinkData         ese.Value
}

// Links is the forward/reverse adjacency built from link_table.
type Links struct {
	To   map[string][]LinkEntry
	From map[string][]LinkEntry
}

func newLinks() Links {
	return Links{To: map[string][]LinkEntry{}, From: map[string][]LinkEntry{}}
}

// RawRecord is a snapshot of a datatable row's populated columns,
// retained past the iteration step that produced it (used for
// kds_root_keys, which the specification keeps around for downstream
// consumption without itself interpreting).
type RawRecord map[string]ese.Value

// SchemaResult is everything SchemaResolver.Build produces in one
// bootstrap pass: the schema maps, link adjacency, the raw security
// descriptor bytes keyed by sd_id, the located encrypted PEK blob(s),
// and the catalogued KDS root key rows.
type SchemaResult struct {
	Maps                SchemaMaps
	Links               Links
	SecurityDescriptors map[string][]byte
	RawEncPekList       []byte
	RootPekList         []byte
	SchemaPekList       []byte
	IsADAM              bool
	KdsRootKeys         []RawRecord
}

// SchemaResolver performs the two-pass walk of datatable, link_table,
// and sd_table that makes the rest of the opaque, self-describing
// database interpretable.
type SchemaResolver struct {
	logger zerolog.Logger
}

// NewSchemaResolver builds a SchemaResolver. A zero Logger is treated
// as zerolog.Nop().
func NewSchemaResolver(logger zerolog.Logger) *SchemaResolver {
	return &SchemaResolver{logger: logger}
}

// Build runs the full bootstrap pass described in the specification:
// seed the numeric-id mapping from datatable's columns, absorb
// sd_table and link_table, then classify every datatable row by
// object class and dispatch into the schema maps, PEK blob slots, or
// the KDS root key catalogue.
func (r *SchemaResolver) Build(datatable, linktable, sdtable ese.Table) (SchemaResult, error) {
	result := SchemaResult{
		Maps: SchemaMaps{
			ObjectClass:             newObjectClassSchema(),
			Attribute:               newAttributeSchema(),
			DatatableColumnsMapping: map[int64]string{},
		},
		Links:               newLinks(),
		SecurityDescriptors: map[string][]byte{},
	}

	r.seedColumnMapping(datatable, &result.Maps)

	if sdtable != nil {
		r.absorbSDTable(sdtable, result.SecurityDescriptors)
	}
	if linktable != nil {
		r.absorbLinkTable(linktable, &result.Links)
	}

	pekBlobSet := false
	for rec := range datatable.Records() {
		r.dispatchRecord(rec, &result, &pekBlobSet)
	}

	return result, nil
}

// seedColumnMapping parses every ATT<kind><id> column name on
// datatable and records numeric_id -> column_name.
func (r *SchemaResolver) seedColumnMapping(datatable ese.Table, maps *SchemaMaps) {
	for _, col := range datatable.ColumnNames() {
		if !strings.HasPrefix(col, "ATT") {
			continue
		}
		digits := trailingDigits(col)
		if digits == "" {
			r.logger.Warn().Str("table", "datatable").Str("column", col).
				Msg("ATT-prefixed column has no trailing numeric id")
			continue
		}
		id, err := strconv.ParseUint(digits, 10, 32)
		if err != nil {
			r.logger.Warn().Str("table", "datatable").Str("column", col).Err(err).
				Msg("failed to parse column id")
			continue
		}
		maps.DatatableColumnsMapping[int64(id)] = col
	}
}

// trailingDigits strips kind letters from an ATT-name, returning the
// longest decimal suffix, e.g. "ATTm131532" -> "131532".
func trailingDigits(col string) string {
	i := len(col)
	for i > 0 && col[i-1] >= '0' && col[i-1] <= '9' {
		i--
	}
	return col[i:]
}

func (r *SchemaResolver) absorbSDTable(sdtable ese.Table, out map[string][]byte) {
	for rec := range sdtable.Records() {
		id, ok := rec.Get("sd_id")
		if !ok {
			r.logger.Warn().Str("table", "sd_table").Msg("row missing sd_id, skipped")
			continue
		}
		val, ok := rec.Get("sd_value")
		if !ok {
			r.logger.Warn().Str("table", "sd_table").Interface("sd_id", id).
				Msg("row missing sd_value, skipped")
			continue
		}
		raw, ok := val.([]byte)
		if !ok {
			r.logger.Warn().Str("table", "sd_table").Interface("sd_id", id).
				Msg("sd_value is not byte data, skipped")
			continue
		}
		out[valueKey(id)] = raw
	}
}

func (r *SchemaResolver) absorbLinkTable(linktable ese.Table, links *Links) {
	for rec := range linktable.Records() {
		linkDNT, ok := asInt64(getValue(rec, "link_DNT"))
		if !ok {
			r.logger.Warn().Str("table", "link_table").Msg("row missing link_DNT, skipped")
			continue
		}
		backlinkDNT, ok := asInt64(getValue(rec, "backlink_DNT"))
		if !ok {
			r.logger.Warn().Str("table", "link_table").Msg("row missing backlink_DNT, skipped")
			continue
		}
		linkBase, _ := asInt64(getValue(rec, "link_base"))

		entry := LinkEntry{
			PeerDNT:          linkDNT,
			LinkBase:         linkBase,
			LinkDelTime:      getValue(rec, "link_deltime"),
			LinkDeactiveTime: getValue(rec, "link_deactivetime"),
			LinkData:         getValue(rec, "link_data"),
		}
		toKey := strconv.FormatInt(backlinkDNT, 10)
		links.To[toKey] = append(links.To[toKey], entry)

		fromEntry := entry
		fromEntry.PeerDNT = backlinkDNT
		fromKey := strconv.FormatInt(linkDNT, 10)
		links.From[fromKey] = append(links.From[fromKey], fromEntry)
	}
}

// dispatchRecord classifies one datatable row by object class and
// updates result accordingly. Exactly one branch applies per the
// mutual-exclusion rule in the specification; a record with no
// matching class is ignored.
func (r *SchemaResolver) dispatchRecord(rec ese.Record, result *SchemaResult, pekBlobSet *bool) {
	classes := GetObjectClass(rec)

	switch {
	case containsClass(classes, ClassSchemaID):
		r.dispatchClassSchema(rec, &result.Maps.ObjectClass)

	case containsClass(classes, AttributeSchemaID):
		r.dispatchAttributeSchema(rec, &result.Maps)

	case containsClass(classes, DomainDNSID):
		if blob, ok := bytesValue(getValue(rec, colPekList)); ok && !*pekBlobSet {
			result.RawEncPekList = blob
			result.IsADAM = false
			*pekBlobSet = true
		}

	case isExactlyTop(classes):
		if blob, ok := bytesValue(getValue(rec, colPekList)); ok {
			result.RootPekList = blob
			result.IsADAM = true
		}

	case containsClass(classes, DMDID):
		if blob, ok := bytesValue(getValue(rec, colPekList)); ok {
			result.SchemaPekList = blob
			result.IsADAM = true
		}

	case containsClass(classes, ConfigurationID):
		if blob, ok := bytesValue(getValue(rec, colPekList)); ok && !*pekBlobSet {
			result.RawEncPekList = blob
			result.IsADAM = true
			*pekBlobSet = true
		}

	case containsClass(classes, KdsProvRootKeyID):
		result.KdsRootKeys = append(result.KdsRootKeys, RawRecord(rec.AsMap()))
	}
}

func (r *SchemaResolver) dispatchClassSchema(rec ese.Record, schema *ObjectClassSchema) {
	governsID, ok := asInt64(getValue(rec, colGovernsID))
	if !ok {
		r.logger.Warn().Str("table", "datatable").Msg("CLASS_SCHEMA row missing governs_id, skipped")
		return
	}
	ldap, _ := stringValue(getValue(rec, colAttributeNameLDAP))
	common, _ := stringValue(getValue(rec, colAttributeNameCN))
	schema.add(governsID, NameEntry{CommonName: common, LdapName: ldap})
}

func (r *SchemaResolver) dispatchAttributeSchema(rec ese.Record, maps *SchemaMaps) {
	ldap, _ := stringValue(getValue(rec, colAttributeNameLDAP))
	common, _ := stringValue(getValue(rec, colAttributeNameCN))
	entry := NameEntry{CommonName: common, LdapName: ldap}

	if linkID, ok := asInt64(getValue(rec, colLinkID)); ok {
		maps.Attribute.Links[linkID] = entry
	}

	attrID, hasAttrID := asInt64(getValue(rec, colAttributeID))
	msDsIntID, hasMsDsIntID := asInt64(getValue(rec, colMsDsIntID))

	switch {
	case hasAttrID:
		if col, ok := maps.DatatableColumnsMapping[attrID]; ok {
			maps.Attribute.add(col, entry)
			return
		}
		fallthrough
	case hasMsDsIntID:
		if col, ok := maps.DatatableColumnsMapping[msDsIntID]; ok {
			maps.Attribute.add(col, entry)
			return
		}
		fallthrough
	default:
		maps.Attribute.Unresolved[ldap] = UnresolvedAttribute{
			AttributeIDOrInternal: formatIfSet(hasAttrID, attrID),
			MsDsIntIDOrInternal:   formatIfSet(hasMsDsIntID, msDsIntID),
			CommonName:            common,
		}
	}
}

func formatIfSet(ok bool, v int64) string {
	if !ok {
		return ""
	}
	return strconv.FormatInt(v, 10)
}

func containsClass(classes []int64, id int64) bool {
	for _, c := range classes {
		if c == id {
			return true
		}
	}
	return false
}

func isExactlyTop(classes []int64) bool {
	return len(classes) == 1 && classes[0] == TopID
}

// GetObjectClass returns the record's object_class column as a list of
// ids: a scalar value is wrapped in a singleton, a null value yields
// an empty list, and a list value is returned as-is.
func GetObjectClass(rec ese.Record) []int64 {
	val, ok := rec.Get(colObjectClass)
	if !ok || val == nil {
		return nil
	}
	switch v := val.(type) {
	case []int32:
		out := make([]int64, len(v))
		for i, x := range v {
			out[i] = int64(x)
		}
		return out
	case []int64:
		return v
	case []any:
		out := make([]int64, 0, len(v))
		for _, x := range v {
			if n, ok := asInt64(x); ok {
				out = append(out, n)
			}
		}
		return out
	default:
		if n, ok := asInt64(val); ok {
			return []int64{n}
		}
		return nil
	}
}

func getValue(rec ese.Record, col string) ese.Value {
	v, _ := rec.Get(col)
	return v
}

func valueKey(v ese.Value) string {
	if n, ok := asInt64(v); ok {
		return strconv.FormatInt(n, 10)
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asInt64(v ese.Value) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

func stringValue(v ese.Value) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func bytesValue(v ese.Value) ([]byte, bool) {
	b, ok := v.([]byte)
	if !ok || b == nil {
		return nil, false
	}
	return b, true
}
