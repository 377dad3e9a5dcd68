package ntds

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sprocket-security/ntdsdump/ese"
)

// Synthetic column names the ESE adapter exposes for parent-chain
// construction; these do not carry the ATT-numeric form because they
// are derived fields the adapter computes from the table's primary
// key and link structure, not attributes discovered during the schema
// pass.
const (
	colPDNT   = "PDNT_col"
	colDNT    = "DNT_col"
	colRDNTyp = "RDNtyp_col"
)

var defaultRDNTypeEntry = NameEntry{CommonName: "Common-Name", LdapName: "cn"}

// DnBuilder performs the fix-point construction of dnt_to_dn from each
// record's (rdn, PDNT_col, RDNtyp_col) triple.
type DnBuilder struct {
	logger zerolog.Logger
}

// NewDnBuilder builds a DnBuilder. A zero Logger is treated as
// zerolog.Nop().
func NewDnBuilder(logger zerolog.Logger) *DnBuilder {
	return &DnBuilder{logger: logger}
}

// Build runs the two-pass construction described in the specification
// and returns dnt_to_dn: the DNT (as a decimal string) mapped to its
// DN, an ordered list of RDN components from leaf to root.
func (b *DnBuilder) Build(datatable ese.Table, attrSchema AttributeSchema) map[string][]string {
	dntToDN := map[string][]string{}

	var pending []ese.Record
	for rec := range datatable.Records() {
		if !b.resolve(rec, attrSchema, dntToDN) {
			pending = append(pending, rec)
		}
	}
	for _, rec := range pending {
		b.resolve(rec, attrSchema, dntToDN)
	}

	return dntToDN
}

// resolve applies one record's RDN/parent rule. It returns true if the
// record was fully resolved against a known parent DN (or has no
// parent to resolve), false if it was stored RDN-only and should be
// retried in a later pass.
func (b *DnBuilder) resolve(rec ese.Record, attrSchema AttributeSchema, dntToDN map[string][]string) bool {
	rdnVal, hasRDN := rec.Get(colRDN)
	pdntVal, hasPDNT := rec.Get(colPDNT)
	if !hasRDN || rdnVal == nil || !hasPDNT || pdntVal == nil {
		return true
	}

	rdn, ok := stringOrFormat(rdnVal)
	if !ok {
		return true
	}

	pdnt := valueKey(pdntVal)
	parentDN, parentKnown := dntToDN[pdnt]

	rdnTypeEntry := defaultRDNTypeEntry
	if rdnTypVal, ok := rec.Get(colRDNTyp); ok && rdnTypVal != nil {
		key := fmt.Sprintf("ATTm%v", rdnTypVal)
		if entry, ok := attrSchema.Resolve[key]; ok {
			rdnTypeEntry = entry
		}
	}

	components := []string{
		fmt.Sprintf("%s=%s", strings.ToUpper(rdnTypeEntry.CommonName), rdn),
		fmt.Sprintf("%s=%s", strings.ToUpper(rdnTypeEntry.LdapName), rdn),
	}

	dntVal, hasDNT := rec.Get(colDNT)
	if !hasDNT || dntVal == nil {
		b.logger.Warn().Str("table", "datatable").Msg("record has rdn/PDNT_col but no DNT_col, skipped")
		return true
	}
	dnt := valueKey(dntVal)

	if parentKnown {
		dntToDN[dnt] = append(append([]string{}, components...), parentDN...)
		return true
	}

	dntToDN[dnt] = components
	return false
}

func stringOrFormat(v ese.Value) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return fmt.Sprintf("%v", v), true
	}
}
