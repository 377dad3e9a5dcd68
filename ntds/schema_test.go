package ntds

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sprocket-security/ntdsdump/ese"
)

func TestGetObjectClassVariants(t *testing.T) {
	r := require.New(t)

	r.Nil(GetObjectClass(ese.NewMemoryRecord(map[string]ese.Value{})))
	r.Nil(GetObjectClass(ese.NewMemoryRecord(map[string]ese.Value{colObjectClass: nil})))
	r.Equal([]int64{65536}, GetObjectClass(ese.NewMemoryRecord(map[string]ese.Value{colObjectClass: int64(65536)})))
	r.Equal(
		[]int64{1, 2, 3},
		GetObjectClass(ese.NewMemoryRecord(map[string]ese.Value{colObjectClass: []int64{1, 2, 3}})),
	)
}

func TestSchemaResolverBuildBootstrap(t *testing.T) {
	r := require.New(t)

	classSchemaRow := ese.NewMemoryRecord(map[string]ese.Value{
		colObjectClass:       int64(ClassSchemaID),
		colGovernsID:         int64(999001),
		colAttributeNameLDAP: "user",
		colAttributeNameCN:   "User",
	})

	attrSchemaRow := ese.NewMemoryRecord(map[string]ese.Value{
		colObjectClass:       int64(AttributeSchemaID),
		colAttributeID:       int64(131532),
		colAttributeNameLDAP: "displayName",
		colAttributeNameCN:   "Display-Name",
	})

	domainDNSRow := ese.NewMemoryRecord(map[string]ese.Value{
		colObjectClass: int64(DomainDNSID),
		colPekList:     []byte{0xDE, 0xAD, 0xBE, 0xEF},
	})

	datatable := ese.NewMemoryTable(
		"datatable",
		[]string{"ATTm131532", "ATTc131094"},
		[]ese.Record{classSchemaRow, attrSchemaRow, domainDNSRow},
	)

	resolver := NewSchemaResolver(zerolog.Nop())
	result, err := resolver.Build(datatable, nil, nil)
	r.NoError(err)

	r.Equal(NameEntry{CommonName: "User", LdapName: "user"}, result.Maps.ObjectClass.Resolve[999001])
	r.Equal(int64(999001), result.Maps.ObjectClass.Ldap["user"])

	r.Equal(NameEntry{CommonName: "Display-Name", LdapName: "displayName"}, result.Maps.Attribute.Resolve["ATTm131532"])
	r.Equal("ATTm131532", result.Maps.Attribute.Ldap["displayName"])

	r.Equal([]byte{0xDE, 0xAD, 0xBE, 0xEF}, result.RawEncPekList)
	r.False(result.IsADAM)
}

func TestSchemaResolverUnresolvedAttribute(t *testing.T) {
	r := require.New(t)

	attrSchemaRow := ese.NewMemoryRecord(map[string]ese.Value{
		colObjectClass:       int64(AttributeSchemaID),
		colAttributeID:       int64(404),
		colAttributeNameLDAP: "ghost",
		colAttributeNameCN:   "Ghost",
	})

	datatable := ese.NewMemoryTable("datatable", nil, []ese.Record{attrSchemaRow})

	resolver := NewSchemaResolver(zerolog.Nop())
	result, err := resolver.Build(datatable, nil, nil)
	r.NoError(err)

	_, resolved := result.Maps.Attribute.Resolve["ATTm404"]
	r.False(resolved)

	unresolved, ok := result.Maps.Attribute.Unresolved["ghost"]
	r.True(ok)
	r.Equal("Ghost", unresolved.CommonName)
}

func TestSchemaResolverADAMTopPekList(t *testing.T) {
	r := require.New(t)

	topRow := ese.NewMemoryRecord(map[string]ese.Value{
		colObjectClass: int64(TopID),
		colPekList:     []byte{0x01, 0x02},
	})

	datatable := ese.NewMemoryTable("datatable", nil, []ese.Record{topRow})

	resolver := NewSchemaResolver(zerolog.Nop())
	result, err := resolver.Build(datatable, nil, nil)
	r.NoError(err)

	r.Equal([]byte{0x01, 0x02}, result.RootPekList)
	r.True(result.IsADAM)
}

func TestSchemaResolverFirstDomainDNSWins(t *testing.T) {
	r := require.New(t)

	first := ese.NewMemoryRecord(map[string]ese.Value{
		colObjectClass: int64(DomainDNSID),
		colPekList:     []byte{0xAA},
	})
	second := ese.NewMemoryRecord(map[string]ese.Value{
		colObjectClass: int64(DomainDNSID),
		colPekList:     []byte{0xBB},
	})

	datatable := ese.NewMemoryTable("datatable", nil, []ese.Record{first, second})

	resolver := NewSchemaResolver(zerolog.Nop())
	result, err := resolver.Build(datatable, nil, nil)
	r.NoError(err)

	r.Equal([]byte{0xAA}, result.RawEncPekList)
}

func TestSchemaResolverKdsRootKeyCatalogued(t *testing.T) {
	r := require.New(t)

	kdsRow := ese.NewMemoryRecord(map[string]ese.Value{
		colObjectClass: int64(KdsProvRootKeyID),
		"cn":           "{11111111-2222-3333-4444-555555555555}",
	})

	datatable := ese.NewMemoryTable("datatable", nil, []ese.Record{kdsRow})

	resolver := NewSchemaResolver(zerolog.Nop())
	result, err := resolver.Build(datatable, nil, nil)
	r.NoError(err)

	r.Len(result.KdsRootKeys, 1)
	r.Equal("{11111111-2222-3333-4444-555555555555}", result.KdsRootKeys[0]["cn"])
}

func TestSchemaResolverAbsorbsSDTableAndLinkTable(t *testing.T) {
	r := require.New(t)

	sdRow := ese.NewMemoryRecord(map[string]ese.Value{
		"sd_id":    int64(42),
		"sd_value": []byte{0x01, 0x02, 0x03},
	})
	sdtable := ese.NewMemoryTable("sd_table", nil, []ese.Record{sdRow})

	linkRow := ese.NewMemoryRecord(map[string]ese.Value{
		"link_DNT":     int64(5),
		"backlink_DNT": int64(3),
		"link_base":    int64(7),
	})
	linktable := ese.NewMemoryTable("link_table", nil, []ese.Record{linkRow})

	datatable := ese.NewMemoryTable("datatable", nil, nil)

	resolver := NewSchemaResolver(zerolog.Nop())
	result, err := resolver.Build(datatable, linktable, sdtable)
	r.NoError(err)

	r.Equal([]byte{0x01, 0x02, 0x03}, result.SecurityDescriptors["42"])

	r.Len(result.Links.To["3"], 1)
	r.Equal(int64(5), result.Links.To["3"][0].PeerDNT)
	r.Len(result.Links.From["5"], 1)
	r.Equal(int64(3), result.Links.From["5"][0].PeerDNT)
}
