package codec

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/ethsign/internal/domain"
	"github.com/totegamma/ethsign/policy"
)

var creator = common.HexToAddress("0x00000000000000000000000000000000000000a1")

func sampleSchema() domain.Schema {
	return domain.Schema{
		Name:        "nda",
		Description: "mutual nda",
		Category:    "legal",
		Creator:     creator,
		IsPublic:    true,
		IsRevokable: true,
		Fields: []domain.FieldDefinition{
			{Type: domain.FieldTypeText, Name: "partyA"},
			{Type: domain.FieldTypeText, Name: "partyB"},
		},
		Policies: []policy.Clause{
			{Logic: policy.AND, Description: "kyc", SchemaIDs: []uint64{7}},
		},
	}
}

func TestSchemaMessageIsDeterministic(t *testing.T) {
	a, err := SchemaMessage(sampleSchema())
	require.NoError(t, err)
	b, err := SchemaMessage(sampleSchema())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSchemaMessageIgnoresAssignedFields(t *testing.T) {
	base, err := SchemaMessage(sampleSchema())
	require.NoError(t, err)

	stored := sampleSchema()
	stored.ID = 12
	stored.CreatedAt = time.Now()
	stored.Signature = []byte{1, 2, 3}
	withAssigned, err := SchemaMessage(stored)
	require.NoError(t, err)

	assert.Equal(t, base, withAssigned)
}

func TestSchemaMessageCoversContent(t *testing.T) {
	base, err := SchemaMessage(sampleSchema())
	require.NoError(t, err)

	changed := sampleSchema()
	changed.Fields[1].Type = domain.FieldTypeBool
	other, err := SchemaMessage(changed)
	require.NoError(t, err)
	assert.NotEqual(t, base, other)

	changed = sampleSchema()
	changed.Policies[0].Logic = policy.OR
	other, err = SchemaMessage(changed)
	require.NoError(t, err)
	assert.NotEqual(t, base, other)
}

func TestMessagesDifferPerKind(t *testing.T) {
	at := time.Unix(1700000000, 0)
	sig, err := SignatureMessage(5)
	require.NoError(t, err)
	rev, err := RevocationMessage(5, at)
	require.NoError(t, err)
	att, err := AttestationMessage(5, creator, common.Address{}, at)
	require.NoError(t, err)

	assert.NotEqual(t, sig, rev)
	assert.NotEqual(t, rev, att)
}
