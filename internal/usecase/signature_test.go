package usecase_test

import (
	"context"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/ethsign"
	"github.com/totegamma/ethsign/codec"
	"github.com/totegamma/ethsign/internal/domain"
	"github.com/totegamma/ethsign/policy"
)

func TestTwoPartyAgreement(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, ethsign.NewVerifier())
	creator, x, y := newParty(t), newParty(t), newParty(t)
	schema := e.createSchema(t, creator, domain.Schema{IsPublic: true, IsRevokable: true, Fields: textFields("partyA", "partyB")})
	att := e.createAttestation(t, creator, schema.ID, common.Address{}, []common.Address{x.addr, y.addr}, textValues("partyA", "partyB"))

	// y signs first; the agreement still follows declared order
	require.NoError(t, e.sign(t, y, att.ID))
	_, err := e.signatures.GetProofOfAgreement(ctx, att.ID)
	assert.ErrorIs(t, err, domain.ErrAgreementNotFound)

	status, err := e.signatures.GetStatus(ctx, att.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttestationStatus{AttestationID: att.ID, State: domain.AgreementPending, Required: 2, Signed: 1}, status)

	require.NoError(t, e.sign(t, x, att.ID))
	poa, err := e.signatures.GetProofOfAgreement(ctx, att.ID)
	require.NoError(t, err)

	proofs, err := e.signatures.ListProofs(ctx, att.ID)
	require.NoError(t, err)
	require.Len(t, proofs, 2)
	assert.Equal(t, y.addr, proofs[0].Signer)
	assert.Equal(t, []hexutil.Bytes{proofs[1].Signature, proofs[0].Signature}, poa.Signatures)

	status, err = e.signatures.GetStatus(ctx, att.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AgreementAgreed, status.State)

	assert.Equal(t, []string{
		ethsign.EventSchemaCreated,
		ethsign.EventAttestationCreated,
		ethsign.EventProofOfSignatureCreated,
		ethsign.EventProofOfAgreementCreated,
		ethsign.EventProofOfSignatureCreated,
	}, e.sink.Types())
	assert.Empty(t, e.issuer.mints)
}

func TestSignRejections(t *testing.T) {
	e := newEngine(t, ethsign.NewVerifier())
	creator, x, outsider := newParty(t), newParty(t), newParty(t)
	schema := e.createSchema(t, creator, domain.Schema{IsPublic: true, IsRevokable: true, Fields: textFields("a")})
	att := e.createAttestation(t, creator, schema.ID, common.Address{}, []common.Address{x.addr, creator.addr}, textValues("a"))

	assert.ErrorIs(t, e.sign(t, x, 77), domain.ErrAttestationNotFound)
	assert.ErrorIs(t, e.sign(t, outsider, att.ID), domain.ErrNotASignatory)

	msg, err := codec.SignatureMessage(att.ID + 1)
	require.NoError(t, err)
	_, err = e.signatures.Sign(context.Background(), att.ID, x.addr, x.sign(t, msg))
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	require.NoError(t, e.sign(t, x, att.ID))
	assert.ErrorIs(t, e.sign(t, x, att.ID), domain.ErrAlreadySigned)

	_, err = e.revoke(t, creator, att.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, e.sign(t, creator, att.ID), domain.ErrAlreadyRevoked)

	proofs, err := e.signatures.ListProofs(context.Background(), att.ID)
	require.NoError(t, err)
	assert.Len(t, proofs, 1)
}

func TestSignRequiresPolicy(t *testing.T) {
	e := newEngine(t, ethsign.NewVerifier())
	issuer, creator, k := newParty(t), newParty(t), newParty(t)

	kyc := e.createSchema(t, issuer, domain.Schema{Name: "kyc", IsPublic: true, IsRevokable: true, Fields: textFields("level")})
	contract := e.createSchema(t, creator, domain.Schema{
		IsPublic: true,
		Fields:   textFields("terms"),
		Policies: []policy.Clause{{Logic: policy.AND, Description: "signer passed kyc", SchemaIDs: []uint64{kyc.ID}}},
	})
	att := e.createAttestation(t, creator, contract.ID, common.Address{}, []common.Address{k.addr}, textValues("terms"))

	err := e.sign(t, k, att.ID)
	var policyErr domain.PolicyNotSatisfiedError
	require.ErrorAs(t, err, &policyErr)
	assert.Equal(t, "signer passed kyc", policyErr.Clause)

	e.createAttestation(t, issuer, kyc.ID, k.addr, nil, textValues("level"))
	require.NoError(t, e.sign(t, k, att.ID))

	_, err = e.signatures.GetProofOfAgreement(context.Background(), att.ID)
	assert.NoError(t, err)
}

func TestRevokedHoldingNoLongerSatisfiesPolicy(t *testing.T) {
	e := newEngine(t, ethsign.NewVerifier())
	issuer, creator, k := newParty(t), newParty(t), newParty(t)

	kyc := e.createSchema(t, issuer, domain.Schema{IsPublic: true, IsRevokable: true, Fields: textFields("level")})
	contract := e.createSchema(t, creator, domain.Schema{
		IsPublic: true,
		Fields:   textFields("terms"),
		Policies: []policy.Clause{{Logic: policy.AND, Description: "kyc", SchemaIDs: []uint64{kyc.ID}}},
	})
	grant := e.createAttestation(t, issuer, kyc.ID, k.addr, nil, textValues("level"))
	_, err := e.revoke(t, issuer, grant.ID)
	require.NoError(t, err)

	att := e.createAttestation(t, creator, contract.ID, common.Address{}, []common.Address{k.addr}, textValues("terms"))
	assert.ErrorIs(t, e.sign(t, k, att.ID), domain.ErrPolicyNotSatisfied)
}

func TestAgreementMintsToHoldingIdentity(t *testing.T) {
	e := newEngine(t, ethsign.NewVerifier())
	creator, x := newParty(t), newParty(t)
	schema := e.createSchema(t, creator, domain.Schema{IsPublic: true, IsTokenized: true, CollectionSymbol: "NDA", Fields: textFields("a")})
	att := e.createAttestation(t, creator, schema.ID, x.addr, []common.Address{x.addr}, textValues("a"))
	assert.Empty(t, e.issuer.mints)

	require.NoError(t, e.sign(t, x, att.ID))
	assert.Equal(t, []mintCall{{Collection: "collection-NDA", To: e.holding, TokenID: att.ID}}, e.issuer.mints)
}

func TestAgreementMintFailureKeepsPending(t *testing.T) {
	e := newEngine(t, ethsign.NewVerifier())
	creator, x := newParty(t), newParty(t)
	schema := e.createSchema(t, creator, domain.Schema{IsPublic: true, IsTokenized: true, Fields: textFields("a")})
	att := e.createAttestation(t, creator, schema.ID, common.Address{}, []common.Address{x.addr}, textValues("a"))

	e.issuer.failMint = assert.AnError
	assert.ErrorIs(t, e.sign(t, x, att.ID), domain.ErrCollaboratorFailure)

	proofs, err := e.signatures.ListProofs(context.Background(), att.ID)
	require.NoError(t, err)
	assert.Empty(t, proofs)

	e.issuer.failMint = nil
	require.NoError(t, e.sign(t, x, att.ID))
	_, err = e.signatures.GetProofOfAgreement(context.Background(), att.ID)
	assert.NoError(t, err)
}

func TestConcurrentSignatures(t *testing.T) {
	e := newEngine(t, ethsign.NewVerifier())
	creator := newParty(t)
	signers := make([]party, 8)
	addrs := make([]common.Address, len(signers))
	for i := range signers {
		signers[i] = newParty(t)
		addrs[i] = signers[i].addr
	}
	schema := e.createSchema(t, creator, domain.Schema{IsPublic: true, IsTokenized: true, Fields: textFields("a")})
	att := e.createAttestation(t, creator, schema.ID, common.Address{}, addrs, textValues("a"))

	sigs := make([][]byte, len(signers))
	for i, s := range signers {
		msg, err := codec.SignatureMessage(att.ID)
		require.NoError(t, err)
		sigs[i] = s.sign(t, msg)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(signers)*2)
	for round := 0; round < 2; round++ {
		for i, s := range signers {
			wg.Add(1)
			go func(addr common.Address, sig []byte) {
				defer wg.Done()
				_, err := e.signatures.Sign(context.Background(), att.ID, addr, sig)
				errs <- err
			}(s.addr, sigs[i])
		}
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrAlreadySigned)
	}
	assert.Equal(t, len(signers), succeeded)

	proofs, err := e.signatures.ListProofs(context.Background(), att.ID)
	require.NoError(t, err)
	assert.Len(t, proofs, len(signers))

	poa, err := e.signatures.GetProofOfAgreement(context.Background(), att.ID)
	require.NoError(t, err)
	for i, sig := range poa.Signatures {
		assert.Equal(t, hexutil.Bytes(sigs[i]), sig)
	}
	assert.Len(t, e.issuer.mints, 1)

	agreements := 0
	for _, typ := range e.sink.Types() {
		if typ == ethsign.EventProofOfAgreementCreated {
			agreements++
		}
	}
	assert.Equal(t, 1, agreements)
}
