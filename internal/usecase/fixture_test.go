package usecase_test

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/ethsign"
	"github.com/totegamma/ethsign/codec"
	"github.com/totegamma/ethsign/internal/domain"
	"github.com/totegamma/ethsign/internal/infra/lock"
	"github.com/totegamma/ethsign/internal/infra/memory"
	"github.com/totegamma/ethsign/internal/usecase"
	"github.com/totegamma/ethsign/policy"
)

type party struct {
	key  string
	addr common.Address
}

func newParty(t *testing.T) party {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return party{
		key:  hex.EncodeToString(crypto.FromECDSA(key)),
		addr: crypto.PubkeyToAddress(key.PublicKey),
	}
}

func (p party) sign(t *testing.T, message []byte) []byte {
	t.Helper()
	sig, err := ethsign.SignBytes(message, p.key)
	require.NoError(t, err)
	return sig
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type mintCall struct {
	Collection string
	To         common.Address
	TokenID    uint64
}

type burnCall struct {
	Collection string
	TokenID    uint64
}

type recordingIssuer struct {
	mu          sync.Mutex
	collections []string
	mints       []mintCall
	burns       []burnCall
	failCreate  error
	failMint    error
	failBurn    error
}

func (i *recordingIssuer) CreateCollection(ctx context.Context, owner common.Address, name, symbol string) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.failCreate != nil {
		return "", i.failCreate
	}
	handle := "collection-" + symbol
	i.collections = append(i.collections, handle)
	return handle, nil
}

func (i *recordingIssuer) Mint(ctx context.Context, collection string, to common.Address, tokenID uint64) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.failMint != nil {
		return i.failMint
	}
	i.mints = append(i.mints, mintCall{Collection: collection, To: to, TokenID: tokenID})
	return nil
}

func (i *recordingIssuer) Burn(ctx context.Context, collection string, tokenID uint64) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.failBurn != nil {
		return i.failBurn
	}
	i.burns = append(i.burns, burnCall{Collection: collection, TokenID: tokenID})
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []ethsign.Event
	fail   bool
}

func (s *recordingSink) Emit(ctx context.Context, event ethsign.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, 0, len(s.events))
	for _, e := range s.events {
		types = append(types, e.Type)
	}
	return types
}

type failingVerifier struct{}

func (failingVerifier) Verify(message, signature []byte, claimed common.Address) (bool, error) {
	return false, errors.New("verifier unreachable")
}

type engine struct {
	schemas      *usecase.SchemaUsecase
	attestations *usecase.AttestationUsecase
	signatures   *usecase.SignatureUsecase
	revocations  *usecase.RevocationUsecase
	policy       *usecase.PolicyUsecase
	issuer       *recordingIssuer
	sink         *recordingSink
	clock        *fixedClock
	holding      common.Address
}

func newEngine(t *testing.T, verifier usecase.Verifier) *engine {
	t.Helper()

	store := memory.NewStore()
	schemaRepo := memory.NewSchemaRepository(store)
	attestationRepo := memory.NewAttestationRepository(store)
	signatureRepo := memory.NewSignatureRepository(store)

	e := &engine{
		issuer:  &recordingIssuer{},
		sink:    &recordingSink{},
		clock:   &fixedClock{now: time.Unix(1700000000, 0).UTC()},
		holding: common.HexToAddress("0x000000000000000000000000000000000000f00d"),
	}
	config := domain.Config{
		HoldingAddress: e.holding,
		MaxClockSkew:   5 * time.Minute,
	}
	locker := lock.NewLocal()

	e.policy = usecase.NewPolicyUsecase(attestationRepo)
	e.schemas = usecase.NewSchemaUsecase(schemaRepo, verifier, e.issuer, e.clock, e.sink)
	e.attestations = usecase.NewAttestationUsecase(attestationRepo, schemaRepo, verifier, e.issuer, e.clock, e.sink, config)
	e.signatures = usecase.NewSignatureUsecase(signatureRepo, attestationRepo, schemaRepo, e.policy, verifier, e.issuer, e.clock, e.sink, locker, config)
	e.revocations = usecase.NewRevocationUsecase(attestationRepo, schemaRepo, verifier, e.issuer, e.clock, e.sink, locker, config)
	return e
}

func textFields(names ...string) []domain.FieldDefinition {
	fields := make([]domain.FieldDefinition, 0, len(names))
	for _, n := range names {
		fields = append(fields, domain.FieldDefinition{Type: domain.FieldTypeText, Name: n})
	}
	return fields
}

func textValues(names ...string) []domain.FieldValue {
	values := make([]domain.FieldValue, 0, len(names))
	for _, n := range names {
		values = append(values, domain.TextValue(n, "value of "+n))
	}
	return values
}

func (e *engine) createSchema(t *testing.T, creator party, schema domain.Schema) domain.Schema {
	t.Helper()
	schema.Creator = creator.addr
	msg, err := codec.SchemaMessage(schema)
	require.NoError(t, err)
	schema.Signature = creator.sign(t, msg)

	created, err := e.schemas.Create(context.Background(), creator.addr, schema)
	require.NoError(t, err)
	return created
}

func (e *engine) attestationInput(t *testing.T, creator party, schemaID uint64, recipient common.Address, signatories []common.Address, payload []domain.FieldValue) usecase.CreateAttestationInput {
	t.Helper()
	createdAt := e.clock.Now()
	msg, err := codec.AttestationMessage(schemaID, creator.addr, recipient, createdAt)
	require.NoError(t, err)
	return usecase.CreateAttestationInput{
		SchemaID:    schemaID,
		Creator:     creator.addr,
		Recipient:   recipient,
		Signatories: signatories,
		Payload:     payload,
		CreatedAt:   createdAt,
		Signature:   creator.sign(t, msg),
	}
}

func (e *engine) createAttestation(t *testing.T, creator party, schemaID uint64, recipient common.Address, signatories []common.Address, payload []domain.FieldValue) domain.Attestation {
	t.Helper()
	input := e.attestationInput(t, creator, schemaID, recipient, signatories, payload)
	created, err := e.attestations.Create(context.Background(), creator.addr, input)
	require.NoError(t, err)
	return created
}

func (e *engine) sign(t *testing.T, signer party, attestationID uint64) error {
	t.Helper()
	msg, err := codec.SignatureMessage(attestationID)
	require.NoError(t, err)
	_, err = e.signatures.Sign(context.Background(), attestationID, signer.addr, signer.sign(t, msg))
	return err
}

func (e *engine) revoke(t *testing.T, caller party, attestationID uint64) (domain.Attestation, error) {
	t.Helper()
	revokedAt := e.clock.Now()
	msg, err := codec.RevocationMessage(attestationID, revokedAt)
	require.NoError(t, err)
	return e.revocations.Revoke(context.Background(), caller.addr, attestationID, revokedAt, caller.sign(t, msg))
}

func clauses(logic string, ids []uint64) []policy.Clause {
	return []policy.Clause{{Logic: policy.Logic(logic), Description: logic, SchemaIDs: ids}}
}
