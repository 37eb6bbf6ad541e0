package rest

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/ethsign"
	"github.com/totegamma/ethsign/codec"
	"github.com/totegamma/ethsign/internal/domain"
	"github.com/totegamma/ethsign/internal/infra/gateway"
	"github.com/totegamma/ethsign/internal/infra/lock"
	"github.com/totegamma/ethsign/internal/infra/memory"
	"github.com/totegamma/ethsign/internal/present/rest/middleware"
	"github.com/totegamma/ethsign/internal/service"
	"github.com/totegamma/ethsign/internal/usecase"
	"github.com/totegamma/ethsign/jwt"
)

const testFQDN = "sign.example.com"

type account struct {
	key  string
	addr common.Address
}

func newAccount(t *testing.T) account {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return account{
		key:  hex.EncodeToString(crypto.FromECDSA(key)),
		addr: crypto.PubkeyToAddress(key.PublicKey),
	}
}

func (a account) sign(t *testing.T, message []byte) []byte {
	t.Helper()
	sig, err := ethsign.SignBytes(message, a.key)
	require.NoError(t, err)
	return sig
}

func (a account) token(t *testing.T) string {
	t.Helper()
	exp := strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10)
	token, err := jwt.Create(jwt.Claims{Subject: "ethsign", Audience: testFQDN, ExpirationTime: exp}, a.key)
	require.NoError(t, err)
	return token
}

type subscribeNotifier struct {
	*service.LocalSignalService
	subscribed chan struct{}
}

func (s *subscribeNotifier) Subscribe(ctx context.Context) (<-chan ethsign.Event, error) {
	ch, err := s.LocalSignalService.Subscribe(ctx)
	s.subscribed <- struct{}{}
	return ch, err
}

type testServer struct {
	e      *echo.Echo
	events *subscribeNotifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	config := domain.Config{
		FQDN:           testFQDN,
		HoldingAddress: common.HexToAddress("0x000000000000000000000000000000000000f00d"),
		MaxClockSkew:   5 * time.Minute,
	}

	store := memory.NewStore()
	schemaRepo := memory.NewSchemaRepository(store)
	attestationRepo := memory.NewAttestationRepository(store)
	signatureRepo := memory.NewSignatureRepository(store)

	events := &subscribeNotifier{
		LocalSignalService: service.NewLocalSignalService(),
		subscribed:         make(chan struct{}, 1),
	}
	verifier := ethsign.NewVerifier()
	issuer := gateway.NewLocalTokenIssuer()
	clock := usecase.SystemClock{}
	locker := lock.NewLocal()

	policyUC := usecase.NewPolicyUsecase(attestationRepo)
	h := NewHandler(
		config,
		usecase.NewSchemaUsecase(schemaRepo, verifier, issuer, clock, events),
		usecase.NewAttestationUsecase(attestationRepo, schemaRepo, verifier, issuer, clock, events, config),
		usecase.NewSignatureUsecase(signatureRepo, attestationRepo, schemaRepo, policyUC, verifier, issuer, clock, events, locker, config),
		usecase.NewRevocationUsecase(attestationRepo, schemaRepo, verifier, issuer, clock, events, locker, config),
		policyUC,
		events,
	)

	e := echo.New()
	e.Use(middleware.NewAuthMiddleware(service.NewAuthService(config), config).IdentifyIdentity)
	h.RegisterRoutes(e)

	return &testServer{e: e, events: events}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) createSchema(t *testing.T, creator account) domain.Schema {
	t.Helper()

	schema := domain.Schema{
		Name:        "employment",
		Description: "employment contract",
		Category:    "hr",
		Creator:     creator.addr,
		IsPublic:    true,
		IsRevokable: true,
		Fields: []domain.FieldDefinition{
			{Type: domain.FieldTypeText, Name: "role"},
			{Type: domain.FieldTypeBool, Name: "fulltime"},
		},
	}
	msg, err := codec.SchemaMessage(schema)
	require.NoError(t, err)
	schema.Signature = creator.sign(t, msg)

	rec := s.do(t, http.MethodPost, "/schemas", schema, creator.token(t))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[domain.Schema](t, rec)
}

func (s *testServer) createAttestation(t *testing.T, creator account, schemaID uint64, signatories ...common.Address) domain.Attestation {
	t.Helper()

	createdAt := time.Now().Truncate(time.Second)
	msg, err := codec.AttestationMessage(schemaID, creator.addr, common.Address{}, createdAt)
	require.NoError(t, err)

	req := createAttestationRequest{
		SchemaID:    schemaID,
		Creator:     creator.addr,
		Signatories: signatories,
		Payload: []domain.FieldValue{
			domain.TextValue("role", "engineer"),
			domain.BoolValue("fulltime", true),
		},
		CreatedAt: createdAt.Unix(),
		Signature: creator.sign(t, msg),
	}

	rec := s.do(t, http.MethodPost, "/attestations", req, creator.token(t))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[domain.Attestation](t, rec)
}

func TestWellKnown(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/.well-known/ethsign", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	wk := decode[ethsign.WellKnownEthsign](t, rec)
	assert.Equal(t, testFQDN, wk.Domain)
	assert.Equal(t, "/attestations/{id}/signatures", wk.Endpoints["ethsign.signature.create"].Template)
}

func TestAgreementFlow(t *testing.T) {
	s := newTestServer(t)
	creator := newAccount(t)
	alice := newAccount(t)
	bob := newAccount(t)

	schema := s.createSchema(t, creator)
	att := s.createAttestation(t, creator, schema.ID, alice.addr, bob.addr)
	path := "/attestations/" + strconv.FormatUint(att.ID, 10)

	rec := s.do(t, http.MethodGet, path+"/values", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"role":"engineer","fulltime":true}`, strings.TrimSpace(rec.Body.String()))

	rec = s.do(t, http.MethodGet, "/schemas/"+strconv.FormatUint(schema.ID, 10)+"/participants/"+alice.addr.Hex(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Attestation](t, rec), 1)

	msg, err := codec.SignatureMessage(att.ID)
	require.NoError(t, err)

	for _, signer := range []account{bob, alice} {
		rec = s.do(t, http.MethodPost, path+"/signatures", signRequest{Signer: signer.addr, Signature: signer.sign(t, msg)}, "")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodPost, path+"/signatures", signRequest{Signer: alice.addr, Signature: alice.sign(t, msg)}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, path+"/status", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[domain.AttestationStatus](t, rec)
	assert.Equal(t, domain.AgreementAgreed, status.State)
	assert.Equal(t, 2, status.Signed)

	rec = s.do(t, http.MethodGet, path+"/agreement", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	poa := decode[domain.ProofOfAgreement](t, rec)
	require.Len(t, poa.Signatures, 2)
	assert.Equal(t, []byte(alice.sign(t, msg)), []byte(poa.Signatures[0]))

	revokedAt := time.Now().Truncate(time.Second)
	revMsg, err := codec.RevocationMessage(att.ID, revokedAt)
	require.NoError(t, err)
	revoke := revokeRequest{RevokedAt: revokedAt.Unix(), Signature: creator.sign(t, revMsg)}

	rec = s.do(t, http.MethodPost, path+"/revoke", revoke, alice.token(t))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, path+"/revoke", revoke, creator.token(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[domain.Attestation](t, rec).IsRevoked)

	rec = s.do(t, http.MethodPost, path+"/revoke", revoke, creator.token(t))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	creator := newAccount(t)
	other := newAccount(t)

	t.Run("anonymous write", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/schemas", domain.Schema{}, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/schemas/abc", nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown schema", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/schemas/42", nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("creator is not the caller", func(t *testing.T) {
		schema := domain.Schema{Creator: creator.addr, Fields: []domain.FieldDefinition{{Type: domain.FieldTypeText, Name: "a"}}}
		rec := s.do(t, http.MethodPost, "/schemas", schema, other.token(t))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("empty definition", func(t *testing.T) {
		schema := domain.Schema{Creator: creator.addr}
		rec := s.do(t, http.MethodPost, "/schemas", schema, creator.token(t))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad signature", func(t *testing.T) {
		schema := domain.Schema{Creator: creator.addr, Fields: []domain.FieldDefinition{{Type: domain.FieldTypeText, Name: "a"}}}
		schema.Signature = other.sign(t, []byte("something else"))
		rec := s.do(t, http.MethodPost, "/schemas", schema, creator.token(t))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid address", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/schemas/1/participants/nobody", nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestEligibility(t *testing.T) {
	s := newTestServer(t)
	creator := newAccount(t)
	schema := s.createSchema(t, creator)

	rec := s.do(t, http.MethodGet, "/schemas/"+strconv.FormatUint(schema.ID, 10)+"/eligibility/"+creator.addr.Hex(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Eligible bool `json:"eligible"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Eligible)
}

func TestRealtime(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/realtime"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	select {
	case <-s.events.subscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("realtime handler did not subscribe")
	}

	creator := newAccount(t)
	schema := s.createSchema(t, creator)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event ethsign.Event
	require.NoError(t, ws.ReadJSON(&event))
	assert.Equal(t, ethsign.EventSchemaCreated, event.Type)
	assert.Equal(t, schema.ID, event.ID)
}
