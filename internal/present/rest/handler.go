package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/totegamma/ethsign"
	"github.com/totegamma/ethsign/internal/domain"
	"github.com/totegamma/ethsign/internal/present/rest/middleware"
	"github.com/totegamma/ethsign/internal/present/rest/presenter"
	"github.com/totegamma/ethsign/internal/usecase"
	"github.com/totegamma/ethsign/internal/utils"
)

// EventStream is satisfied by both the redis and the in-process signal services.
type EventStream interface {
	Subscribe(ctx context.Context) (<-chan ethsign.Event, error)
}

type Handler struct {
	config      domain.Config
	schema      *usecase.SchemaUsecase
	attestation *usecase.AttestationUsecase
	signature   *usecase.SignatureUsecase
	revocation  *usecase.RevocationUsecase
	policy      *usecase.PolicyUsecase
	events      EventStream
}

func NewHandler(
	config domain.Config,
	schema *usecase.SchemaUsecase,
	attestation *usecase.AttestationUsecase,
	signature *usecase.SignatureUsecase,
	revocation *usecase.RevocationUsecase,
	policy *usecase.PolicyUsecase,
	events EventStream,
) *Handler {
	return &Handler{
		config:      config,
		schema:      schema,
		attestation: attestation,
		signature:   signature,
		revocation:  revocation,
		policy:      policy,
		events:      events,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/.well-known/ethsign", h.handleWellKnown)

	e.POST("/schemas", h.handleCreateSchema, middleware.RequireIdentity)
	e.GET("/schemas/:id", h.handleGetSchema)
	e.GET("/schemas/:id/collection", h.handleGetCollection)
	e.GET("/schemas/:id/participants/:address", h.handleGetByParticipant)
	e.GET("/schemas/:id/eligibility/:address", h.handleEligibility)

	e.POST("/attestations", h.handleCreateAttestation, middleware.RequireIdentity)
	e.GET("/attestations/:id", h.handleGetAttestation)
	e.GET("/attestations/:id/values", h.handleGetValues)
	e.POST("/attestations/:id/signatures", h.handleSign)
	e.GET("/attestations/:id/signatures", h.handleListSignatures)
	e.GET("/attestations/:id/agreement", h.handleGetAgreement)
	e.GET("/attestations/:id/status", h.handleGetStatus)
	e.POST("/attestations/:id/revoke", h.handleRevoke, middleware.RequireIdentity)

	e.GET("/realtime", h.handleRealtime)
}

func (h *Handler) handleWellKnown(c echo.Context) error {
	wellknown := ethsign.WellKnownEthsign{
		Version:        "1.0",
		Domain:         h.config.FQDN,
		HoldingAddress: h.config.HoldingAddress.Hex(),
		Endpoints: map[string]ethsign.Endpoint{
			"ethsign.schema.create":       {Template: "/schemas", Method: "POST"},
			"ethsign.schema":              {Template: "/schemas/{id}", Method: "GET"},
			"ethsign.schema.collection":   {Template: "/schemas/{id}/collection", Method: "GET"},
			"ethsign.schema.participants": {Template: "/schemas/{id}/participants/{address}", Method: "GET"},
			"ethsign.schema.eligibility":  {Template: "/schemas/{id}/eligibility/{address}", Method: "GET"},
			"ethsign.attestation.create":  {Template: "/attestations", Method: "POST"},
			"ethsign.attestation":         {Template: "/attestations/{id}", Method: "GET"},
			"ethsign.attestation.values":  {Template: "/attestations/{id}/values", Method: "GET"},
			"ethsign.signature.create":    {Template: "/attestations/{id}/signatures", Method: "POST"},
			"ethsign.signatures":          {Template: "/attestations/{id}/signatures", Method: "GET"},
			"ethsign.agreement":           {Template: "/attestations/{id}/agreement", Method: "GET"},
			"ethsign.status":              {Template: "/attestations/{id}/status", Method: "GET"},
			"ethsign.revoke":              {Template: "/attestations/{id}/revoke", Method: "POST"},
			"ethsign.realtime":            {Template: "/realtime", Method: "GET"},
		},
	}

	return c.JSON(http.StatusOK, wellknown)
}

func parseID(c echo.Context) (uint64, error) {
	return ethsign.ParseID(c.Param("id"))
}

func parseAddress(c echo.Context) (common.Address, bool) {
	addr, err := ethsign.ParseAddress(c.Param("address"))
	return addr, err == nil
}

func (h *Handler) handleCreateSchema(c echo.Context) error {
	ctx := c.Request().Context()
	caller, _ := middleware.Requester(ctx)

	var input domain.Schema
	err := c.Bind(&input)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	schema, err := h.schema.Create(ctx, caller, input)
	if err != nil {
		return presenter.Error(c, err)
	}

	return presenter.Created(c, schema)
}

func (h *Handler) handleGetSchema(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseID(c)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid schema id")
	}

	schema, err := h.schema.Get(ctx, id)
	if err != nil {
		return presenter.Error(c, err)
	}

	return presenter.OK(c, schema)
}

func (h *Handler) handleGetCollection(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseID(c)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid schema id")
	}

	collection, err := h.schema.GetCollection(ctx, id)
	if err != nil {
		return presenter.Error(c, err)
	}

	return presenter.OK(c, collection)
}

func (h *Handler) handleGetByParticipant(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseID(c)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid schema id")
	}
	participant, ok := parseAddress(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid address")
	}

	attestations, err := h.attestation.GetByParticipant(ctx, id, participant)
	if err != nil {
		return presenter.Error(c, err)
	}

	return presenter.OK(c, attestations)
}

func (h *Handler) handleEligibility(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseID(c)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid schema id")
	}
	candidate, ok := parseAddress(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid address")
	}

	schema, err := h.schema.Get(ctx, id)
	if err != nil {
		return presenter.Error(c, err)
	}

	results, err := h.policy.Evaluate(ctx, schema, candidate)
	if err != nil {
		return presenter.Error(c, err)
	}

	eligible := true
	for _, r := range results {
		eligible = eligible && r.Passed
	}

	return presenter.OK(c, echo.Map{"eligible": eligible, "clauses": results})
}

type createAttestationRequest struct {
	SchemaID    uint64              `json:"schemaId"`
	Creator     common.Address      `json:"creator"`
	Recipient   common.Address      `json:"recipient"`
	Signatories []common.Address    `json:"signatories"`
	Payload     []domain.FieldValue `json:"payload"`
	CreatedAt   int64               `json:"createdAt"`
	Signature   hexutil.Bytes       `json:"signature"`
}

func (h *Handler) handleCreateAttestation(c echo.Context) error {
	ctx := c.Request().Context()
	caller, _ := middleware.Requester(ctx)

	var req createAttestationRequest
	err := c.Bind(&req)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	attestation, err := h.attestation.Create(ctx, caller, usecase.CreateAttestationInput{
		SchemaID:    req.SchemaID,
		Creator:     req.Creator,
		Recipient:   req.Recipient,
		Signatories: req.Signatories,
		Payload:     req.Payload,
		CreatedAt:   time.Unix(req.CreatedAt, 0),
		Signature:   req.Signature,
	})
	if err != nil {
		return presenter.Error(c, err)
	}

	return presenter.Created(c, attestation)
}

func (h *Handler) handleGetAttestation(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseID(c)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid attestation id")
	}

	attestation, err := h.attestation.Get(ctx, id)
	if err != nil {
		return presenter.Error(c, err)
	}

	return presenter.OK(c, attestation)
}

func (h *Handler) handleGetValues(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseID(c)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid attestation id")
	}

	attestation, err := h.attestation.Get(ctx, id)
	if err != nil {
		return presenter.Error(c, err)
	}

	values := make(utils.OrderedKVMap[any], len(attestation.Payload))
	for i, v := range attestation.Payload {
		values[v.Name] = utils.OrderedKV[any]{Value: v.Display(), Order: int64(i)}
	}

	return presenter.OK(c, values)
}

type signRequest struct {
	Signer    common.Address `json:"signer"`
	Signature hexutil.Bytes  `json:"signature"`
}

// handleSign needs no bearer token: the signature itself proves the signer.
func (h *Handler) handleSign(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseID(c)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid attestation id")
	}

	var req signRequest
	err = c.Bind(&req)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	proof, err := h.signature.Sign(ctx, id, req.Signer, req.Signature)
	if err != nil {
		return presenter.Error(c, err)
	}

	return presenter.Created(c, proof)
}

func (h *Handler) handleListSignatures(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseID(c)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid attestation id")
	}

	proofs, err := h.signature.ListProofs(ctx, id)
	if err != nil {
		return presenter.Error(c, err)
	}

	return presenter.OK(c, proofs)
}

func (h *Handler) handleGetAgreement(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseID(c)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid attestation id")
	}

	agreement, err := h.signature.GetProofOfAgreement(ctx, id)
	if err != nil {
		return presenter.Error(c, err)
	}

	return presenter.OK(c, agreement)
}

func (h *Handler) handleGetStatus(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseID(c)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid attestation id")
	}

	status, err := h.signature.GetStatus(ctx, id)
	if err != nil {
		return presenter.Error(c, err)
	}

	return presenter.OK(c, status)
}

type revokeRequest struct {
	RevokedAt int64         `json:"revokedAt"`
	Signature hexutil.Bytes `json:"signature"`
}

func (h *Handler) handleRevoke(c echo.Context) error {
	ctx := c.Request().Context()
	caller, _ := middleware.Requester(ctx)

	id, err := parseID(c)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid attestation id")
	}

	var req revokeRequest
	err = c.Bind(&req)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	attestation, err := h.revocation.Revoke(ctx, caller, id, time.Unix(req.RevokedAt, 0), req.Signature)
	if err != nil {
		return presenter.Error(c, err)
	}

	return presenter.OK(c, attestation)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Request is a client message on the realtime socket. An empty Types list
// on "listen" receives every event type.
type Request struct {
	Type  string   `json:"type"`
	Types []string `json:"types"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	events, err := h.events.Subscribe(ctx)
	if err != nil {
		slog.ErrorContext(
			ctx, "Failed to subscribe",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return nil
	}

	filter := make(chan []string)
	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			var req Request
			err := ws.ReadJSON(&req)
			if err != nil {

				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				return
			}

			switch req.Type {
			case "listen":
				select {
				case filter <- req.Types:
				case <-ctx.Done():
					return
				}
				slog.DebugContext(
					ctx, fmt.Sprintf("Socket subscribe: %s", req.Types),
					slog.String("module", "socket"),
				)
			case "h": // heartbeat
				// do nothing
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	var types []string
	for {
		select {
		case <-quit:
			return nil
		case types = <-filter:
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if len(types) > 0 && !slices.Contains(types, event.Type) {
				continue
			}
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
