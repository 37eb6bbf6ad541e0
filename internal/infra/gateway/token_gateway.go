package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/ethsign"
	"github.com/totegamma/ethsign/client"
)

var tracer = otel.Tracer("gateway")

type createCollectionRequest struct {
	Owner  string `json:"owner"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

type createCollectionResponse struct {
	Handle string `json:"handle"`
}

type mintRequest struct {
	To      string `json:"to"`
	TokenID uint64 `json:"tokenId"`
}

type burnRequest struct {
	TokenID uint64 `json:"tokenId"`
}

// TokenGateway talks to the token issuer over HTTP. Completed mints and burns
// are remembered for a while so a retried write does not repeat the call.
type TokenGateway struct {
	client *client.Client
	done   *cache.Cache
}

func NewTokenGateway(cl *client.Client) *TokenGateway {
	return &TokenGateway{
		client: cl,
		done:   cache.New(10*time.Minute, 15*time.Minute),
	}
}

func (g *TokenGateway) CreateCollection(ctx context.Context, owner common.Address, name, symbol string) (string, error) {
	ctx, span := tracer.Start(ctx, "Token.Gateway.CreateCollection")
	defer span.End()

	var resp createCollectionResponse
	err := g.client.Do(ctx, http.MethodPost, "/collections", createCollectionRequest{
		Owner:  owner.Hex(),
		Name:   name,
		Symbol: symbol,
	}, &resp)
	if err != nil {
		span.RecordError(err)
		return "", errors.Wrap(err, "Token.Gateway.CreateCollection")
	}
	if resp.Handle == "" {
		return "", fmt.Errorf("token issuer returned an empty collection handle")
	}

	span.SetAttributes(attribute.String("Handle", resp.Handle))
	return resp.Handle, nil
}

func (g *TokenGateway) Mint(ctx context.Context, collection string, to common.Address, tokenID uint64) error {
	ctx, span := tracer.Start(ctx, "Token.Gateway.Mint")
	defer span.End()

	key := fmt.Sprintf("mint:%s:%d", collection, tokenID)
	if _, found := g.done.Get(key); found {
		return nil
	}

	err := g.client.Do(ctx, http.MethodPost, "/collections/"+url.PathEscape(collection)+"/mint", mintRequest{
		To:      to.Hex(),
		TokenID: tokenID,
	}, nil)
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "Token.Gateway.Mint")
	}

	g.done.Set(key, true, cache.DefaultExpiration)
	return nil
}

func (g *TokenGateway) Burn(ctx context.Context, collection string, tokenID uint64) error {
	ctx, span := tracer.Start(ctx, "Token.Gateway.Burn")
	defer span.End()

	key := fmt.Sprintf("burn:%s:%d", collection, tokenID)
	if _, found := g.done.Get(key); found {
		return nil
	}

	err := g.client.Do(ctx, http.MethodPost, "/collections/"+url.PathEscape(collection)+"/burn", burnRequest{
		TokenID: tokenID,
	}, nil)
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "Token.Gateway.Burn")
	}

	g.done.Set(key, true, cache.DefaultExpiration)
	return nil
}

// LocalTokenIssuer stands in for the token issuer in development mode. It
// derives collection handles from the collection identity and only logs
// mints and burns.
type LocalTokenIssuer struct{}

func NewLocalTokenIssuer() *LocalTokenIssuer {
	return &LocalTokenIssuer{}
}

func (LocalTokenIssuer) CreateCollection(ctx context.Context, owner common.Address, name, symbol string) (string, error) {
	seed := owner.Hex() + "/" + name + "/" + symbol + "/" + time.Now().UTC().Format(time.RFC3339Nano)
	handle := common.BytesToAddress(ethsign.GetHash([]byte(seed))).Hex()
	slog.InfoContext(ctx, "collection created", slog.String("handle", handle), slog.String("module", "gateway"))
	return handle, nil
}

func (LocalTokenIssuer) Mint(ctx context.Context, collection string, to common.Address, tokenID uint64) error {
	slog.InfoContext(
		ctx, "token minted",
		slog.String("collection", collection),
		slog.String("to", to.Hex()),
		slog.Uint64("tokenId", tokenID),
		slog.String("module", "gateway"),
	)
	return nil
}

func (LocalTokenIssuer) Burn(ctx context.Context, collection string, tokenID uint64) error {
	slog.InfoContext(
		ctx, "token burned",
		slog.String("collection", collection),
		slog.Uint64("tokenId", tokenID),
		slog.String("module", "gateway"),
	)
	return nil
}
