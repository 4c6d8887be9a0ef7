package api

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityEngine/internal/engine"
	"liquidityEngine/internal/ledger"
	"liquidityEngine/internal/store"
)

const (
	tokenX = "0x1111111111111111111111111111111111111111"
	tokenY = "0x2222222222222222222222222222222222222222"
	alice  = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	st := store.New()
	assetLedger := ledger.NewMemoryLedger()
	for _, asset := range []string{tokenX, tokenY} {
		addr := common.HexToAddress(asset)
		account := common.HexToAddress(alice)
		if err := assetLedger.Mint(addr, account, big.NewInt(1_000_000)); err != nil {
			t.Fatalf("mint: %v", err)
		}
		if err := assetLedger.Approve(addr, account, big.NewInt(1_000_000)); err != nil {
			t.Fatalf("approve: %v", err)
		}
	}

	eng, err := engine.New(engine.Config{FeeBps: 0}, st, assetLedger, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return NewServer(eng, zap.NewNop())
}

func postJSON(t *testing.T, server *Server, path string, body interface{}) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")

	resp, err := server.App().Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func getPath(t *testing.T, server *Server, path string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := server.App().Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func deadline() int64 {
	return time.Now().Add(time.Minute).Unix()
}

func TestQuoteEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp := getPath(t, server, "/v1/quote?amount_in=10&reserve_in=500&reserve_out=500")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status mismatch: %d", resp.StatusCode)
	}

	var body QuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.AmountOut != "9" {
		t.Fatalf("amount out mismatch: %s", body.AmountOut)
	}
}

func TestQuoteEndpointZeroInput(t *testing.T) {
	server := newTestServer(t)

	resp := getPath(t, server, "/v1/quote?amount_in=0&reserve_in=500&reserve_out=500")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status mismatch: %d", resp.StatusCode)
	}
}

func TestPriceEndpointUnknownPair(t *testing.T) {
	server := newTestServer(t)

	resp := getPath(t, server, "/v1/price?asset_a="+tokenX+"&asset_b="+tokenY)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status mismatch: %d", resp.StatusCode)
	}
}

func TestProvisionSwapPriceFlow(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server, "/v1/liquidity/provision", ProvisionRequest{
		Provider:  alice,
		AssetA:    tokenX,
		AssetB:    tokenY,
		DesiredA:  "500",
		DesiredB:  "500",
		Recipient: alice,
		Deadline:  deadline(),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("provision status mismatch: %d", resp.StatusCode)
	}
	var provision ProvisionResponse
	if err := json.NewDecoder(resp.Body).Decode(&provision); err != nil {
		t.Fatalf("decode provision: %v", err)
	}
	if provision.Minted != "1000" {
		t.Fatalf("minted mismatch: %s", provision.Minted)
	}

	resp = getPath(t, server, "/v1/price?asset_a="+tokenX+"&asset_b="+tokenY)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("price status mismatch: %d", resp.StatusCode)
	}
	var price PriceResponse
	if err := json.NewDecoder(resp.Body).Decode(&price); err != nil {
		t.Fatalf("decode price: %v", err)
	}
	if price.Price != engine.Scale.String() {
		t.Fatalf("price mismatch: %s", price.Price)
	}

	resp = postJSON(t, server, "/v1/swap", SwapRequest{
		Caller:    alice,
		Path:      []string{tokenX, tokenY},
		AmountIn:  "10",
		Recipient: alice,
		Deadline:  deadline(),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("swap status mismatch: %d", resp.StatusCode)
	}
	var swap SwapResponse
	if err := json.NewDecoder(resp.Body).Decode(&swap); err != nil {
		t.Fatalf("decode swap: %v", err)
	}
	if len(swap.Amounts) != 2 || swap.Amounts[1] != "9" {
		t.Fatalf("swap amounts mismatch: %+v", swap.Amounts)
	}
}

func TestSwapEndpointRejectsMultiHop(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server, "/v1/swap", SwapRequest{
		Caller:    alice,
		Path:      []string{tokenX, tokenY, tokenX},
		AmountIn:  "10",
		Recipient: alice,
		Deadline:  deadline(),
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status mismatch: %d", resp.StatusCode)
	}
}

func TestProvisionEndpointInvalidAddress(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server, "/v1/liquidity/provision", ProvisionRequest{
		Provider:  "not-an-address",
		AssetA:    tokenX,
		AssetB:    tokenY,
		DesiredA:  "500",
		DesiredB:  "500",
		Recipient: alice,
		Deadline:  deadline(),
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status mismatch: %d", resp.StatusCode)
	}
}
