package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	assetmodels "tessera/internal/asset/models"
	assetservice "tessera/internal/asset/service"
	assetstore "tessera/internal/asset/store"
	"tessera/internal/ledger/models"
	"tessera/internal/ledger/service"
	"tessera/internal/ledger/store"
	outboxstore "tessera/internal/outbox/store"
	"tessera/internal/payout"
	payoutstore "tessera/internal/payout/store"
	"tessera/internal/platform/logger"
	"tessera/pkg/domain"
	"tessera/pkg/requestcontext"
)

type allowList map[domain.PartyID]bool

func (a allowList) IsApproved(_ context.Context, party domain.PartyID) (bool, error) {
	return a[party], nil
}

type fixture struct {
	operator domain.PartyID
	alice    domain.PartyID
	bob      domain.PartyID
	service  *service.Service
	handler  *Handler
}

func newFixture() *fixture {
	f := &fixture{
		operator: domain.NewPartyID(),
		alice:    domain.NewPartyID(),
		bob:      domain.NewPartyID(),
	}
	gate := allowList{f.alice: true, f.bob: true}
	journal := payout.NewJournal(payoutstore.NewInMemory(), outboxstore.NewInMemory())
	f.service = service.New(store.NewInMemory(), gate, assetservice.New(assetstore.NewInMemory(), f.operator), journal, f.operator)
	f.handler = New(f.service, logger.Discard())
	return f
}

func (f *fixture) router(caller domain.PartyID) *chi.Mux {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(requestcontext.WithPartyID(req.Context(), caller)))
		})
	})
	f.handler.Register(r)
	f.handler.RegisterAdmin(r)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestLedgerRoutes(t *testing.T) {
	f := newFixture()
	admin := f.router(f.operator)
	alice := f.router(f.alice)

	rr := do(admin, http.MethodPost, "/admin/assets",
		`{"name":"Harbor Lofts","manager":"`+domain.NewPartyID().String()+`","total_shares":1000,"price_per_share":100}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var asset assetmodels.Asset
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&asset))
	base := "/assets/" + asset.ID.String()

	t.Run("purchase", func(t *testing.T) {
		rr := do(alice, http.MethodPost, base+"/purchase", `{"shares":250,"payment":26000}`)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var result models.PurchaseResult
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&result))
		assert.Equal(t, int64(1000), result.Refund)
		assert.Equal(t, int64(750), result.Available)
	})

	t.Run("oversubscribed purchase", func(t *testing.T) {
		rr := do(alice, http.MethodPost, base+"/purchase", `{"shares":1500,"payment":150000}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Body.String(), "insufficient_supply")
	})

	t.Run("purchase validates body", func(t *testing.T) {
		rr := do(alice, http.MethodPost, base+"/purchase", `{"shares":0,"payment":0}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		rr = do(alice, http.MethodPost, base+"/purchase", `{"shares":1,"payment":100,"extra":true}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("transfer", func(t *testing.T) {
		rr := do(alice, http.MethodPost, base+"/transfer", `{"to":"`+f.bob.String()+`","shares":50}`)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	})

	t.Run("sell", func(t *testing.T) {
		rr := do(alice, http.MethodPost, base+"/sell", `{"shares":500}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		rr = do(alice, http.MethodPost, base+"/sell", `{"shares":100}`)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"proceeds":10000`)
	})

	t.Run("holding", func(t *testing.T) {
		rr := do(alice, http.MethodGet, base+"/holders/"+f.alice.String(), "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"shares":100`)
		assert.Contains(t, rr.Body.String(), `"ownership_bp":1000`)
	})

	t.Run("investors", func(t *testing.T) {
		rr := do(alice, http.MethodGet, base+"/investors?limit=1&offset=1", "")
		require.Equal(t, http.StatusOK, rr.Code)
		var body struct {
			Investors []models.Holding `json:"investors"`
			Total     int              `json:"total"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, 2, body.Total)
		require.Len(t, body.Investors, 1)
		assert.Equal(t, f.bob, body.Investors[0].PartyID)

		rr = do(alice, http.MethodGet, base+"/investors?limit=abc", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("investments and portfolio", func(t *testing.T) {
		rr := do(alice, http.MethodGet, base+"/investments/"+f.alice.String(), "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"amount_paid":25000`)

		rr = do(alice, http.MethodGet, "/parties/"+f.bob.String()+"/portfolio", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"ownership_bp":500`)
	})

	t.Run("conservation", func(t *testing.T) {
		rr := do(admin, http.MethodGet, "/admin/assets/"+asset.ID.String()+"/conservation", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"balanced":true`)
	})

	t.Run("non-operator cannot issue", func(t *testing.T) {
		rr := do(alice, http.MethodPost, "/admin/assets",
			`{"name":"Mill Yard","manager":"`+f.alice.String()+`","total_shares":10,"price_per_share":1}`)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("malformed asset id", func(t *testing.T) {
		rr := do(alice, http.MethodGet, "/assets/not-a-uuid/book", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
