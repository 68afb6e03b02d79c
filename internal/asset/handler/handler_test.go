package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tessera/internal/asset/models"
	"tessera/internal/asset/service"
	"tessera/internal/asset/store"
	"tessera/internal/platform/logger"
	"tessera/pkg/domain"
	"tessera/pkg/requestcontext"
)

func asCaller(party domain.PartyID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestcontext.WithPartyID(r.Context(), party)))
		})
	}
}

func TestAssetRoutes(t *testing.T) {
	operator := domain.NewPartyID()
	manager := domain.NewPartyID()
	svc := service.New(store.NewInMemory(), operator)
	asset, err := models.NewAsset(domain.NewAssetID(), "Harbor Lofts", manager, 1000, 100, time.Now())
	require.NoError(t, err)
	require.NoError(t, svc.Register(context.Background(), asset))

	h := New(svc, logger.Discard())
	public := chi.NewRouter()
	public.Use(asCaller(manager))
	h.Register(public)
	h.RegisterManager(public)

	admin := chi.NewRouter()
	admin.Use(asCaller(operator))
	h.RegisterAdmin(admin)

	t.Run("list", func(t *testing.T) {
		rr := httptest.NewRecorder()
		public.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/assets", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var body struct {
			Assets []models.Asset `json:"assets"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		require.Len(t, body.Assets, 1)
		assert.Equal(t, asset.ID, body.Assets[0].ID)
	})

	t.Run("get unknown asset", func(t *testing.T) {
		rr := httptest.NewRecorder()
		public.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/assets/"+domain.NewAssetID().String(), nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("manager updates price", func(t *testing.T) {
		rr := httptest.NewRecorder()
		public.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/assets/"+asset.ID.String()+"/price",
			strings.NewReader(`{"price_per_share":120}`)))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"price_per_share":120`)
	})

	t.Run("operator pauses asset", func(t *testing.T) {
		rr := httptest.NewRecorder()
		admin.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/assets/"+asset.ID.String()+"/status",
			strings.NewReader(`{"status":"paused"}`)))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"status":"paused"`)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		rr := httptest.NewRecorder()
		admin.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/assets/"+asset.ID.String()+"/status",
			strings.NewReader(`{"status":"gone"}`)))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
