package httpx

import (
	"context"
	"log/slog"
	"net/http"

	domainauth "github.com/target/catalog-admin/internal/domain/auth"
	"github.com/target/catalog-admin/internal/domain/model"
	apperrors "github.com/target/catalog-admin/internal/errors"
)

// ProductLister lists the catalog as seen by a role.
type ProductLister interface {
	List(ctx context.Context, role domainauth.Role) ([]model.Product, error)
}

// ProductHandlers serves the product catalog.
type ProductHandlers struct {
	Svc    ProductLister
	Logger *slog.Logger
}

type productListResponse struct {
	Products  []model.Product `json:"products"`
	CanManage bool            `json:"can_manage"`
}

// List handles GET /api/products. It must sit behind RequireSession.
func (h *ProductHandlers) List(w http.ResponseWriter, r *http.Request) {
	st, _ := AuthStateFromContext(r.Context())

	products, err := h.Svc.List(r.Context(), st.Role)
	if err != nil {
		logger := h.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.ErrorContext(r.Context(), "list products failed", "error", err)
		if apperrors.IsTimeout(err) {
			WriteError(w, ErrorParams{Code: http.StatusGatewayTimeout, ErrCode: "query_timeout"})
			return
		}
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "query_failed"})
		return
	}

	WriteJSON(w, http.StatusOK, productListResponse{Products: products, CanManage: st.Role.IsAdmin()})
}
