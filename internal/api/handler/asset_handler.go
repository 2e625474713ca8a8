package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/accounts-api/internal/core/ports"
)

// AssetHandler exposes the avatar folder of the bucket to administrators.
type AssetHandler struct {
	accounts ports.AccountService
	present  userPresenter
}

func NewAssetHandler(accounts ports.AccountService, loc *time.Location) *AssetHandler {
	return &AssetHandler{accounts: accounts, present: newUserPresenter(loc)}
}

// ListAvatars lists every stored avatar.
//
// @Summary      List stored avatars
// @Tags         storage
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Envelope{data=[]assetResponse}
// @Failure      401  {object}  Envelope
// @Failure      403  {object}  Envelope
// @Failure      500  {object}  Envelope
// @Router       /storage/avatars [get]
func (h *AssetHandler) ListAvatars(c echo.Context) error {
	assets, err := h.accounts.ListAvatars(c.Request().Context())
	if err != nil {
		return failed("Error listing files", err)
	}

	out := make([]assetResponse, 0, len(assets))
	for _, a := range assets {
		out = append(out, h.present.asset(a))
	}
	return okList(c, out, len(out))
}
