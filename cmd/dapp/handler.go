package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/samber/do"

	"tonkit/tonconnect"
)

func newRouter(container *do.Injector) (http.Handler, error) {
	r := echo.New()
	r.Pre(middleware.RemoveTrailingSlash())
	r.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339}\t${method}\t${uri}\t${status}\t${latency_human}\n",
	}))
	r.Use(middleware.Recover())

	r.GET("", func(c echo.Context) error {
		return c.String(http.StatusOK, "tonkit dapp")
	})

	h := handlers{container}
	r.GET("/tonconnect-manifest.json", h.Manifest)
	r.GET("/wallets", h.Wallets)
	r.POST("/connect", h.Connect)
	r.GET("/connect/:user/status", h.Status)
	r.POST("/connect/:user/transfer", h.Transfer)
	r.POST("/connect/:user/disconnect", h.Disconnect)

	return r, nil
}

type handlers struct {
	container *do.Injector
}

func (h handlers) Manifest(c echo.Context) error {
	cfg := do.MustInvoke[config](h.container)
	return c.JSON(http.StatusOK, echo.Map{
		"url":     cfg.AppURL,
		"name":    cfg.AppName,
		"iconUrl": cfg.AppURL + "/icon.png",
	})
}

func (h handlers) Wallets(c echo.Context) error {
	tc := do.MustInvoke[*tonconnect.TonConnect](h.container)
	apps, err := tc.Wallets(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, apps)
}

type connectRequest struct {
	UserID string `json:"user_id"`
	Wallet string `json:"wallet"`
}

func (h handlers) Connect(c echo.Context) error {
	var req connectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" {
		req.UserID = uuid.NewString()
	}
	if req.Wallet == "" {
		req.Wallet = "tonkeeper"
	}

	ctx := c.Request().Context()
	tc := do.MustInvoke[*tonconnect.TonConnect](h.container)
	sessions := do.MustInvoke[*sessionStore](h.container)

	app, err := tc.WalletApp(ctx, req.Wallet)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	payload, err := tonconnect.GenerateProofPayload(time.Hour)
	if err != nil {
		return err
	}

	conn := tc.Connector(req.UserID)
	link, err := conn.ConnectWallet(ctx, app, tonconnect.WithProofPayload(payload))
	if err != nil {
		if errors.Is(err, tonconnect.ErrAlreadyConnected) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return err
	}

	if err := sessions.Save(ctx, &dappSession{
		UserID:       req.UserID,
		ProofPayload: payload,
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"user_id": req.UserID,
		"link":    link,
	})
}

// Status reports the connection state and lazily runs the ton_proof
// check the first time the wallet shows up connected.
func (h handlers) Status(c echo.Context) error {
	ctx := c.Request().Context()
	userID := c.Param("user")

	tc := do.MustInvoke[*tonconnect.TonConnect](h.container)
	sessions := do.MustInvoke[*sessionStore](h.container)
	verifier := do.MustInvoke[*tonconnect.ProofVerifier](h.container)

	sess, err := sessions.Get(ctx, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "unknown session")
	}

	conn := tc.Connector(userID)
	if !conn.Connected() {
		return c.JSON(http.StatusOK, echo.Map{"status": "pending"})
	}

	if !sess.Verified {
		wallet := conn.Wallet()
		if wallet.Proof == nil {
			return echo.NewHTTPError(http.StatusForbidden, "wallet sent no proof")
		}
		if err := verifier.Verify(ctx, wallet.Account, wallet.Proof); err != nil {
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		}
		sess.Verified = true
		sess.Address = wallet.Account.Address
		if err := sessions.Save(ctx, sess); err != nil {
			return err
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":  "connected",
		"address": sess.Address,
	})
}

type transferRequest struct {
	To      string `json:"to"`
	Amount  string `json:"amount"`
	Comment string `json:"comment"`
}

func (h handlers) Transfer(c echo.Context) error {
	var req transferRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.To == "" || req.Amount == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "to and amount are required")
	}

	ctx := c.Request().Context()
	userID := c.Param("user")
	tc := do.MustInvoke[*tonconnect.TonConnect](h.container)

	conn := tc.Connector(userID)
	if !conn.Connected() {
		if err := conn.RestoreConnection(ctx); err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "wallet not connected")
		}
	}

	id, err := conn.SendTransfer(ctx, req.To, req.Amount, req.Comment)
	if err != nil {
		if errors.Is(err, tonconnect.ErrFeatureNotSupported) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return err
	}

	res, err := conn.WaitTransaction(ctx, id)
	if err != nil {
		if tonconnect.UserRejected(err) {
			return echo.NewHTTPError(http.StatusForbidden, "user rejected the transaction")
		}
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"boc": res.BOC})
}

func (h handlers) Disconnect(c echo.Context) error {
	ctx := c.Request().Context()
	userID := c.Param("user")

	tc := do.MustInvoke[*tonconnect.TonConnect](h.container)
	sessions := do.MustInvoke[*sessionStore](h.container)

	conn := tc.Connector(userID)
	if conn.Connected() {
		if err := conn.Disconnect(ctx); err != nil && !tonconnect.UserRejected(err) {
			return err
		}
	}
	if err := sessions.Delete(ctx, userID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
