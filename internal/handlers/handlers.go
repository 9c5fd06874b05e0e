package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"namify/internal/cashu"
	"namify/internal/config"
	"namify/internal/nostr"
	"namify/internal/services"
)

type Handler struct {
	cfg          *config.Config
	lifecycle    *services.Lifecycle
	reservations *services.Reservation
	prices       services.PriceTable
}

func RegisterRoutes(e *echo.Echo, api *echo.Group, cfg *config.Config, lifecycle *services.Lifecycle, reservations *services.Reservation, prices services.PriceTable) {
	h := &Handler{cfg: cfg, lifecycle: lifecycle, reservations: reservations, prices: prices}

	e.POST("/claim", h.Claim)
	e.POST("/reserve", h.Reserve)
	e.GET("/confirm", h.Confirm)
	e.GET("/.well-known/nostr.json", h.NostrJSON)

	api.GET("/price", h.Price)

	registerAdminRoutes(api, h)
}

// respondError maps the service error vocabulary onto HTTP statuses. Unknown
// errors are logged and reported as a generic 500 so datastore and crypto
// details never reach the caller.
func respondError(c echo.Context, err error) error {
	var status int
	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, nostr.ErrAuthentication):
		status = http.StatusUnauthorized
	case errors.Is(err, cashu.ErrPayment):
		status = http.StatusPaymentRequired
	case errors.Is(err, services.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrConflict), errors.Is(err, services.ErrAlreadyUsed):
		status = http.StatusConflict
	case errors.Is(err, services.ErrExpired):
		status = http.StatusGone
	default:
		log.Printf("internal error: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

// requestURL rebuilds the exact URL the client signed in its NIP-98 event.
func requestURL(c echo.Context) string {
	return c.Scheme() + "://" + c.Request().Host + c.Request().RequestURI
}

func (h *Handler) Claim(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return respondError(c, fmt.Errorf("%w: unreadable body", services.ErrValidation))
	}

	pubkey, err := nostr.Authenticate(
		c.Request().Header.Get(echo.HeaderAuthorization),
		c.Request().Method,
		requestURL(c),
		body,
	)
	if err != nil {
		return respondError(c, err)
	}

	var req struct {
		Name   string   `json:"name"`
		Relays []string `json:"relays"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return respondError(c, fmt.Errorf("%w: body is not valid JSON", services.ErrValidation))
	}

	record, err := h.lifecycle.Claim(req.Name, pubkey, req.Relays)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"name":        record.Display,
		"pubkey":      record.OwnerKey,
		"profile_url": fmt.Sprintf("https://%s.%s", record.Canonical, h.cfg.PublicDomain),
		"nip05_aliases": []string{
			record.Canonical + "@" + h.cfg.PublicDomain,
			"_@" + record.Canonical + "." + h.cfg.PublicDomain,
		},
	})
}

func (h *Handler) Reserve(c echo.Context) error {
	var req struct {
		Name       string `json:"name"`
		Email      string `json:"email"`
		InviteCode string `json:"invite_code"`
		Token      string `json:"token"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, fmt.Errorf("%w: body is not valid JSON", services.ErrValidation))
	}

	rt, err := h.reservations.Request(req.Name, req.Email, req.InviteCode, req.Token)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusAccepted, map[string]any{
		"status":     "pending_confirmation",
		"name":       rt.Canonical,
		"expires_at": rt.ExpiresAt,
	})
}

// Confirm renders the HTML result page for the emailed link and performs the
// confirmation transition.
func (h *Handler) Confirm(c echo.Context) error {
	token := c.QueryParam("token")

	record, err := h.reservations.Confirm(token)
	switch {
	case err == nil:
		return c.Render(http.StatusOK, "confirm.html", map[string]any{
			"Outcome": "success",
			"Name":    record.Display,
			"Message": fmt.Sprintf("The name %s is reserved for one year.", record.Display),
		})
	case errors.Is(err, services.ErrAlreadyUsed):
		return c.Render(http.StatusConflict, "confirm.html", map[string]any{
			"Outcome": "already-used",
			"Message": "This confirmation link has already been used.",
		})
	case errors.Is(err, services.ErrExpired):
		return c.Render(http.StatusGone, "confirm.html", map[string]any{
			"Outcome": "expired",
			"Message": "This confirmation link has expired. Please reserve the name again.",
		})
	default:
		return c.Render(http.StatusNotFound, "confirm.html", map[string]any{
			"Outcome": "invalid",
			"Message": "This confirmation link is not valid.",
		})
	}
}

// NostrJSON serves NIP-05 identity discovery. Missing names answer with an
// empty map, never 404, so bulk resolvers scale gracefully.
func (h *Handler) NostrJSON(c echo.Context) error {
	type response struct {
		Names  map[string]string   `json:"names"`
		Relays map[string][]string `json:"relays,omitempty"`
	}
	resp := response{Names: map[string]string{}, Relays: map[string][]string{}}

	if name := c.QueryParam("name"); name != "" {
		record, err := h.lifecycle.Resolve(name)
		if err == nil {
			resp.Names[record.Canonical] = record.OwnerKey
			if len(record.RelayHints) > 0 {
				resp.Relays[record.OwnerKey] = record.RelayHints
			}
		}
		return c.JSON(http.StatusOK, resp)
	}

	records, err := h.lifecycle.ListActive()
	if err != nil {
		return respondError(c, err)
	}
	for _, record := range records {
		resp.Names[record.Canonical] = record.OwnerKey
		if len(record.RelayHints) > 0 {
			resp.Relays[record.OwnerKey] = record.RelayHints
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Price(c echo.Context) error {
	display, canonical, err := h.lifecycle.Canonicalize(c.QueryParam("name"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"name":      display,
		"canonical": canonical,
		"price":     h.prices.Price(canonical),
		"renewal":   h.prices.RenewalPrice(canonical),
	})
}
