package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"namify/internal/database"
	"namify/internal/models"
	"namify/internal/services"
)

// bulkLimit caps a single bulk-reserve request.
const bulkLimit = 1000

func registerAdminRoutes(api *echo.Group, h *Handler) {
	admin := api.Group("/admin", h.requireOperator)

	admin.GET("/names", h.AdminSearch)
	admin.POST("/names/reserve", h.AdminReserve)
	admin.POST("/names/bulk-reserve", h.AdminBulkReserve)
	admin.POST("/names/assign", h.AdminAssign)
	admin.POST("/names/revoke", h.AdminRevoke)

	admin.GET("/reserved-words", h.ListReservedWords)
	admin.POST("/reserved-words", h.AddReservedWord)
	admin.DELETE("/reserved-words/:word", h.DeleteReservedWord)

	admin.POST("/invites", h.MintInvites)
}

// requireOperator trusts the reverse proxy to assert operator identity via a
// configured header. No header, no admin surface, regardless of path.
func (h *Handler) requireOperator(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		operator := c.Request().Header.Get(h.cfg.OperatorHeader)
		if operator == "" {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "operator access required"})
		}
		return next(c)
	}
}

func (h *Handler) AdminSearch(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	records, total, err := h.lifecycle.Search(c.QueryParam("q"), c.QueryParam("status"), page, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"total": total,
		"names": records,
	})
}

func (h *Handler) AdminReserve(c echo.Context) error {
	var req struct {
		Name   string `json:"name"`
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, fmt.Errorf("%w: body is not valid JSON", services.ErrValidation))
	}

	record, err := h.lifecycle.Reserve(req.Name, req.Reason, false)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, record)
}

// AdminBulkReserve reserves up to bulkLimit names in one request. Items are
// independent: each failure is reported in place and never aborts the batch.
func (h *Handler) AdminBulkReserve(c echo.Context) error {
	var req struct {
		Names  string `json:"names"`
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, fmt.Errorf("%w: body is not valid JSON", services.ErrValidation))
	}

	items := splitBulkNames(req.Names)
	if len(items) == 0 {
		return respondError(c, fmt.Errorf("%w: no names given", services.ErrValidation))
	}
	if len(items) > bulkLimit {
		return respondError(c, fmt.Errorf("%w: at most %d names per request", services.ErrValidation, bulkLimit))
	}

	type result struct {
		Name  string `json:"name"`
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}
	results := make([]result, 0, len(items))
	reserved := 0
	for _, name := range items {
		if _, err := h.lifecycle.Reserve(name, req.Reason, false); err != nil {
			results = append(results, result{Name: name, Error: err.Error()})
			continue
		}
		reserved++
		results = append(results, result{Name: name, OK: true})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"reserved": reserved,
		"results":  results,
	})
}

// splitBulkNames splits a pasted blob on commas, whitespace, and newlines,
// and strips a leading @ from each entry (operators paste handles).
func splitBulkNames(blob string) []string {
	fields := strings.FieldsFunc(blob, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	var out []string
	for _, f := range fields {
		if f = strings.TrimPrefix(f, "@"); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func (h *Handler) AdminAssign(c echo.Context) error {
	var req struct {
		Name   string `json:"name"`
		Pubkey string `json:"pubkey"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, fmt.Errorf("%w: body is not valid JSON", services.ErrValidation))
	}
	if req.Pubkey == "" {
		return respondError(c, fmt.Errorf("%w: pubkey is required", services.ErrValidation))
	}

	record, err := h.lifecycle.Assign(req.Name, req.Pubkey)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, record)
}

func (h *Handler) AdminRevoke(c echo.Context) error {
	var req struct {
		Name string `json:"name"`
		Burn bool   `json:"burn"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, fmt.Errorf("%w: body is not valid JSON", services.ErrValidation))
	}

	record, err := h.lifecycle.Revoke(req.Name, req.Burn)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, record)
}

func (h *Handler) ListReservedWords(c echo.Context) error {
	var words []models.ReservedWord
	if err := database.DB.Order("word").Find(&words).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, words)
}

func (h *Handler) AddReservedWord(c echo.Context) error {
	var req struct {
		Word     string `json:"word"`
		Category string `json:"category"`
		Reason   string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, fmt.Errorf("%w: body is not valid JSON", services.ErrValidation))
	}

	// Reserved words are stored in canonical form so the screen matches
	// whatever spelling a claimant uses.
	_, canonical, err := h.lifecycle.Canonicalize(req.Word)
	if err != nil {
		return respondError(c, err)
	}

	word := models.ReservedWord{Word: canonical, Category: req.Category, Reason: req.Reason}
	if err := database.DB.Create(&word).Error; err != nil {
		return respondError(c, fmt.Errorf("%w: word already reserved", services.ErrConflict))
	}
	return c.JSON(http.StatusCreated, word)
}

func (h *Handler) DeleteReservedWord(c echo.Context) error {
	res := database.DB.Where("word = ?", c.Param("word")).Delete(&models.ReservedWord{})
	if res.Error != nil {
		return respondError(c, res.Error)
	}
	if res.RowsAffected == 0 {
		return respondError(c, fmt.Errorf("%w: reserved word", services.ErrNotFound))
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) MintInvites(c echo.Context) error {
	var req struct {
		Count int `json:"count"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, fmt.Errorf("%w: body is not valid JSON", services.ErrValidation))
	}

	invites, err := h.reservations.MintInvites(req.Count)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, invites)
}
