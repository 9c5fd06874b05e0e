package handlers

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"namify/internal/cashu"
	"namify/internal/config"
	"namify/internal/database"
	"namify/internal/models"
	"namify/internal/nostr"
	"namify/internal/services"
	"namify/internal/web"
)

const (
	testHost = "names.example.com"
	testMint = "https://mint.example.com"
)

func newServer(t *testing.T) (*echo.Echo, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A second pooled connection would see its own empty in-memory database.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	database.DB = db

	cfg := &config.Config{
		PublicDomain:   testHost,
		OperatorHeader: "X-Operator",
	}
	prices := services.NewPriceTable("", "", nil)
	verifier := cashu.NewVerifier([]string{testMint})
	lifecycle := services.NewLifecycle(db)
	reservations := services.NewReservation(db, lifecycle, prices, verifier, services.LogMailer{}, cfg.PublicDomain, time.Hour)

	e := echo.New()
	e.Renderer = &web.TemplateRenderer{
		Templates: map[string]*template.Template{
			"confirm.html": template.Must(template.ParseFiles("../../web/templates/layout.html", "../../web/templates/confirm.html")),
		},
	}
	api := e.Group("/api")
	RegisterRoutes(e, api, cfg, lifecycle, reservations, prices)
	return e, db
}

func do(e *echo.Echo, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Host = testHost
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

// nip98Header signs a NIP-98 event over the request, the way a client would.
func nip98Header(t *testing.T, method, url, body string) string {
	t.Helper()

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	ev := nostr.Event{
		PubKey:    hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey())),
		CreatedAt: time.Now().Unix(),
		Kind:      nostr.KindHTTPAuth,
		Tags: [][]string{
			{"u", url},
			{"method", method},
		},
	}
	if body != "" {
		sum := sha256.Sum256([]byte(body))
		ev.Tags = append(ev.Tags, []string{"payload", hex.EncodeToString(sum[:])})
	}
	ev.ID = ev.ComputeID()
	idBytes, err := hex.DecodeString(ev.ID)
	require.NoError(t, err)
	sig, err := schnorr.Sign(priv, idBytes)
	require.NoError(t, err)
	ev.Sig = hex.EncodeToString(sig.Serialize())

	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	return "Nostr " + base64.StdEncoding.EncodeToString(raw)
}

func TestClaimEndToEnd(t *testing.T) {
	e, _ := newServer(t)

	body := `{"name":"Alice","relays":["wss://relay.example.com"]}`
	header := nip98Header(t, http.MethodPost, "http://"+testHost+"/claim", body)

	rec := do(e, http.MethodPost, "/claim", body, map[string]string{
		echo.HeaderAuthorization: header,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Name         string   `json:"name"`
		Pubkey       string   `json:"pubkey"`
		ProfileURL   string   `json:"profile_url"`
		NIP05Aliases []string `json:"nip05_aliases"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Alice", resp.Name)
	assert.NotEmpty(t, resp.Pubkey)
	assert.Equal(t, "https://alice."+testHost, resp.ProfileURL)
	assert.Contains(t, resp.NIP05Aliases, "alice@"+testHost)
}

func TestClaimWithoutAuthIsRejected(t *testing.T) {
	e, _ := newServer(t)

	rec := do(e, http.MethodPost, "/claim", `{"name":"alice"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestClaimSignedForDifferentURLIsRejected(t *testing.T) {
	e, _ := newServer(t)

	body := `{"name":"alice"}`
	header := nip98Header(t, http.MethodPost, "http://evil.example.com/claim", body)

	rec := do(e, http.MethodPost, "/claim", body, map[string]string{
		echo.HeaderAuthorization: header,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNostrJSON(t *testing.T) {
	e, db := newServer(t)

	_, err := services.NewLifecycle(db).Claim("alice", "ab"+strings.Repeat("cd", 31), []string{"wss://relay.example.com"})
	require.NoError(t, err)

	rec := do(e, http.MethodGet, "/.well-known/nostr.json?name=alice", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Names  map[string]string   `json:"names"`
		Relays map[string][]string `json:"relays"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	pubkey, ok := resp.Names["alice"]
	require.True(t, ok)
	assert.Equal(t, []string{"wss://relay.example.com"}, resp.Relays[pubkey])
}

func TestNostrJSONUnknownNameIsEmptyMap(t *testing.T) {
	e, _ := newServer(t)

	rec := do(e, http.MethodGet, "/.well-known/nostr.json?name=ghost", "", nil)
	// Unknown names answer 200 with an empty map, not 404.
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"names":{}}`, rec.Body.String())
}

func TestPrice(t *testing.T) {
	e, _ := newServer(t)

	rec := do(e, http.MethodGet, "/api/price?name=Alice", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Canonical string `json:"canonical"`
		Price     uint64 `json:"price"`
		Renewal   uint64 `json:"renewal"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp.Canonical)
	assert.Equal(t, uint64(2000), resp.Price)
	assert.Equal(t, uint64(4000), resp.Renewal)

	rec = do(e, http.MethodGet, "/api/price?name=bad_name", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminGate(t *testing.T) {
	e, _ := newServer(t)

	// No operator header: 403 on every admin route.
	for _, target := range []string{"/api/admin/names", "/api/admin/reserved-words"} {
		rec := do(e, http.MethodGet, target, "", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, target)
	}

	rec := do(e, http.MethodGet, "/api/admin/names", "", map[string]string{"X-Operator": "ops"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminBulkReserveIsolatesFailures(t *testing.T) {
	e, _ := newServer(t)

	body := `{"names":"@alice, bob\ncarol dave_x","reason":"launch hold"}`
	rec := do(e, http.MethodPost, "/api/admin/names/bulk-reserve", body, map[string]string{"X-Operator": "ops"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Reserved int `json:"reserved"`
		Results  []struct {
			Name  string `json:"name"`
			OK    bool   `json:"ok"`
			Error string `json:"error"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Reserved)
	require.Len(t, resp.Results, 4)

	// The invalid entry fails in place without aborting the batch.
	assert.Equal(t, "dave_x", resp.Results[3].Name)
	assert.False(t, resp.Results[3].OK)
	assert.NotEmpty(t, resp.Results[3].Error)
}

func TestAdminBulkReserveLimit(t *testing.T) {
	e, _ := newServer(t)

	names := make([]string, bulkLimit+1)
	for i := range names {
		names[i] = "name" + strings.Repeat("x", 3)
	}
	body, err := json.Marshal(map[string]string{"names": strings.Join(names, ",")})
	require.NoError(t, err)

	rec := do(e, http.MethodPost, "/api/admin/names/bulk-reserve", string(body), map[string]string{"X-Operator": "ops"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReservedWordCRUD(t *testing.T) {
	e, db := newServer(t)
	op := map[string]string{"X-Operator": "ops"}

	rec := do(e, http.MethodPost, "/api/admin/reserved-words", `{"word":"Nostr","category":"infra","reason":"protocol name"}`, op)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Stored canonicalized, so any spelling is screened.
	var word models.ReservedWord
	require.NoError(t, db.Where("word = ?", "nostr").First(&word).Error)

	rec = do(e, http.MethodGet, "/api/admin/reserved-words", "", op)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nostr")

	rec = do(e, http.MethodDelete, "/api/admin/reserved-words/nostr", "", op)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(e, http.MethodDelete, "/api/admin/reserved-words/nostr", "", op)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReserveAndConfirmFlow(t *testing.T) {
	e, _ := newServer(t)
	op := map[string]string{"X-Operator": "ops"}

	rec := do(e, http.MethodPost, "/api/admin/invites", `{"count":1}`, op)
	require.Equal(t, http.StatusCreated, rec.Code)
	var invites []models.InviteCode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &invites))
	require.Len(t, invites, 1)

	body := `{"name":"alice","email":"alice@example.com","invite_code":"` + invites[0].Code + `"}`
	rec = do(e, http.MethodPost, "/reserve", body, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	// The emailed token is not exposed over the API; read it back from the
	// store the way the mailer received it.
	var rt models.ReservationToken
	require.NoError(t, database.DB.First(&rt).Error)

	rec = do(e, http.MethodGet, "/confirm?token="+rt.Token, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Reservation confirmed")

	rec = do(e, http.MethodGet, "/confirm?token="+rt.Token, "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already been used")

	rec = do(e, http.MethodGet, "/confirm?token=bogus", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReserveWithoutPayment(t *testing.T) {
	e, _ := newServer(t)

	rec := do(e, http.MethodPost, "/reserve", `{"name":"alice","email":"a@example.com"}`, nil)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}
