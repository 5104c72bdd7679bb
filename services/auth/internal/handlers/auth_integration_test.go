package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/aminammar1/storefront/libs/logging"
	"github.com/aminammar1/storefront/services/auth/internal/otp"
	"github.com/aminammar1/storefront/services/auth/internal/social"
	"github.com/aminammar1/storefront/services/auth/internal/storage"
	"github.com/aminammar1/storefront/services/testutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Runs against a migrated Postgres. Schema comes from services/auth/migrations.
func TestAuthFlowIntegration(t *testing.T) {
	if os.Getenv("RUN_DB_INTEGRATION") == "" {
		t.Skip("set RUN_DB_INTEGRATION=1 to run")
	}

	pool, err := testutil.SetupTestDB()
	if err != nil {
		t.Skipf("db connection failed: %v", err)
	}
	defer pool.Close()
	ctx := context.Background()
	defer testutil.CleanupTestData(ctx, pool)

	gin.SetMode(gin.TestMode)

	store := storage.New(pool)
	mailer := &fakeMailer{}
	verifier := &fakeVerifier{profiles: map[string]*social.Profile{}}

	h := New(store, otp.New(store, 10*time.Minute, 15*time.Minute), mailer, verifier, logging.Nop(), Config{
		JWTSecret:  testutil.TestsSecret,
		Issuer:     "storefront-auth",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		OTPTTL:     10 * time.Minute,
		Argon2:     testArgon2(),
	})

	router := gin.New()
	h.RegisterRoutes(router)

	email := "flow@test.local"

	t.Run("signup and duplicate", func(t *testing.T) {
		resp := testutil.MakeAPIRequest(router, http.MethodPost, "/auth/signup", signupBody(email))
		testutil.AssertHTTPStatus(t, resp, http.StatusOK)

		resp = testutil.MakeAPIRequest(router, http.MethodPost, "/auth/signup", signupBody(email))
		testutil.AssertErrorCode(t, resp, testutil.ErrorCodeConflict)
	})

	var refreshValue string

	t.Run("login rotates through refresh", func(t *testing.T) {
		resp := testutil.MakeAPIRequest(router, http.MethodPost, "/auth/login", gin.H{"email": email, "password": "pass1word"})
		testutil.AssertHTTPStatus(t, resp, http.StatusOK)

		refresh := testutil.ResponseCookie(resp, "refresh_token")
		if refresh == nil {
			t.Fatal("refresh cookie not set")
		}
		refreshValue = refresh.Value

		rotated := testutil.MakeCookieRequest(router, http.MethodPost, "/auth/refresh", nil, refresh)
		testutil.AssertHTTPStatus(t, rotated, http.StatusOK)

		// The spent token is a replay now.
		replay := testutil.MakeCookieRequest(router, http.MethodPost, "/auth/refresh", nil, refresh)
		testutil.AssertErrorCode(t, replay, testutil.ErrorCodeUnauthorized)
	})

	t.Run("password reset end to end", func(t *testing.T) {
		resp := testutil.MakeAPIRequest(router, http.MethodPost, "/auth/forgot-password", gin.H{"email": email})
		testutil.AssertHTTPStatus(t, resp, http.StatusOK)
		code := mailer.lastCode(t)

		verify := testutil.MakeAPIRequest(router, http.MethodPost, "/auth/verify-otp", gin.H{"email": email, "otp": code})
		testutil.AssertHTTPStatus(t, verify, http.StatusOK)

		var out struct {
			UserID uuid.UUID `json:"userId"`
		}
		if err := json.Unmarshal(verify.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode verify response: %v", err)
		}

		reset := testutil.MakeAPIRequest(router, http.MethodPut, "/auth/reset-password/"+out.UserID.String(),
			gin.H{"newPassword": "brand2new", "confirmPassword": "brand2new"})
		testutil.AssertHTTPStatus(t, reset, http.StatusOK)

		old := testutil.MakeAPIRequest(router, http.MethodPost, "/auth/login", gin.H{"email": email, "password": "pass1word"})
		testutil.AssertErrorCode(t, old, testutil.ErrorCodeUnauthorized)

		fresh := testutil.MakeAPIRequest(router, http.MethodPost, "/auth/login", gin.H{"email": email, "password": "brand2new"})
		testutil.AssertHTTPStatus(t, fresh, http.StatusOK)
	})

	t.Run("reuse revokes the family", func(t *testing.T) {
		if refreshValue == "" {
			t.Skip("no refresh token from earlier subtest")
		}
		replay := testutil.MakeCookieRequest(router, http.MethodPost, "/auth/refresh", nil,
			&http.Cookie{Name: "refresh_token", Value: refreshValue})
		testutil.AssertErrorCode(t, replay, testutil.ErrorCodeUnauthorized)
	})
}
