package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/aminammar1/storefront/libs/logging"
	"github.com/aminammar1/storefront/services/profile/internal/storage"
	"github.com/aminammar1/storefront/services/testutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeStore struct {
	profiles map[uuid.UUID]*storage.Profile
}

func (f *fakeStore) GetProfile(_ context.Context, id uuid.UUID) (*storage.Profile, error) {
	if p, ok := f.profiles[id]; ok {
		return p, nil
	}
	return nil, storage.ErrNotFound
}

func setupRouter(store ProfileStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	New(store, logging.Nop()).Register(router, testutil.TestsSecret)
	return router
}

func TestMeReturnsProfile(t *testing.T) {
	provider := "google"
	photo := "http://p/a.png"
	router := setupRouter(&fakeStore{profiles: map[uuid.UUID]*storage.Profile{
		testutil.DemoUserID: {
			ID:        testutil.DemoUserID,
			Name:      testutil.DemoName,
			Email:     testutil.DemoEmail,
			Provider:  &provider,
			PhotoURL:  &photo,
			CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		},
	}})

	token, err := testutil.GenerateJWT(testutil.DemoUserID, testutil.TestsSecret, 15*time.Minute, time.Now())
	if err != nil {
		t.Fatalf("generate jwt: %v", err)
	}

	resp := testutil.MakeAuthRequest(router, http.MethodGet, "/me", nil, token)
	testutil.AssertHTTPStatus(t, resp, http.StatusOK)

	var out meResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.ID != testutil.DemoUserID || out.Email != testutil.DemoEmail {
		t.Fatalf("unexpected profile: %+v", out)
	}
	if out.Provider != "google" || out.Photo != photo {
		t.Fatalf("social fields missing: %+v", out)
	}
}

func TestMeRequiresToken(t *testing.T) {
	router := setupRouter(&fakeStore{profiles: map[uuid.UUID]*storage.Profile{}})

	resp := testutil.MakeAuthRequest(router, http.MethodGet, "/me", nil, "")
	testutil.AssertErrorCode(t, resp, testutil.ErrorCodeUnauthorized)

	resp = testutil.MakeAuthRequest(router, http.MethodGet, "/me", nil, "not-a-jwt")
	testutil.AssertErrorCode(t, resp, testutil.ErrorCodeUnauthorized)
}

func TestMeAcceptsAccessCookie(t *testing.T) {
	router := setupRouter(&fakeStore{profiles: map[uuid.UUID]*storage.Profile{
		testutil.DemoUserID: {
			ID:        testutil.DemoUserID,
			Name:      testutil.DemoName,
			Email:     testutil.DemoEmail,
			CreatedAt: time.Now(),
		},
	}})

	token, err := testutil.GenerateJWT(testutil.DemoUserID, testutil.TestsSecret, 15*time.Minute, time.Now())
	if err != nil {
		t.Fatalf("generate jwt: %v", err)
	}

	resp := testutil.MakeCookieRequest(router, http.MethodGet, "/me", nil,
		&http.Cookie{Name: "access_token", Value: token})
	testutil.AssertHTTPStatus(t, resp, http.StatusOK)
}

func TestMeUnknownUser(t *testing.T) {
	router := setupRouter(&fakeStore{profiles: map[uuid.UUID]*storage.Profile{}})

	token, err := testutil.GenerateJWT(testutil.DemoUserID, testutil.TestsSecret, 15*time.Minute, time.Now())
	if err != nil {
		t.Fatalf("generate jwt: %v", err)
	}

	resp := testutil.MakeAuthRequest(router, http.MethodGet, "/me", nil, token)
	testutil.AssertErrorCode(t, resp, testutil.ErrorCodeUnauthorized)
}
