package router

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/tinyapp/internal/auth"
	"github.com/patric-chuzhbe/tinyapp/internal/db/memorystorage"
	"github.com/patric-chuzhbe/tinyapp/internal/ipchecker"
	"github.com/patric-chuzhbe/tinyapp/internal/logger"
	"github.com/patric-chuzhbe/tinyapp/internal/mockstorage"
	"github.com/patric-chuzhbe/tinyapp/internal/models"
	"github.com/patric-chuzhbe/tinyapp/internal/service"
)

const (
	testAuthCookieName = "tinyapp_session"
	testShortURLBase   = "http://localhost:8080"
	testTrustedSubnet  = "192.168.1.0/24"
)

var testSigningKey = []byte("router-test-signing-key")

var createdLocationPattern = regexp.MustCompile(`^/urls/([0-9a-zA-Z]{6})$`)

func setupTestRouter(t *testing.T) *httptest.Server {
	t.Helper()

	err := logger.Init("debug")
	require.NoError(t, err)

	theStorage, err := memorystorage.New()
	require.NoError(t, err)

	return setupTestRouterWithService(t, service.New(theStorage, testShortURLBase))
}

func setupTestRouterWithService(t *testing.T, svc *service.Service) *httptest.Server {
	t.Helper()

	theAuth := auth.New(testAuthCookieName, testSigningKey, time.Hour)

	checker, err := ipchecker.New(testTrustedSubnet)
	require.NoError(t, err)

	handler, err := New(svc, theAuth, checker)
	require.NoError(t, err)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return server
}

func newTestClient() *resty.Client {
	return resty.New().SetRedirectPolicy(resty.RedirectPolicyFunc(
		func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	))
}

func registerTestUser(t *testing.T, serverURL, email string) *http.Cookie {
	t.Helper()

	resp, err := newTestClient().R().
		SetFormData(map[string]string{
			"email":    email,
			"password": "hunter2",
		}).
		Post(serverURL + "/register")
	require.NoError(t, err)
	require.Equal(t, http.StatusFound, resp.StatusCode())
	require.Equal(t, "/urls", resp.Header().Get("Location"))

	for _, cookie := range resp.Cookies() {
		if cookie.Name == testAuthCookieName {
			return cookie
		}
	}

	t.Fatal("no session cookie issued on registration")
	return nil
}

func createShortURL(t *testing.T, serverURL string, sessionCookie *http.Cookie, longURL string) string {
	t.Helper()

	resp, err := newTestClient().R().
		SetCookie(sessionCookie).
		SetFormData(map[string]string{"longURL": longURL}).
		Post(serverURL + "/urls")
	require.NoError(t, err)
	require.Equal(t, http.StatusFound, resp.StatusCode())

	match := createdLocationPattern.FindStringSubmatch(resp.Header().Get("Location"))
	require.NotNil(t, match, "the creation redirect should point to the new record")

	return match[1]
}

func TestEndToEndRegisterCreateResolveForbiddenDelete(t *testing.T) {
	server := setupTestRouter(t)

	aliceCookie := registerTestUser(t, server.URL, "alice@example.com")
	short := createShortURL(t, server.URL, aliceCookie, "http://example.com")

	resp, err := newTestClient().R().Get(server.URL + "/u/" + short)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode())
	assert.Equal(t, "http://example.com", resp.Header().Get("Location"))

	bobCookie := registerTestUser(t, server.URL, "bob@example.com")

	resp, err = newTestClient().R().
		SetCookie(bobCookie).
		Post(server.URL + "/urls/" + short + "/delete")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())

	resp, err = newTestClient().R().Get(server.URL + "/u/" + short)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode(), "a forbidden deletion must leave the record resolvable")

	resp, err = newTestClient().R().
		SetCookie(aliceCookie).
		Post(server.URL + "/urls/" + short + "/delete")
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode())

	resp, err = newTestClient().R().Get(server.URL + "/u/" + short)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())
}

func TestRootRedirects(t *testing.T) {
	server := setupTestRouter(t)

	resp, err := newTestClient().R().Get(server.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode())
	assert.Equal(t, "/login", resp.Header().Get("Location"))

	aliceCookie := registerTestUser(t, server.URL, "alice@example.com")

	resp, err = newTestClient().R().SetCookie(aliceCookie).Get(server.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode())
	assert.Equal(t, "/urls", resp.Header().Get("Location"))
}

func TestGetUrlsAnonymousSeesEmptyListing(t *testing.T) {
	server := setupTestRouter(t)

	aliceCookie := registerTestUser(t, server.URL, "alice@example.com")
	createShortURL(t, server.URL, aliceCookie, "http://example.com")

	resp, err := newTestClient().R().Get(server.URL + "/urls")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Contains(t, resp.String(), "Nothing here yet")
	assert.NotContains(t, resp.String(), "http://example.com")

	resp, err = newTestClient().R().SetCookie(aliceCookie).Get(server.URL + "/urls")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Contains(t, resp.String(), "http://example.com")
	assert.Contains(t, resp.String(), "alice@example.com")
}

func TestPostUrlsRequiresSession(t *testing.T) {
	server := setupTestRouter(t)

	resp, err := newTestClient().R().
		SetFormData(map[string]string{"longURL": "http://example.com"}).
		Post(server.URL + "/urls")
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode())
	assert.Equal(t, "/login", resp.Header().Get("Location"))
}

func TestPostUrlsRejectsTooShortURL(t *testing.T) {
	server := setupTestRouter(t)
	aliceCookie := registerTestUser(t, server.URL, "alice@example.com")

	resp, err := newTestClient().R().
		SetCookie(aliceCookie).
		SetFormData(map[string]string{"longURL": "ab"}).
		Post(server.URL + "/urls")
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode())
	assert.Equal(t, "/urls/new?error=url_too_short", resp.Header().Get("Location"))

	resp, err = newTestClient().R().
		SetCookie(aliceCookie).
		Get(server.URL + resp.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Contains(t, resp.String(), "The URL must be at least 6 characters long.")

	resp, err = newTestClient().R().SetCookie(aliceCookie).Get(server.URL + "/urls.json")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())

	listing := models.UserUrls{}
	require.NoError(t, json.Unmarshal(resp.Body(), &listing))
	assert.Empty(t, listing, "a rejected creation must not add a record")
}

func TestGetUrlsNewRedirectsAnonymousToLogin(t *testing.T) {
	server := setupTestRouter(t)

	resp, err := newTestClient().R().Get(server.URL + "/urls/new")
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode())
	assert.Equal(t, "/login", resp.Header().Get("Location"))
}

func TestGetUrlsidAccessGate(t *testing.T) {
	server := setupTestRouter(t)

	aliceCookie := registerTestUser(t, server.URL, "alice@example.com")
	bobCookie := registerTestUser(t, server.URL, "bob@example.com")
	short := createShortURL(t, server.URL, aliceCookie, "http://example.com")

	testCases := []struct {
		name         string
		cookie       *http.Cookie
		short        string
		expectedCode int
	}{
		{"unknown code before any ownership check", aliceCookie, "no6uch", http.StatusNotFound},
		{"unknown code for anonymous", nil, "no6uch", http.StatusNotFound},
		{"anonymous on existing code", nil, short, http.StatusUnauthorized},
		{"foreign owner", bobCookie, short, http.StatusForbidden},
		{"owner", aliceCookie, short, http.StatusOK},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			req := newTestClient().R()
			if testCase.cookie != nil {
				req.SetCookie(testCase.cookie)
			}
			resp, err := req.Get(server.URL + "/urls/" + testCase.short)
			require.NoError(t, err)
			assert.Equal(t, testCase.expectedCode, resp.StatusCode())
		})
	}
}

func TestUpdateFlow(t *testing.T) {
	server := setupTestRouter(t)

	aliceCookie := registerTestUser(t, server.URL, "alice@example.com")
	bobCookie := registerTestUser(t, server.URL, "bob@example.com")
	short := createShortURL(t, server.URL, aliceCookie, "http://example.com")

	resp, err := newTestClient().R().
		SetCookie(bobCookie).
		SetFormData(map[string]string{"longURL": "http://evil.example.com"}).
		Post(server.URL + "/urls/" + short)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())

	resp, err = newTestClient().R().Get(server.URL + "/u/" + short)
	require.NoError(t, err)
	assert.Equal(t, "http://example.com", resp.Header().Get("Location"), "a forbidden update must leave the target unchanged")

	resp, err = newTestClient().R().
		SetCookie(aliceCookie).
		SetFormData(map[string]string{"longURL": "http://example.org"}).
		Post(server.URL + "/urls/" + short)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode())
	assert.Equal(t, "/urls", resp.Header().Get("Location"))

	resp, err = newTestClient().R().Get(server.URL + "/u/" + short)
	require.NoError(t, err)
	assert.Equal(t, "http://example.org", resp.Header().Get("Location"))
}

func TestRegisterValidation(t *testing.T) {
	server := setupTestRouter(t)

	registerTestUser(t, server.URL, "alice@example.com")

	testCases := []struct {
		name          string
		form          map[string]string
		expectedCode  int
		expectedError string
	}{
		{
			"duplicate email",
			map[string]string{"email": "alice@example.com", "password": "hunter2"},
			http.StatusBadRequest,
			"This email is already registered.",
		},
		{
			"blank email",
			map[string]string{"email": "", "password": "hunter2"},
			http.StatusBadRequest,
			"Email and password must not be blank.",
		},
		{
			"blank password",
			map[string]string{"email": "carol@example.com", "password": ""},
			http.StatusBadRequest,
			"Email and password must not be blank.",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			resp, err := newTestClient().R().
				SetFormData(testCase.form).
				Post(server.URL + "/register")
			require.NoError(t, err)
			assert.Equal(t, testCase.expectedCode, resp.StatusCode())
			assert.Contains(t, resp.String(), testCase.expectedError)
		})
	}
}

func TestLoginAndLogout(t *testing.T) {
	server := setupTestRouter(t)
	registerTestUser(t, server.URL, "alice@example.com")

	resp, err := newTestClient().R().
		SetFormData(map[string]string{"email": "alice@example.com", "password": "wrong"}).
		Post(server.URL + "/login")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())
	assert.Contains(t, resp.String(), "Password does not match.")

	resp, err = newTestClient().R().
		SetFormData(map[string]string{"email": "nobody@example.com", "password": "hunter2"}).
		Post(server.URL + "/login")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())
	assert.Contains(t, resp.String(), "No account found for this email.")

	resp, err = newTestClient().R().
		SetFormData(map[string]string{"email": "alice@example.com", "password": "hunter2"}).
		Post(server.URL + "/login")
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode())
	assert.Equal(t, "/urls", resp.Header().Get("Location"))

	var sessionCookie *http.Cookie
	for _, cookie := range resp.Cookies() {
		if cookie.Name == testAuthCookieName {
			sessionCookie = cookie
		}
	}
	require.NotNil(t, sessionCookie)

	resp, err = newTestClient().R().SetCookie(sessionCookie).Post(server.URL + "/logout")
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode())
	assert.Equal(t, "/login", resp.Header().Get("Location"))

	var clearedCookie *http.Cookie
	for _, cookie := range resp.Cookies() {
		if cookie.Name == testAuthCookieName {
			clearedCookie = cookie
		}
	}
	require.NotNil(t, clearedCookie)
	assert.Empty(t, clearedCookie.Value)
}

func TestGetUrlsjson(t *testing.T) {
	server := setupTestRouter(t)
	aliceCookie := registerTestUser(t, server.URL, "alice@example.com")
	short := createShortURL(t, server.URL, aliceCookie, "http://example.com")

	resp, err := newTestClient().R().SetCookie(aliceCookie).Get(server.URL + "/urls.json")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "application/json", resp.Header().Get("Content-Type"))

	listing := models.UserUrls{}
	require.NoError(t, json.Unmarshal(resp.Body(), &listing))
	require.Len(t, listing, 1)
	assert.Equal(t, fmt.Sprintf("%s/u/%s", testShortURLBase, short), listing[0].ShortURL)
	assert.Equal(t, "http://example.com", listing[0].OriginalURL)

	resp, err = newTestClient().R().Get(server.URL + "/urls.json")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())

	listing = models.UserUrls{}
	require.NoError(t, json.Unmarshal(resp.Body(), &listing))
	assert.Empty(t, listing)
}

func TestGetPing(t *testing.T) {
	server := setupTestRouter(t)

	resp, err := newTestClient().R().Get(server.URL + "/ping")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
}

func TestGetPingFailure(t *testing.T) {
	err := logger.Init("debug")
	require.NoError(t, err)

	mockDB := &mockstorage.StorageMock{}
	mockDB.On("Ping", mock.Anything).Return(errors.New("the database is gone"))

	server := setupTestRouterWithService(t, service.New(mockDB, testShortURLBase))

	resp, err := newTestClient().R().Get(server.URL + "/ping")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())

	mockDB.AssertExpectations(t)
}

func TestErrorPagesStayReadableForGzipClients(t *testing.T) {
	server := setupTestRouter(t)

	// Plain net/http with a hand-set Accept-Encoding header: the transport
	// skips its transparent decompression, so the raw wire bytes are
	// observable.
	request, err := http.NewRequest(http.MethodGet, server.URL+"/u/no6uch", nil)
	require.NoError(t, err)
	request.Header.Set("Accept-Encoding", "gzip")

	resp, err := (&http.Client{}).Do(request)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))

	compressed, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	reader, err := gzip.NewReader(bytes.NewReader(compressed))
	require.NoError(t, err)
	defer reader.Close()

	page, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Contains(t, string(page), "No short URL found for no6uch.")
}

func TestGetApiinternalstats(t *testing.T) {
	server := setupTestRouter(t)
	aliceCookie := registerTestUser(t, server.URL, "alice@example.com")
	createShortURL(t, server.URL, aliceCookie, "http://example.com")
	createShortURL(t, server.URL, aliceCookie, "http://example.org")

	resp, err := newTestClient().R().
		SetHeader("X-Real-IP", "192.168.1.17").
		Get(server.URL + "/api/internal/stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())

	stats := models.InternalStatsResponse{}
	require.NoError(t, json.Unmarshal(resp.Body(), &stats))
	assert.Equal(t, int64(2), stats.URLs)
	assert.Equal(t, int64(1), stats.Users)

	resp, err = newTestClient().R().
		SetHeader("X-Real-IP", "10.0.0.1").
		Get(server.URL + "/api/internal/stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())
}
