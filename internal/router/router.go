// Package router wires the HTTP surface: the HTML pages for managing short
// URLs and accounts, the public redirect endpoint, the JSON listing and the
// operational endpoints. Handlers translate the service error taxonomy into
// HTTP statuses and rendering contexts.
package router

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/tinyapp/internal/auth"
	"github.com/patric-chuzhbe/tinyapp/internal/gzippedhttp"
	"github.com/patric-chuzhbe/tinyapp/internal/ipchecker"
	"github.com/patric-chuzhbe/tinyapp/internal/logger"
	"github.com/patric-chuzhbe/tinyapp/internal/models"
	"github.com/patric-chuzhbe/tinyapp/internal/service"
	"github.com/patric-chuzhbe/tinyapp/internal/user"
)

//go:embed templates/*.gohtml
var templatesFS embed.FS

// Router holds the handler dependencies.
type Router struct {
	svc       *service.Service
	theAuth   *auth.Auth
	ipChecker *ipchecker.IPChecker
	templates *template.Template
}

// templateData is the rendering context passed to every page template.
type templateData struct {
	// User is the session user, nil for anonymous visitors.
	User *user.User

	// Error is the human-readable message of a rejected operation.
	Error string

	// URLs feeds the listing page, keyed by short code.
	URLs map[string]*models.URLRecord

	// URL feeds the single-record page.
	URL *models.URLRecord

	// Email keeps the submitted value when a login/register form is re-rendered.
	Email string
}

// New builds the chi router with all middleware and routes attached.
func New(
	svc *service.Service,
	theAuth *auth.Auth,
	ipChecker *ipchecker.IPChecker,
) (*chi.Mux, error) {
	templates, err := template.
		New("tinyapp").
		Funcs(template.FuncMap{
			"shortURL": svc.GetShortURL,
		}).
		ParseFS(templatesFS, "templates/*.gohtml")
	if err != nil {
		return nil, err
	}

	theRouter := &Router{
		svc:       svc,
		theAuth:   theAuth,
		ipChecker: ipChecker,
		templates: templates,
	}

	router := chi.NewRouter()
	router.Use(
		logger.WithLoggingHTTPMiddleware,
		gzippedhttp.UngzipRequest,
		theAuth.Identify,
		gzippedhttp.GzipResponse,
	)

	router.Get(`/`, theRouter.GetRoot)
	router.Get(`/urls`, theRouter.GetUrls)
	router.Post(`/urls`, theRouter.PostUrls)
	router.Get(`/urls.json`, theRouter.GetUrlsjson)
	router.Get(`/urls/new`, theRouter.GetUrlsnew)
	router.Get(`/urls/{id}`, theRouter.GetUrlsid)
	router.Post(`/urls/{id}`, theRouter.PostUrlsid)
	router.Post(`/urls/{id}/delete`, theRouter.PostUrlsiddelete)
	router.Get(`/u/{short}`, theRouter.GetRedirecttolongurl)
	router.Get(`/register`, theRouter.GetRegister)
	router.Post(`/register`, theRouter.PostRegister)
	router.Get(`/login`, theRouter.GetLogin)
	router.Post(`/login`, theRouter.PostLogin)
	router.Post(`/logout`, theRouter.PostLogout)
	router.Get(`/ping`, theRouter.GetPing)
	router.Get(`/api/internal/stats`, theRouter.GetApiinternalstats)

	return router, nil
}

// GetRoot redirects to the listing for authenticated visitors and to the
// login page for everyone else.
func (theRouter *Router) GetRoot(response http.ResponseWriter, request *http.Request) {
	if auth.UserIDFromContext(request.Context()) != "" {
		http.Redirect(response, request, "/urls", http.StatusFound)
		return
	}
	http.Redirect(response, request, "/login", http.StatusFound)
}

// GetUrls renders the caller's own short URLs. Anonymous visitors get an
// empty listing.
func (theRouter *Router) GetUrls(response http.ResponseWriter, request *http.Request) {
	userID := auth.UserIDFromContext(request.Context())

	urls, err := theRouter.svc.GetUserURLs(request.Context(), userID)
	if err != nil {
		theRouter.internalError(response, "GetUserURLs", err)
		return
	}

	theRouter.render(response, http.StatusOK, "urls_index.gohtml", &templateData{
		User: theRouter.currentUser(request),
		URLs: urls,
	})
}

// PostUrls creates a short URL from the submitted form. Requests without a
// session and requests with a too-short URL are silently redirected.
func (theRouter *Router) PostUrls(response http.ResponseWriter, request *http.Request) {
	userID := auth.UserIDFromContext(request.Context())
	if userID == "" {
		http.Redirect(response, request, "/login", http.StatusFound)
		return
	}

	if err := request.ParseForm(); err != nil {
		http.Error(response, err.Error(), http.StatusBadRequest)
		return
	}

	short, err := theRouter.svc.CreateShortURL(request.Context(), userID, request.FormValue("longURL"))
	if errors.Is(err, models.ErrValidation) {
		http.Redirect(response, request, "/urls/new?error=url_too_short", http.StatusFound)
		return
	}
	if err != nil {
		theRouter.internalError(response, "CreateShortURL", err)
		return
	}

	http.Redirect(response, request, "/urls/"+short, http.StatusFound)
}

// GetUrlsnew renders the creation form. Anonymous visitors are sent to login.
// A rejected creation redirects back here with an error marker in the query.
func (theRouter *Router) GetUrlsnew(response http.ResponseWriter, request *http.Request) {
	if auth.UserIDFromContext(request.Context()) == "" {
		http.Redirect(response, request, "/login", http.StatusFound)
		return
	}

	data := &templateData{
		User: theRouter.currentUser(request),
	}
	if request.URL.Query().Get("error") == "url_too_short" {
		data.Error = fmt.Sprintf("The URL must be at least %d characters long.", service.MinLongURLLength)
	}

	theRouter.render(response, http.StatusOK, "urls_new.gohtml", data)
}

// GetUrlsid renders a single owned record with its update form.
func (theRouter *Router) GetUrlsid(response http.ResponseWriter, request *http.Request) {
	userID := auth.UserIDFromContext(request.Context())
	short := chi.URLParam(request, "id")

	record, err := theRouter.svc.GetURL(request.Context(), userID, short)
	if err != nil {
		theRouter.renderAccessError(response, request, err)
		return
	}

	theRouter.render(response, http.StatusOK, "urls_show.gohtml", &templateData{
		User: theRouter.currentUser(request),
		URL:  record,
	})
}

// PostUrlsid overwrites the destination of an owned record.
func (theRouter *Router) PostUrlsid(response http.ResponseWriter, request *http.Request) {
	userID := auth.UserIDFromContext(request.Context())
	short := chi.URLParam(request, "id")

	if err := request.ParseForm(); err != nil {
		http.Error(response, err.Error(), http.StatusBadRequest)
		return
	}

	err := theRouter.svc.UpdateURL(request.Context(), userID, short, request.FormValue("longURL"))
	if errors.Is(err, models.ErrValidation) {
		record, getErr := theRouter.svc.GetURL(request.Context(), userID, short)
		if getErr != nil {
			theRouter.renderAccessError(response, request, getErr)
			return
		}
		theRouter.render(response, http.StatusBadRequest, "urls_show.gohtml", &templateData{
			User:  theRouter.currentUser(request),
			URL:   record,
			Error: "The new URL must be at least 6 characters long.",
		})
		return
	}
	if err != nil {
		theRouter.renderAccessError(response, request, err)
		return
	}

	http.Redirect(response, request, "/urls", http.StatusFound)
}

// PostUrlsiddelete removes an owned record.
func (theRouter *Router) PostUrlsiddelete(response http.ResponseWriter, request *http.Request) {
	userID := auth.UserIDFromContext(request.Context())
	short := chi.URLParam(request, "id")

	if err := theRouter.svc.DeleteURL(request.Context(), userID, short); err != nil {
		theRouter.renderAccessError(response, request, err)
		return
	}

	http.Redirect(response, request, "/urls", http.StatusFound)
}

// GetRedirecttolongurl is the public redirect endpoint: no ownership check,
// any visitor may follow any short link.
func (theRouter *Router) GetRedirecttolongurl(response http.ResponseWriter, request *http.Request) {
	short := chi.URLParam(request, "short")

	longURL, err := theRouter.svc.Resolve(request.Context(), short)
	if errors.Is(err, models.ErrNotFound) {
		theRouter.render(response, http.StatusNotFound, "error.gohtml", &templateData{
			User:  theRouter.currentUser(request),
			Error: "No short URL found for " + short + ".",
		})
		return
	}
	if err != nil {
		theRouter.internalError(response, "Resolve", err)
		return
	}

	http.Redirect(response, request, longURL, http.StatusTemporaryRedirect)
}

// GetUrlsjson returns the caller's own records as JSON.
func (theRouter *Router) GetUrlsjson(response http.ResponseWriter, request *http.Request) {
	userID := auth.UserIDFromContext(request.Context())

	urls, err := theRouter.svc.GetUserURLs(request.Context(), userID)
	if err != nil {
		theRouter.internalError(response, "GetUserURLs", err)
		return
	}

	result := models.UserUrls{}
	for short, record := range urls {
		result = append(result, models.UserURL{
			ShortURL:    theRouter.svc.GetShortURL(short),
			OriginalURL: record.LongURL,
		})
	}

	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(response).Encode(result); err != nil {
		logger.Log.Debugln("Error encoding the `GET /urls.json` response: ", zap.Error(err))
	}
}

// GetRegister renders the registration form.
func (theRouter *Router) GetRegister(response http.ResponseWriter, request *http.Request) {
	if auth.UserIDFromContext(request.Context()) != "" {
		http.Redirect(response, request, "/urls", http.StatusFound)
		return
	}

	theRouter.render(response, http.StatusOK, "register.gohtml", &templateData{})
}

// PostRegister creates an account and establishes the session.
func (theRouter *Router) PostRegister(response http.ResponseWriter, request *http.Request) {
	if err := request.ParseForm(); err != nil {
		http.Error(response, err.Error(), http.StatusBadRequest)
		return
	}

	email := request.FormValue("email")
	password := request.FormValue("password")

	usr, err := theRouter.svc.RegisterUser(request.Context(), email, password)
	if errors.Is(err, models.ErrValidation) {
		theRouter.render(response, http.StatusBadRequest, "register.gohtml", &templateData{
			Error: "Email and password must not be blank.",
			Email: email,
		})
		return
	}
	if errors.Is(err, models.ErrEmailTaken) {
		theRouter.render(response, http.StatusBadRequest, "register.gohtml", &templateData{
			Error: "This email is already registered.",
			Email: email,
		})
		return
	}
	if err != nil {
		theRouter.internalError(response, "RegisterUser", err)
		return
	}

	if err := theRouter.theAuth.IssueSession(response, usr.ID); err != nil {
		theRouter.internalError(response, "IssueSession", err)
		return
	}

	http.Redirect(response, request, "/urls", http.StatusFound)
}

// GetLogin renders the login form.
func (theRouter *Router) GetLogin(response http.ResponseWriter, request *http.Request) {
	if auth.UserIDFromContext(request.Context()) != "" {
		http.Redirect(response, request, "/urls", http.StatusFound)
		return
	}

	theRouter.render(response, http.StatusOK, "login.gohtml", &templateData{})
}

// PostLogin authenticates the visitor and establishes the session.
// Unknown email and wrong password both deny access with 403; only the
// user-facing message differs.
func (theRouter *Router) PostLogin(response http.ResponseWriter, request *http.Request) {
	if err := request.ParseForm(); err != nil {
		http.Error(response, err.Error(), http.StatusBadRequest)
		return
	}

	email := request.FormValue("email")
	password := request.FormValue("password")

	usr, err := theRouter.svc.AuthenticateUser(request.Context(), email, password)
	if errors.Is(err, models.ErrNotFound) {
		theRouter.render(response, http.StatusForbidden, "login.gohtml", &templateData{
			Error: "No account found for this email.",
			Email: email,
		})
		return
	}
	if errors.Is(err, models.ErrInvalidCredentials) {
		theRouter.render(response, http.StatusForbidden, "login.gohtml", &templateData{
			Error: "Password does not match.",
			Email: email,
		})
		return
	}
	if err != nil {
		theRouter.internalError(response, "AuthenticateUser", err)
		return
	}

	if err := theRouter.theAuth.IssueSession(response, usr.ID); err != nil {
		theRouter.internalError(response, "IssueSession", err)
		return
	}

	http.Redirect(response, request, "/urls", http.StatusFound)
}

// PostLogout clears the session cookie. The token itself stays valid until
// it expires - there is no server-side revocation in this trust model.
func (theRouter *Router) PostLogout(response http.ResponseWriter, request *http.Request) {
	theRouter.theAuth.ClearSession(response)
	http.Redirect(response, request, "/login", http.StatusFound)
}

// GetPing reports storage health.
func (theRouter *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := theRouter.svc.Ping(request.Context()); err != nil {
		logger.Log.Debugln("Error calling the `svc.Ping()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	response.WriteHeader(http.StatusOK)
}

// GetApiinternalstats returns service totals to callers from the trusted subnet.
func (theRouter *Router) GetApiinternalstats(response http.ResponseWriter, request *http.Request) {
	if !theRouter.ipChecker.IsRequestAllowed(request) {
		response.WriteHeader(http.StatusForbidden)
		return
	}

	stats, err := theRouter.svc.GetInternalStats(request.Context())
	if err != nil {
		theRouter.internalError(response, "GetInternalStats", err)
		return
	}

	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(response).Encode(stats); err != nil {
		logger.Log.Debugln("Error encoding the `GET /api/internal/stats` response: ", zap.Error(err))
	}
}

// currentUser resolves the session user record for rendering. A dangling
// session id (user id with no stored record) renders as anonymous.
func (theRouter *Router) currentUser(request *http.Request) *user.User {
	userID := auth.UserIDFromContext(request.Context())
	if userID == "" {
		return nil
	}

	usr, found, err := theRouter.svc.GetUser(request.Context(), userID)
	if err != nil || !found {
		return nil
	}

	return usr
}

// renderAccessError maps the access-gate error taxonomy onto HTTP statuses
// and the shared error page.
func (theRouter *Router) renderAccessError(response http.ResponseWriter, request *http.Request, err error) {
	usr := theRouter.currentUser(request)

	switch {
	case errors.Is(err, models.ErrNotFound):
		theRouter.render(response, http.StatusNotFound, "error.gohtml", &templateData{
			User:  usr,
			Error: "No such short URL.",
		})

	case errors.Is(err, models.ErrUnauthorized):
		theRouter.render(response, http.StatusUnauthorized, "error.gohtml", &templateData{
			User:  usr,
			Error: "Please log in to manage short URLs.",
		})

	case errors.Is(err, models.ErrForbidden):
		theRouter.render(response, http.StatusForbidden, "error.gohtml", &templateData{
			User:  usr,
			Error: "This short URL belongs to another user.",
		})

	default:
		theRouter.internalError(response, "renderAccessError", err)
	}
}

func (theRouter *Router) internalError(response http.ResponseWriter, operation string, err error) {
	logger.Log.Debugln("Error calling the `"+operation+"`: ", zap.Error(err))
	response.WriteHeader(http.StatusInternalServerError)
}

// render executes the page template into a buffer first, so a broken
// template never produces a half-written page with a 200 status.
func (theRouter *Router) render(response http.ResponseWriter, status int, templateName string, data *templateData) {
	var buf bytes.Buffer
	if err := theRouter.templates.ExecuteTemplate(&buf, templateName, data); err != nil {
		theRouter.internalError(response, "templates.ExecuteTemplate", err)
		return
	}

	response.Header().Set("Content-Type", "text/html; charset=utf-8")
	response.WriteHeader(status)
	if _, err := buf.WriteTo(response); err != nil {
		logger.Log.Debugln("Error writing the rendered page: ", zap.Error(err))
	}
}
