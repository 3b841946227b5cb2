package controller

import (
	"net/http"
	"time"

	"github.com/capsulenet/govern/app/api/types"
	"github.com/capsulenet/govern/pkg/utils"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

type Controller struct {
	App        *types.App
	AdminToken string
	Users      map[string]types.User
	JWTSecret  []byte

	// wsClients tracks connected WebSocket clients by remote address.
	wsClients *xsync.Map[string, time.Time]
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	adminToken := utils.Env("ADMIN_TOKEN", "devtoken")
	adminUser := utils.Env("ADMIN_USER", "admin")
	usersJSON := utils.Env("API_USERS", "")
	adminPass := utils.Env("ADMIN_PASSWORD", "admin")
	jwtSecret := []byte(utils.Env("SESSION_SECRET", "change-me-please"))

	phash, err := utils.HashOrRead(adminPass)
	if err != nil {
		app.Logger.Fatal("Unable to hash admin password", zap.Error(err))
	}
	users := map[string]types.User{}
	users[adminUser] = types.User{Username: adminUser, Hash: phash, Role: "admin"}
	if usersJSON != "" {
		_ = json.Unmarshal([]byte(usersJSON), &users)
	}

	return &Controller{
		App:        app,
		AdminToken: adminToken,
		Users:      users,
		JWTSecret:  jwtSecret,
		wsClients:  xsync.NewMap[string, time.Time](),
	}
}

// WithCORS is a middleware that adds CORS headers to the response.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Development: Echo back the origin to allow credentials with any origin
		// TODO: Restrict this in production to specific domains
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Trust-Score")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodPut+", "+http.MethodPatch+", "+http.MethodDelete+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Login/Logout
	r.HandleFunc("/auth/login", c.HandleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", c.HandleLogout).Methods(http.MethodPost)

	// Proposal lifecycle
	r.Handle("/proposals", c.RequireAuth(http.HandlerFunc(c.HandleProposalsList))).Methods(http.MethodGet)
	r.Handle("/proposals", c.RequireAuth(http.HandlerFunc(c.HandleProposalCreate))).Methods(http.MethodPost)
	r.Handle("/proposals/{id}", c.RequireAuth(http.HandlerFunc(c.HandleProposalDetail))).Methods(http.MethodGet)
	r.Handle("/proposals/{id}/activate", c.RequireAuth(http.HandlerFunc(c.HandleProposalActivate))).Methods(http.MethodPost)
	r.Handle("/proposals/{id}/withdraw", c.RequireAuth(http.HandlerFunc(c.HandleProposalWithdraw))).Methods(http.MethodPost)
	r.Handle("/proposals/{id}/close", c.RequireAdmin(http.HandlerFunc(c.HandleProposalClose))).Methods(http.MethodPost)
	r.Handle("/proposals/{id}/execution", c.RequireSystem(http.HandlerFunc(c.HandleProposalExecution))).Methods(http.MethodPost)
	r.Handle("/proposals/{id}/recalculate", c.RequireAdmin(http.HandlerFunc(c.HandleProposalRecalculate))).Methods(http.MethodPost)

	// Votes
	r.Handle("/proposals/{id}/votes", c.RequireAuth(http.HandlerFunc(c.HandleVotesList))).Methods(http.MethodGet)
	r.Handle("/proposals/{id}/votes", c.RequireAuth(http.HandlerFunc(c.HandleVoteCast))).Methods(http.MethodPost)
	r.Handle("/proposals/{id}/votes/me", c.RequireAuth(http.HandlerFunc(c.HandleMyVote))).Methods(http.MethodGet)

	// WebSocket endpoint for real-time governance events
	r.HandleFunc("/ws", c.HandleWebSocket).Methods(http.MethodGet)

	return r, nil
}
