package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"loadboard/admin"
	"loadboard/auth"
	"loadboard/bid"
	"loadboard/dispute"
	"loadboard/load"
)

// Server bundles the services behind the HTTP surface. Caller identity is
// resolved once per request and passed explicitly into every core call.
type Server struct {
	authService    *auth.Service
	loadService    *load.Service
	bidService     *bid.Service
	disputeService *dispute.Service
	adminService   *admin.Service
}

// identity is the authenticated caller resolved from the bearer token.
type identity struct {
	UserID string
	Role   auth.Role
}

// NewServer wires the services into a request multiplexer.
func NewServer(authSvc *auth.Service, loadSvc *load.Service, bidSvc *bid.Service, disputeSvc *dispute.Service, adminSvc *admin.Service) *Server {
	return &Server{
		authService:    authSvc,
		loadService:    loadSvc,
		bidService:     bidSvc,
		disputeService: disputeSvc,
		adminService:   adminSvc,
	}
}

// Routes registers every handler on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/auth/register", s.handleRegister)
	mux.HandleFunc("/api/auth/login", s.handleLogin)

	mux.HandleFunc("/api/me", s.authenticate(s.handleProfile))
	mux.HandleFunc("/api/me/password", s.authenticate(s.handleChangePassword))

	mux.HandleFunc("/api/loads", s.authenticate(s.handleLoads))
	mux.HandleFunc("/api/loads/", s.authenticate(s.handleLoadDetail))
	mux.HandleFunc("/api/owner/loads", s.authenticate(s.handleOwnerLoads, auth.RoleGoodsOwner))
	mux.HandleFunc("/api/owner/loads/", s.authenticate(s.handleOwnerLoadBids, auth.RoleGoodsOwner))
	mux.HandleFunc("/api/owner/bids/", s.authenticate(s.handleAcceptBid, auth.RoleGoodsOwner))

	mux.HandleFunc("/api/driver/bids", s.authenticate(s.handleDriverBids, auth.RoleDriver))
	mux.HandleFunc("/api/driver/loads", s.authenticate(s.handleDriverLoads, auth.RoleDriver))

	mux.HandleFunc("/api/disputes", s.authenticate(s.handleDisputes, auth.RoleDriver, auth.RoleGoodsOwner))

	mux.HandleFunc("/api/admin/users", s.authenticate(s.handleAdminUsers, auth.RoleAdmin))
	mux.HandleFunc("/api/admin/users/", s.authenticate(s.handleAdminUserEnabled, auth.RoleAdmin))
	mux.HandleFunc("/api/admin/loads", s.authenticate(s.handleAdminLoads, auth.RoleAdmin))
	mux.HandleFunc("/api/admin/loads/", s.authenticate(s.handleAdminLoadStatus, auth.RoleAdmin))
	mux.HandleFunc("/api/admin/disputes", s.authenticate(s.handleAdminDisputes, auth.RoleAdmin))
	mux.HandleFunc("/api/admin/disputes/", s.authenticate(s.handleAdminDisputeStatus, auth.RoleAdmin))

	return mux
}

type identityHandler func(w http.ResponseWriter, r *http.Request, caller identity)

// authenticate verifies the bearer token and, when roles are given, requires
// the caller's role claim to be one of them.
func (s *Server) authenticate(next identityHandler, roles ...auth.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeErrorMessage(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		userID, role, err := s.authService.VerifyToken(token)
		if err != nil {
			writeErrorMessage(w, http.StatusUnauthorized, "invalid token")
			return
		}

		if len(roles) > 0 {
			allowed := false
			for _, want := range roles {
				if role == want {
					allowed = true
					break
				}
			}
			if !allowed {
				writeErrorMessage(w, http.StatusForbidden, "role not permitted")
				return
			}
		}

		next(w, r, identity{UserID: userID, Role: role})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeError maps service sentinels onto HTTP statuses. Anything unmapped is
// an infrastructure failure and surfaces as 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, load.ErrNotFound),
		errors.Is(err, load.ErrUserNotFound),
		errors.Is(err, bid.ErrNotFound),
		errors.Is(err, bid.ErrUserNotFound),
		errors.Is(err, bid.ErrLoadNotFound),
		errors.Is(err, dispute.ErrNotFound),
		errors.Is(err, dispute.ErrUserNotFound),
		errors.Is(err, dispute.ErrLoadNotFound),
		errors.Is(err, admin.ErrUserNotFound):
		writeErrorMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, bid.ErrForbidden),
		errors.Is(err, dispute.ErrForbidden):
		writeErrorMessage(w, http.StatusForbidden, err.Error())
	case errors.Is(err, bid.ErrLoadNotOpen),
		errors.Is(err, bid.ErrLoadNotPending),
		errors.Is(err, bid.ErrBidNotPending),
		errors.Is(err, bid.ErrDuplicateBid),
		errors.Is(err, load.ErrNotPending),
		errors.Is(err, auth.ErrDuplicateEmail),
		errors.Is(err, auth.ErrDuplicateUsername):
		writeErrorMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrAccountDisabled):
		writeErrorMessage(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrWeakPassword):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeErrorMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// pathSegment extracts the id and trailing action from paths shaped like
// <prefix><id>/<action>. action may be empty when the route has none.
func pathSegment(path, prefix string) (id, action string, ok bool) {
	rest, found := strings.CutPrefix(path, prefix)
	if !found || rest == "" {
		return "", "", false
	}
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "" {
		return "", "", false
	}
	if len(parts) == 2 {
		return parts[0], parts[1], true
	}
	return parts[0], "", true
}
