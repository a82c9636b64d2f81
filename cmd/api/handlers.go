package main

import (
	"errors"
	"net/http"
	"time"

	"loadboard/auth"
	"loadboard/bid"
	"loadboard/dispute"
	"loadboard/load"
)

type userResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Enabled   bool   `json:"enabled"`
	CreatedAt string `json:"createdAt"`
}

func toUserResponse(u auth.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      string(u.Role),
		Enabled:   u.Enabled,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

type loadResponse struct {
	ID              string  `json:"id"`
	Description     string  `json:"description"`
	PickupLocation  string  `json:"pickupLocation"`
	DropoffLocation string  `json:"dropoffLocation"`
	Weight          float64 `json:"weight"`
	Status          string  `json:"status"`
	PostedBy        string  `json:"postedBy"`
	AssignedDriver  *string `json:"assignedDriver,omitempty"`
	PostedAt        string  `json:"postedAt"`
	CompletedAt     *string `json:"completedAt,omitempty"`
}

func toLoadResponse(l load.Load) loadResponse {
	resp := loadResponse{
		ID:              l.ID,
		Description:     l.Description,
		PickupLocation:  l.PickupLocation,
		DropoffLocation: l.DropoffLocation,
		Weight:          l.Weight,
		Status:          string(l.Status),
		PostedBy:        l.PostedBy,
		AssignedDriver:  l.AssignedDriver,
		PostedAt:        l.PostedAt.Format(time.RFC3339),
	}
	if l.CompletedAt != nil {
		done := l.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &done
	}
	return resp
}

func toLoadResponses(loads []load.Load) []loadResponse {
	out := make([]loadResponse, 0, len(loads))
	for _, l := range loads {
		out = append(out, toLoadResponse(l))
	}
	return out
}

type bidResponse struct {
	ID       string `json:"id"`
	LoadID   string `json:"loadId"`
	DriverID string `json:"driverId"`
	Amount   string `json:"amount"`
	Status   string `json:"status"`
	PlacedAt string `json:"placedAt"`
}

func toBidResponse(b bid.Bid) bidResponse {
	return bidResponse{
		ID:       b.ID,
		LoadID:   b.LoadID,
		DriverID: b.DriverID,
		Amount:   b.Amount,
		Status:   string(b.Status),
		PlacedAt: b.PlacedAt.Format(time.RFC3339),
	}
}

func toBidResponses(bids []bid.Bid) []bidResponse {
	out := make([]bidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, toBidResponse(b))
	}
	return out
}

type disputeResponse struct {
	ID         string  `json:"id"`
	LoadID     string  `json:"loadId"`
	RaisedBy   string  `json:"raisedBy"`
	Reason     string  `json:"reason"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"createdAt"`
	ResolvedAt *string `json:"resolvedAt,omitempty"`
}

func toDisputeResponse(d dispute.Record) disputeResponse {
	resp := disputeResponse{
		ID:        d.ID,
		LoadID:    d.LoadID,
		RaisedBy:  d.RaisedBy,
		Reason:    d.Reason,
		Status:    string(d.Status),
		CreatedAt: d.CreatedAt.Format(time.RFC3339),
	}
	if d.ResolvedAt != nil {
		resolved := d.ResolvedAt.Format(time.RFC3339)
		resp.ResolvedAt = &resolved
	}
	return resp
}

func toDisputeResponses(records []dispute.Record) []disputeResponse {
	out := make([]disputeResponse, 0, len(records))
	for _, d := range records {
		out = append(out, toDisputeResponse(d))
	}
	return out
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req auth.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := s.authService.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrDuplicateEmail), errors.Is(err, auth.ErrDuplicateUsername):
			writeError(w, err)
		default:
			writeErrorMessage(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(*user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req auth.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := s.authService.Login(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": result.Token,
		"user":  toUserResponse(result.User),
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, caller identity) {
	switch r.Method {
	case http.MethodGet:
		user, err := s.authService.GetUserByID(r.Context(), caller.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toUserResponse(*user))
	case http.MethodPut:
		var req auth.ProfileUpdate
		if !decodeBody(w, r, &req) {
			return
		}
		user, err := s.authService.UpdateProfile(r.Context(), caller.UserID, req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toUserResponse(*user))
	default:
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request, caller identity) {
	if r.Method != http.MethodPut {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		NewPassword string `json:"newPassword"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.authService.ChangePassword(r.Context(), caller.UserID, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLoads serves the open marketplace: GET lists loads still open for
// bidding, POST lets a goods owner put a new load up.
func (s *Server) handleLoads(w http.ResponseWriter, r *http.Request, caller identity) {
	switch r.Method {
	case http.MethodGet:
		loads, err := s.loadService.ListAvailable(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toLoadResponses(loads))
	case http.MethodPost:
		if caller.Role != auth.RoleGoodsOwner {
			writeErrorMessage(w, http.StatusForbidden, "only goods owners can post loads")
			return
		}
		var req struct {
			Description     string  `json:"description"`
			PickupLocation  string  `json:"pickupLocation"`
			DropoffLocation string  `json:"dropoffLocation"`
			Weight          float64 `json:"weight"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		created, err := s.loadService.Post(r.Context(), caller.UserID, load.CreateParams{
			Description:     req.Description,
			PickupLocation:  req.PickupLocation,
			DropoffLocation: req.DropoffLocation,
			Weight:          req.Weight,
		})
		if err != nil {
			if errors.Is(err, load.ErrUserNotFound) {
				writeError(w, err)
				return
			}
			writeErrorMessage(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, toLoadResponse(created))
	default:
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleLoadDetail(w http.ResponseWriter, r *http.Request, caller identity) {
	if r.Method != http.MethodGet {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	loadID, action, ok := pathSegment(r.URL.Path, "/api/loads/")
	if !ok || action != "" {
		writeErrorMessage(w, http.StatusBadRequest, "invalid path")
		return
	}
	l, err := s.loadService.Get(r.Context(), loadID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoadResponse(l))
}

func (s *Server) handleOwnerLoads(w http.ResponseWriter, r *http.Request, caller identity) {
	if r.Method != http.MethodGet {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	loads, err := s.loadService.ListForOwner(r.Context(), caller.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoadResponses(loads))
}

func (s *Server) handleOwnerLoadBids(w http.ResponseWriter, r *http.Request, caller identity) {
	if r.Method != http.MethodGet {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	loadID, action, ok := pathSegment(r.URL.Path, "/api/owner/loads/")
	if !ok || action != "bids" {
		writeErrorMessage(w, http.StatusBadRequest, "invalid path")
		return
	}
	bids, err := s.bidService.ListForLoad(r.Context(), caller.UserID, loadID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBidResponses(bids))
}

func (s *Server) handleAcceptBid(w http.ResponseWriter, r *http.Request, caller identity) {
	if r.Method != http.MethodPost {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	bidID, action, ok := pathSegment(r.URL.Path, "/api/owner/bids/")
	if !ok || action != "accept" {
		writeErrorMessage(w, http.StatusBadRequest, "invalid path")
		return
	}
	result, err := s.bidService.Accept(r.Context(), caller.UserID, bidID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bid":          toBidResponse(result.Bid),
		"load":         toLoadResponse(result.Load),
		"rejectedBids": result.Rejected,
	})
}

func (s *Server) handleDriverBids(w http.ResponseWriter, r *http.Request, caller identity) {
	switch r.Method {
	case http.MethodGet:
		bids, err := s.bidService.ListByDriver(r.Context(), caller.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBidResponses(bids))
	case http.MethodPost:
		var req struct {
			LoadID string `json:"loadId"`
			Amount string `json:"amount"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		placed, err := s.bidService.Submit(r.Context(), bid.SubmitParams{
			LoadID:   req.LoadID,
			DriverID: caller.UserID,
			Amount:   req.Amount,
		})
		if err != nil {
			switch {
			case errors.Is(err, bid.ErrUserNotFound),
				errors.Is(err, bid.ErrLoadNotFound),
				errors.Is(err, bid.ErrLoadNotOpen),
				errors.Is(err, bid.ErrDuplicateBid):
				writeError(w, err)
			default:
				writeErrorMessage(w, http.StatusBadRequest, err.Error())
			}
			return
		}
		writeJSON(w, http.StatusCreated, toBidResponse(placed))
	default:
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleDriverLoads(w http.ResponseWriter, r *http.Request, caller identity) {
	if r.Method != http.MethodGet {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	loads, err := s.loadService.ListForDriver(r.Context(), caller.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoadResponses(loads))
}

func (s *Server) handleDisputes(w http.ResponseWriter, r *http.Request, caller identity) {
	switch r.Method {
	case http.MethodGet:
		records, err := s.disputeService.ListForUser(r.Context(), caller.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDisputeResponses(records))
	case http.MethodPost:
		var req struct {
			LoadID string `json:"loadId"`
			Reason string `json:"reason"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		record, err := s.disputeService.Raise(r.Context(), dispute.RaiseParams{
			UserID: caller.UserID,
			Role:   string(caller.Role),
			LoadID: req.LoadID,
			Reason: req.Reason,
		})
		if err != nil {
			switch {
			case errors.Is(err, dispute.ErrUserNotFound),
				errors.Is(err, dispute.ErrLoadNotFound),
				errors.Is(err, dispute.ErrForbidden):
				writeError(w, err)
			default:
				writeErrorMessage(w, http.StatusBadRequest, err.Error())
			}
			return
		}
		writeJSON(w, http.StatusCreated, toDisputeResponse(record))
	default:
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, caller identity) {
	if r.Method != http.MethodGet {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	users, err := s.adminService.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminUserEnabled(w http.ResponseWriter, r *http.Request, caller identity) {
	if r.Method != http.MethodPut {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID, action, ok := pathSegment(r.URL.Path, "/api/admin/users/")
	if !ok || action != "enabled" {
		writeErrorMessage(w, http.StatusBadRequest, "invalid path")
		return
	}
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := s.adminService.SetUserEnabled(r.Context(), caller.UserID, userID, req.Enabled)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleAdminLoads(w http.ResponseWriter, r *http.Request, caller identity) {
	if r.Method != http.MethodGet {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	loads, err := s.adminService.ListLoads(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoadResponses(loads))
}

func (s *Server) handleAdminLoadStatus(w http.ResponseWriter, r *http.Request, caller identity) {
	if r.Method != http.MethodPut {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	loadID, action, ok := pathSegment(r.URL.Path, "/api/admin/loads/")
	if !ok || action != "status" {
		writeErrorMessage(w, http.StatusBadRequest, "invalid path")
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	status := load.Status(req.Status)
	if !status.IsValid() {
		writeErrorMessage(w, http.StatusBadRequest, "unknown load status")
		return
	}
	updated, err := s.adminService.ForceLoadStatus(r.Context(), caller.UserID, loadID, status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoadResponse(updated))
}

func (s *Server) handleAdminDisputes(w http.ResponseWriter, r *http.Request, caller identity) {
	if r.Method != http.MethodGet {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	records, err := s.adminService.ListDisputes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeResponses(records))
}

func (s *Server) handleAdminDisputeStatus(w http.ResponseWriter, r *http.Request, caller identity) {
	if r.Method != http.MethodPut {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	disputeID, action, ok := pathSegment(r.URL.Path, "/api/admin/disputes/")
	if !ok || action != "status" {
		writeErrorMessage(w, http.StatusBadRequest, "invalid path")
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	status := dispute.Status(req.Status)
	if !status.IsValid() {
		writeErrorMessage(w, http.StatusBadRequest, "unknown dispute status")
		return
	}
	updated, err := s.adminService.ForceDisputeStatus(r.Context(), caller.UserID, disputeID, status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeResponse(updated))
}
