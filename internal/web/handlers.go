package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kkkkikiki/voucher/internal/model"
	"github.com/kkkkikiki/voucher/internal/repository"
	"github.com/kkkkikiki/voucher/internal/service"
	"github.com/kkkkikiki/voucher/internal/session"
)

// loginView is the template data for the login page
type loginView struct {
	Error string
}

// resultView is the template data for the lookup result page
type resultView struct {
	Record      *model.VoucherRecord
	ShowConfirm bool
	Message     string
}

// Handler serves the staff-facing lookup flow
type Handler struct {
	svc      *service.VoucherService
	sessions *session.Manager
}

// NewHandler creates a new Handler instance
func NewHandler(svc *service.VoucherService, sessions *session.Manager) *Handler {
	return &Handler{svc: svc, sessions: sessions}
}

// Register attaches all application routes to the mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /login", WithLogging(h.LoginForm))
	mux.HandleFunc("POST /login", WithLogging(h.Login))
	mux.HandleFunc("GET /logout", WithLogging(h.Logout))

	mux.HandleFunc("GET /{$}", WithLogging(h.sessions.RequireLogin(h.Index)))
	mux.HandleFunc("POST /lookup", WithLogging(h.sessions.RequireLogin(h.Lookup)))
	mux.HandleFunc("GET /claimed", WithLogging(h.sessions.RequireLogin(h.Claimed)))
}

// LoginForm handles GET /login
func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	render(w, http.StatusOK, "login.html", loginView{})
}

// Login handles POST /login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		render(w, http.StatusBadRequest, "login.html", loginView{Error: "Invalid form submission."})
		return
	}

	if !h.sessions.Login(w, r.PostFormValue("password")) {
		slog.Warn("failed login attempt", "remote", r.RemoteAddr)
		render(w, http.StatusUnauthorized, "login.html", loginView{Error: "Invalid password. Please try again."})
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout handles GET /logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Index handles GET / with the voucher-code entry form
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	render(w, http.StatusOK, "index.html", nil)
}

// Claimed handles GET /claimed, the post-confirmation landing page
func (h *Handler) Claimed(w http.ResponseWriter, r *http.Request) {
	render(w, http.StatusOK, "claimed.html", nil)
}

// Lookup handles POST /lookup. A plain submission looks the voucher up and
// renders the next view; a submission carrying the confirm_voucher flag
// attempts the claim itself.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		render(w, http.StatusBadRequest, "result.html", resultView{Message: "Invalid form submission."})
		return
	}

	code := r.PostFormValue("voucher_code")
	if r.PostFormValue("confirm_voucher") != "" {
		h.confirm(w, r, code)
		return
	}

	record, err := h.svc.Lookup(r.Context(), code)
	switch {
	case errors.Is(err, service.ErrEmptyCode):
		render(w, http.StatusBadRequest, "result.html", resultView{Message: "Please enter a voucher code."})
	case errors.Is(err, repository.ErrNotFound):
		render(w, http.StatusNotFound, "result.html", resultView{Message: "No user found with that voucher code."})
	case err != nil:
		slog.Error("voucher lookup failed", "error", err)
		render(w, http.StatusInternalServerError, "result.html", resultView{Message: "Something went wrong. Please try again."})
	default:
		render(w, http.StatusOK, "result.html", resultView{
			Record:      record,
			ShowConfirm: !record.Claimed,
		})
	}
}

// confirm performs the claim transition for a confirmation submission
func (h *Handler) confirm(w http.ResponseWriter, r *http.Request, code string) {
	userID, err := h.svc.Confirm(r.Context(), code)
	switch {
	case errors.Is(err, service.ErrEmptyCode):
		render(w, http.StatusBadRequest, "result.html", resultView{Message: "Please enter a voucher code."})
	case errors.Is(err, repository.ErrAlreadyClaimedOrInvalid):
		render(w, http.StatusConflict, "result.html", resultView{Message: "This voucher has already been confirmed or is invalid."})
	case err != nil:
		slog.Error("voucher claim failed", "error", err)
		render(w, http.StatusInternalServerError, "result.html", resultView{Message: "Something went wrong. Please try again."})
	default:
		slog.Info("voucher claimed", "user_id", userID)
		http.Redirect(w, r, "/claimed", http.StatusSeeOther)
	}
}
