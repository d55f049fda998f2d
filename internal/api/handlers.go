package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/sessionbridge/internal/accounts"
	"github.com/darmiel/sessionbridge/internal/api/middleware"
	"github.com/darmiel/sessionbridge/internal/api/presenter"
	"github.com/darmiel/sessionbridge/internal/audit"
	"github.com/darmiel/sessionbridge/internal/bridge"
	"github.com/darmiel/sessionbridge/internal/buildinfo"
	"github.com/darmiel/sessionbridge/internal/core"
)

const (
	StatusSuccess = "Success"
	StatusError   = "Error"

	MsgUserCreated       = "User created successfully!"
	MsgAdminCreated      = "Admin user created successfully!"
	MsgUserExists        = "User already exists!"
	MsgUserCreateFailed  = "User creation failed! Please check user details and try again."
	MsgNotAuthenticated  = "User is not okta authenticated"
	defaultAuditPageSize = 50
)

type LoginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginExternalPayload struct {
	// Token is the external identity token.
	Token string `json:"token"`
}

type RegisterPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	// Token carries the "Bearer " prefix, ready to be used as Authorization header.
	Token      string     `json:"token"`
	Expiration *time.Time `json:"expiration,omitempty"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type MeResponse struct {
	Name   string   `json:"name"`
	Roles  []string `json:"roles"`
	Source string   `json:"source"`
}

func DecodePayload(r *http.Request, dest any, allowEmpty bool) error {
	ct := r.Header.Get("Content-Type")
	if ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			return errors.New("unsupported content type")
		}
	}

	// strict encoding for JSON
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		if !errors.Is(err, io.EOF) || !allowEmpty {
			return err
		}
	}
	// ensure there's no extra data
	if dec.More() {
		return errors.New("extra data in request body")
	}
	return nil
}

// handleHealth responds with a simple OK status to indicate the server is healthy.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleAbout responds with service information including version and commit hash.
func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, buildinfo.GetBuildInfo(), http.StatusOK)
}

// handleLogin checks username and password and issues a session token.
// A failed login is answered with 401 and an empty body.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	auditEntry := core.AuditEntry{
		ID:     middleware.CorrelationCtx(ctx),
		Time:   time.Now(),
		Action: audit.ActionLoginPassword,
	}
	defer s.writeAudit(r, &auditEntry)

	var payload LoginPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		logger.Warn().Err(err).Msg("failed to decode login payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		auditEntry.Error = "invalid request payload"
		return
	}
	auditEntry.Username = payload.Username

	acc, err := s.accounts.Authenticate(ctx, payload.Username, payload.Password)
	if err != nil {
		auditEntry.Error = err.Error()
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			logger.Info().Str("username", payload.Username).Msg("login rejected")
			presenter.Empty(w, http.StatusUnauthorized)
			return
		}
		logger.Error().Err(err).Msg("login failed")
		presenter.Error(w, r, "login failed", http.StatusInternalServerError)
		return
	}

	roles, err := s.accounts.Store().Roles(ctx, acc.ID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to read roles")
		presenter.Error(w, r, "login failed", http.StatusInternalServerError)
		auditEntry.Error = "reading roles failed"
		return
	}

	tok, err := s.issuer.Issue(ctx, acc.Username, roles)
	if err != nil {
		logger.Error().Err(err).Msg("failed to issue session token")
		presenter.Error(w, r, "login failed", http.StatusInternalServerError)
		auditEntry.Error = "issuing token failed"
		return
	}

	auditEntry.Success = true
	auditEntry.Outcome = "issued"
	auditEntry.TokenFingerprint = audit.Fingerprint(tok.Value)

	logger.Info().Str("username", acc.Username).Msg("login succeeded")
	presenter.JSON(w, r, TokenResponse{
		Token:      "Bearer " + tok.Value,
		Expiration: &tok.ExpiresAt,
	}, http.StatusOK)
}

// handleLoginExternal exchanges an external identity token for a session token.
// Failures are answered with 200 and an error status for compatibility with existing clients.
func (s *Server) handleLoginExternal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	var payload LoginExternalPayload
	if err := DecodePayload(r, &payload, true /* allow empty */); err != nil {
		logger.Warn().Err(err).Msg("failed to decode login payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}

	// the token may also arrive in the bridge header, in which case the middleware already exchanged it
	if payload.Token == "" {
		if p, ok := core.PrincipalFromContext(ctx); ok && p.Source == bridge.SourceBridged {
			presenter.JSON(w, r, TokenResponse{Token: "Bearer " + p.Token}, http.StatusOK)
			return
		}
	}

	tok, err := s.auth.Exchange(ctx, payload.Token)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		presenter.JSON(w, r, StatusResponse{Status: StatusError, Message: MsgNotAuthenticated}, http.StatusOK)
		return
	}

	presenter.JSON(w, r, TokenResponse{Token: "Bearer " + tok.Value}, http.StatusOK)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	s.register(w, r, core.RoleUser, MsgUserCreated)
}

func (s *Server) handleRegisterAdmin(w http.ResponseWriter, r *http.Request) {
	s.register(w, r, core.RoleAdmin, MsgAdminCreated)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request, role, successMsg string) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	auditEntry := core.AuditEntry{
		ID:       middleware.CorrelationCtx(ctx),
		Time:     time.Now(),
		Action:   audit.ActionRegister,
		Metadata: map[string]any{"role": role},
	}
	defer s.writeAudit(r, &auditEntry)

	var payload RegisterPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		logger.Warn().Err(err).Msg("failed to decode register payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		auditEntry.Error = "invalid request payload"
		return
	}
	auditEntry.Username = payload.Username

	_, err := s.accounts.Register(ctx, payload.Username, payload.Email, payload.Password, role)
	if err != nil {
		auditEntry.Error = err.Error()
		if errors.Is(err, core.ErrAccountExists) {
			presenter.JSON(w, r, StatusResponse{Status: StatusError, Message: MsgUserExists},
				http.StatusInternalServerError)
			return
		}
		logger.Warn().Err(err).Str("username", payload.Username).Msg("account creation failed")
		presenter.JSON(w, r, StatusResponse{Status: StatusError, Message: MsgUserCreateFailed},
			http.StatusInternalServerError)
		return
	}

	auditEntry.Success = true
	auditEntry.Outcome = "created"
	presenter.JSON(w, r, StatusResponse{Status: StatusSuccess, Message: successMsg}, http.StatusOK)
}

// handleMe returns the principal the request was authenticated as.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p, _ := core.PrincipalFromContext(r.Context())
	roles := p.Roles
	if roles == nil {
		roles = []string{}
	}
	presenter.JSON(w, r, MeResponse{
		Name:   p.Name,
		Roles:  roles,
		Source: p.Source,
	}, http.StatusOK)
}

type auditReader interface {
	Recent(limit int) []core.AuditEntry
}

// handleAdminAudit returns the newest audit entries if the audit log is kept in memory.
func (s *Server) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	reader, ok := s.auditor.(auditReader)
	if !ok {
		presenter.Error(w, r, "audit log is not queryable", http.StatusNotFound)
		return
	}

	limit := defaultAuditPageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			presenter.Error(w, r, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = n
	}

	presenter.JSON(w, r, reader.Recent(limit), http.StatusOK)
}

func (s *Server) writeAudit(r *http.Request, entry *core.AuditEntry) {
	if err := s.auditor.Log(*entry); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to write audit log")
	}
}
