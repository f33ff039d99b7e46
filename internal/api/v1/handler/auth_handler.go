package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"streampass/internal/api/v1/dto"
	"streampass/internal/api/v1/response"
	"streampass/internal/middleware"
	"streampass/internal/repository"
	"streampass/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const unexpectedErrorMessage = "Unexpected error, check server logs"

type AuthHandler struct {
	authService service.AuthService
	validate    *validator.Validate
	logger      zerolog.Logger
}

func NewAuthHandler(authService service.AuthService, v *validator.Validate, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, validate: v, logger: logger}
}

// RegisterRoutes mounts the auth routes
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.HandleFunc("POST /auth/register", h.register)
	mux.HandleFunc("POST /auth/login", h.login)
	mux.Handle("GET /auth/check-auth-status", authMw(http.HandlerFunc(h.checkAuthStatus)))
}

// register godoc
// @Summary Register a new user
// @Description Creates an account and returns it together with a bearer token.
// @Tags auth
// @Accept json
// @Produce json
// @Param user body dto.RegisterRequestDTO true "User registration data"
// @Success 201 {object} dto.UserResponseDTO
// @Failure 400 {object} dto.ErrorResponseDTO "Validation failed or email already registered"
// @Failure 500 {object} dto.ErrorResponseDTO
// @Router /auth/register [post]
func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		response.Error(w, http.StatusBadRequest, dto.ValidationMessages(err))
		return
	}

	res, err := h.authService.Register(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		h.handleDBError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, dto.NewUserResponse(res.User, res.Token))
}

// login godoc
// @Summary Log in
// @Description Checks the credentials and returns the user with a bearer token.
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body dto.LoginRequestDTO true "Login credentials"
// @Success 200 {object} dto.UserResponseDTO
// @Failure 400 {object} dto.ErrorResponseDTO "Credentials are not valid"
// @Router /auth/login [post]
func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		response.Error(w, http.StatusBadRequest, dto.ValidationMessages(err))
		return
	}

	res, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentialsEmail) || errors.Is(err, service.ErrInvalidCredentialsPassword) {
			response.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		h.handleDBError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, dto.NewUserResponse(res.User, res.Token))
}

// checkAuthStatus godoc
// @Summary Refresh the bearer token
// @Description Returns the authenticated user with a newly signed token.
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.UserResponseDTO
// @Failure 401 {object} dto.ErrorResponseDTO
// @Router /auth/check-auth-status [get]
func (h *AuthHandler) checkAuthStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	res, err := h.authService.CheckAuthStatus(r.Context(), user)
	if err != nil {
		h.handleDBError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, dto.NewUserResponse(res.User, res.Token))
}

// handleDBError maps unique violations to 400 with the database detail and
// hides everything else behind a generic 500.
func (h *AuthHandler) handleDBError(w http.ResponseWriter, err error) {
	var ce *repository.ConstraintError
	if errors.As(err, &ce) {
		response.Error(w, http.StatusBadRequest, ce.Error())
		return
	}
	h.logger.Error().Err(err).Msg("Unexpected auth error")
	response.Error(w, http.StatusInternalServerError, unexpectedErrorMessage)
}
