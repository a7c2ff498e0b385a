package httpserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/felle787/LocalRadar2/internal/domain"
	apperrors "github.com/felle787/LocalRadar2/internal/platform/errors"
)

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resumeRequest struct {
	Token string `json:"token"`
}

func (s *Server) registerAuthRoutes(rateLimiter, requireSession echo.MiddlewareFunc) {
	auth := s.echo.Group("/auth", rateLimiter)
	auth.POST("/signup", s.handleSignUp)
	auth.POST("/signin", s.handleSignIn)
	auth.POST("/signout", s.handleSignOut, requireSession)
	auth.POST("/resume", s.handleResume)
}

func (s *Server) handleSignUp(c echo.Context) error {
	var req signUpRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	role := domain.RoleCustomer
	if req.Role != "" {
		role = domain.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	}

	sess, err := s.sessions.SignUp(c.Request().Context(), req.Email, req.Password, role)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusCreated, authResponse{Session: newSessionResponse(sess, true)})
}

func (s *Server) handleSignIn(c echo.Context) error {
	var req signInRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	sess, err := s.sessions.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, authResponse{Session: newSessionResponse(sess, true)})
}

func (s *Server) handleSignOut(c echo.Context) error {
	if err := s.sessions.SignOut(s.withSession(c)); err != nil {
		return apperrors.ExternalError("sign-out failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleResume(c echo.Context) error {
	var req resumeRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	token := strings.TrimSpace(strings.TrimPrefix(req.Token, "Bearer "))
	if token == "" {
		token = strings.TrimSpace(strings.TrimPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer "))
	}
	if token == "" {
		return apperrors.ValidationError("token is required")
	}

	sess, err := s.resumer.Resume(c.Request().Context(), token)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, authResponse{Session: newSessionResponse(sess, true)})
}

func writeJSON(c echo.Context, status int, body any) error {
	if err := c.JSON(status, body); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}
