package httpserver

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/felle787/LocalRadar2/internal/app"
	"github.com/felle787/LocalRadar2/internal/domain"
	"github.com/felle787/LocalRadar2/internal/platform/correlation"
	apperrors "github.com/felle787/LocalRadar2/internal/platform/errors"
)

const correlationHeader = "X-Correlation-ID"

// correlationMiddleware tags the request context with a correlation ID, reusing a
// caller-supplied one, and echoes it in the response.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(correlationHeader)
		if id == "" || len(id) > 64 {
			id = correlation.NewID()
		}
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(correlationHeader, id)
		return next(c)
	}
}

// withSession adds the current session ID to the request context for log correlation.
func (s *Server) withSession(c echo.Context) context.Context {
	ctx := c.Request().Context()
	if snap := s.sessions.Snapshot(); snap.Session != nil {
		ctx = correlation.WithSessionID(ctx, snap.Session.ID)
	}
	return ctx
}

var errTokenMismatch = errors.New("bearer token does not belong to the signed-in session")

// requireSessionMiddleware admits a request only when its "Authorization: Bearer <token>"
// header carries the token of the currently signed-in session.
func (s *Server) requireSessionMiddleware() echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup:  "header:" + echo.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(token string, _ echo.Context) (bool, error) {
			snap := s.sessions.Snapshot()
			if snap.Session == nil {
				return false, domain.ErrNotSignedIn
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(snap.Session.Token)) != 1 {
				return false, errTokenMismatch
			}
			return true, nil
		},
		ErrorHandler: func(err error, _ echo.Context) error {
			switch {
			case errors.Is(err, domain.ErrNotSignedIn):
				return err
			case errors.Is(err, errTokenMismatch):
				return apperrors.UnauthorizedError("session token is invalid or expired", err).WithCode("invalid_token")
			default:
				return apperrors.UnauthorizedError("bearer token is required", err).WithCode("missing_token")
			}
		},
	})
}

func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return HandleError(c, WrapHTTPError(httpErr))
			}
			return HandleError(c, err)
		}
	}
}

// toStructuredError maps domain and application errors onto the structured error type.
func toStructuredError(err error) *apperrors.Error {
	var structured *apperrors.Error
	if errors.As(err, &structured) {
		return structured
	}

	var validationErr *app.ValidationError
	if errors.As(err, &validationErr) {
		e := apperrors.ValidationError(validationErr.Error())
		if validationErr.Field != "" {
			e = e.WithContext("field", validationErr.Field)
		}
		return e
	}

	var identityErr *domain.IdentityError
	if errors.As(err, &identityErr) {
		return identityStructuredError(identityErr)
	}

	var storeErr *domain.StoreError
	switch {
	case errors.Is(err, domain.ErrNotSignedIn):
		return apperrors.UnauthorizedError("not signed in", err).WithCode("not_signed_in")
	case errors.Is(err, domain.ErrProfileNotReady):
		return apperrors.UnavailableError("profile is still loading", err).WithCode("profile_not_ready")
	case errors.Is(err, domain.ErrRoleNotAllowed):
		return apperrors.ForbiddenError("operation not allowed for this role", err).WithCode("role_not_allowed")
	case errors.Is(err, domain.ErrBusinessCannotFollow):
		return apperrors.ForbiddenError("business accounts cannot follow venues", err).WithCode("business_cannot_follow")
	case errors.Is(err, domain.ErrVenueNotFound):
		return apperrors.NotFoundError("venue not found")
	case errors.Is(err, domain.ErrEventNotFound):
		return apperrors.NotFoundError("event not found")
	case errors.Is(err, domain.ErrVenueRequired):
		return apperrors.ConflictError("set up your venue before posting events", err).WithCode("venue_required")
	case errors.Is(err, domain.ErrInvalidRole):
		return apperrors.ValidationError("role must be customer or business").WithCode("invalid_role")
	case errors.As(err, &storeErr):
		return apperrors.ExternalError("profile store unavailable", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.UnavailableError("request timed out", err)
	default:
		return apperrors.InternalError("internal server error", err)
	}
}

func identityStructuredError(err *domain.IdentityError) *apperrors.Error {
	code := string(err.Code)
	switch err.Code {
	case domain.IdentityInvalidCredentials:
		return apperrors.UnauthorizedError("invalid email or password", err).WithCode(code)
	case domain.IdentityInvalidToken:
		return apperrors.UnauthorizedError("session token is invalid or expired", err).WithCode(code)
	case domain.IdentityEmailTaken:
		return apperrors.ConflictError("email already registered", err).WithCode(code)
	case domain.IdentityWeakPassword:
		return apperrors.ValidationError("password is too weak").WithCode(code)
	case domain.IdentityInvalidEmail:
		return apperrors.ValidationError("email address is invalid").WithCode(code)
	default:
		return apperrors.UnavailableError("identity service unavailable", err).WithCode(code)
	}
}

func logError(c echo.Context, err *apperrors.Error) {
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}
	if err.Code != "" {
		attrs = append(attrs, "code", err.Code)
	}
	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	ctx := c.Request().Context()
	switch err.Type {
	case apperrors.TypeValidation, apperrors.TypeNotFound, apperrors.TypeUnauthorized, apperrors.TypeForbidden:
		slog.InfoContext(ctx, "Request rejected", attrs...)
	case apperrors.TypeConflict:
		slog.WarnContext(ctx, "Conflict", attrs...)
	case apperrors.TypeExternal, apperrors.TypeUnavailable:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Dependency error", attrs...)
	default:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Internal error", attrs...)
	}
}

func HandleError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if c.Response().Committed {
		return nil
	}

	structuredErr := toStructuredError(err)
	logError(c, structuredErr)
	if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
		return fmt.Errorf("failed to write error response: %w", err)
	}
	return nil
}

func WrapHTTPError(httpErr *echo.HTTPError) *apperrors.Error {
	message := http.StatusText(httpErr.Code)
	if msg, ok := httpErr.Message.(string); ok && msg != "" {
		message = msg
	}

	var e *apperrors.Error
	switch httpErr.Code {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		e = apperrors.ValidationError(message)
	case http.StatusUnauthorized:
		e = apperrors.UnauthorizedError(message, httpErr.Internal)
	case http.StatusForbidden:
		e = apperrors.ForbiddenError(message, httpErr.Internal)
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		e = apperrors.NotFoundError(message)
	case http.StatusConflict:
		e = apperrors.ConflictError(message, httpErr.Internal)
	case http.StatusBadGateway:
		e = apperrors.ExternalError(message, httpErr.Internal)
	case http.StatusServiceUnavailable:
		e = apperrors.UnavailableError(message, httpErr.Internal)
	default:
		e = apperrors.InternalError(message, httpErr.Internal)
	}
	return e
}
