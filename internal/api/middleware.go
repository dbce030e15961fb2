package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"evalgo.org/tagscope/models"
)

// ValidateContentType middleware ensures that requests with a body have the correct Content-Type
func ValidateContentType(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		method := c.Request().Method

		if method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch {
			contentType := c.Request().Header.Get(echo.HeaderContentType)

			// Allow empty body for some requests
			if c.Request().ContentLength == 0 {
				return next(c)
			}

			if !strings.HasPrefix(contentType, echo.MIMEApplicationJSON) {
				return BadRequestError(
					"Invalid Content-Type",
					"Content-Type must be 'application/json'. Got: "+contentType,
				)
			}
		}

		return next(c)
	}
}

// ValidateAcceptHeader middleware ensures that clients can accept JSON responses
func ValidateAcceptHeader(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		accept := c.Request().Header.Get(echo.HeaderAccept)

		// If no Accept header, assume */*
		if accept == "" {
			return next(c)
		}

		if !strings.Contains(accept, echo.MIMEApplicationJSON) &&
			!strings.Contains(accept, "*/*") &&
			!strings.Contains(accept, "application/*") {
			return BadRequestError(
				"Invalid Accept header",
				"API only returns JSON. Accept header must include 'application/json' or '*/*'. Got: "+accept,
			)
		}

		return next(c)
	}
}

// ValidateReportID middleware rejects report ids that are not UUIDs.
func ValidateReportID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		if _, err := uuid.Parse(id); err != nil {
			return BadRequestError(
				"Invalid report ID",
				"Report ID must be a UUID. Got: "+id,
			)
		}
		return next(c)
	}
}

// ValidateIssueQuery middleware validates the issue listing parameters.
func ValidateIssueQuery(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		fieldErrors := map[string]string{}

		if severity := c.QueryParam("severity"); severity != "" {
			if _, err := models.ParseSeverity(severity); err != nil {
				fieldErrors["severity"] = "must be one of: minor, major, critical"
			}
		}

		for _, name := range []string{"limit", "offset"} {
			if v := c.QueryParam(name); v != "" {
				if n, err := strconv.Atoi(v); err != nil || n < 0 {
					fieldErrors[name] = "must be a non-negative integer"
				}
			}
		}

		if len(fieldErrors) > 0 {
			return ValidationError("Invalid query parameters", fieldErrors)
		}
		return next(c)
	}
}

// SecurityHeaders middleware adds security headers to responses
func SecurityHeaders(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Response().Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Cache-Control", "no-store")

		return next(c)
	}
}
