package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NewNotFoundError("Profile", "malee"), fiber.StatusNotFound},
		{"validation", NewValidationError("bad"), fiber.StatusBadRequest},
		{"unauthorized", NewUnauthorizedError("no"), fiber.StatusUnauthorized},
		{"forbidden", NewForbiddenError("no"), fiber.StatusForbidden},
		{"conflict", NewConflictError("taken"), fiber.StatusConflict},
		{"remote", NewRemoteFailure("insert", errors.New("timeout")), fiber.StatusBadGateway},
		{"wrapped", fmt.Errorf("save: %w", NewConflictError("taken")), fiber.StatusConflict},
		{"plain", errors.New("boom"), fiber.StatusInternalServerError},
		{"unknown code", &AppError{Code: "TEAPOT"}, fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewRemoteFailure("update", cause)

	assert.Equal(t, "remote update failed: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, HasCode(err, CodeRemoteFailure))
	assert.False(t, HasCode(cause, CodeRemoteFailure))
	assert.Equal(t, "Profile malee not found", NewNotFoundError("Profile", "malee").Error())
}

func TestRespondWithError(t *testing.T) {
	app := fiber.New()
	app.Get("/remote", func(c *fiber.Ctx) error {
		return RespondWithError(c, fiber.StatusBadGateway, NewRemoteFailure("insert", errors.New("timeout")))
	})
	app.Get("/internal", func(c *fiber.Ctx) error {
		return RespondWithError(c, fiber.StatusInternalServerError, NewInternalError(errors.New("secret dsn")))
	})

	decode := func(path string) ErrorResponse {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(raw, &body))
		return body
	}

	remote := decode("/remote")
	assert.Equal(t, CodeRemoteFailure, remote.Code)
	assert.Equal(t, "timeout", remote.Details)

	internal := decode("/internal")
	assert.Equal(t, CodeInternal, internal.Code)
	assert.Empty(t, internal.Details)
}
