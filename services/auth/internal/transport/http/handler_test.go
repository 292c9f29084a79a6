package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type call struct {
	kind, email, value string
}

type fakeService struct {
	calls []call
	err   error
}

func (f *fakeService) SendPasswordReset(_ context.Context, email, token string) error {
	f.calls = append(f.calls, call{"reset", email, token})
	return f.err
}

func (f *fakeService) SendVerifyEmail(_ context.Context, email, token string) error {
	f.calls = append(f.calls, call{"verify", email, token})
	return f.err
}

func (f *fakeService) SendOTP(_ context.Context, email, code string) error {
	f.calls = append(f.calls, call{"otp", email, code})
	return f.err
}

func newApp(svc *fakeService) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app, NewNotifyHandler(svc, zap.NewNop()))
	return app
}

func post(t *testing.T, app *fiber.App, path, body string) (int, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return resp.StatusCode, out
}

func TestPasswordReset_Accepted(t *testing.T) {
	svc := &fakeService{}
	code, body := post(t, newApp(svc), "/internal/notify/password-reset", `{"email":"a@x.com","token":"abc"}`)

	assert.Equal(t, fiber.StatusAccepted, code)
	assert.Equal(t, true, body["queued"])
	assert.Equal(t, []call{{"reset", "a@x.com", "abc"}}, svc.calls)
}

func TestVerifyEmail_Accepted(t *testing.T) {
	svc := &fakeService{}
	code, _ := post(t, newApp(svc), "/internal/notify/verify-email", `{"email":"a@x.com","token":"abc"}`)

	assert.Equal(t, fiber.StatusAccepted, code)
	assert.Equal(t, []call{{"verify", "a@x.com", "abc"}}, svc.calls)
}

func TestOTP_Accepted(t *testing.T) {
	svc := &fakeService{}
	code, _ := post(t, newApp(svc), "/internal/notify/otp", `{"email":"a@x.com","code":"123456"}`)

	assert.Equal(t, fiber.StatusAccepted, code)
	assert.Equal(t, []call{{"otp", "a@x.com", "123456"}}, svc.calls)
}

func TestValidationErrors(t *testing.T) {
	svc := &fakeService{}
	app := newApp(svc)

	code, body := post(t, app, "/internal/notify/password-reset", `{"email":"not-an-email"}`)
	assert.Equal(t, fiber.StatusBadRequest, code)
	errs, ok := body["errors"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "email must be a valid email address", errs["email"])
	assert.Equal(t, "token is required", errs["token"])

	code, body = post(t, app, "/internal/notify/otp", `{"email":"a@x.com","code":"12ab"}`)
	assert.Equal(t, fiber.StatusBadRequest, code)
	errs, ok = body["errors"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "code is invalid", errs["code"])

	assert.Empty(t, svc.calls)
}

func TestMalformedJSON(t *testing.T) {
	svc := &fakeService{}
	code, body := post(t, newApp(svc), "/internal/notify/verify-email", `{"email":`)

	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, "Cannot parse JSON", body["error"])
	assert.Empty(t, svc.calls)
}

func TestServiceError(t *testing.T) {
	svc := &fakeService{err: errors.New("render failed")}
	code, body := post(t, newApp(svc), "/internal/notify/password-reset", `{"email":"a@x.com","token":"abc"}`)

	assert.Equal(t, fiber.StatusInternalServerError, code)
	assert.Equal(t, "failed to queue email", body["error"])
}
