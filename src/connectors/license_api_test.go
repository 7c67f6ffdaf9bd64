package connectors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLicenseAuthenticate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/auth-license", r.URL.Path)

		var body LicenseRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		switch {
		case body.Licence == "LIC-NEW" && body.PhoneSecret == "":
			_, _ = w.Write([]byte(`{"message":"accept","data":{"user":"7","status":"active","expires":"2026-12-31","key":"LIC-NEW","phone_secret_key":"ps-1","ea_name":"Gold EA","ea_notification":"n-1","owner":{"name":"Desk","email":"desk@example.com","phone":"1","logo":""}}}`))
		case body.Licence == "LIC-NEW" && body.PhoneSecret == "ps-1":
			_, _ = w.Write([]byte(`{"message":"accept","data":{"key":"LIC-NEW","phone_secret_key":"ps-1","status":"active"}}`))
		case body.Licence == "LIC-USED":
			_, _ = w.Write([]byte(`{"message":"used"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"error"}`))
		}
	}))
	defer server.Close()

	api, err := NewLicenseAPI(testConfig(server.URL))
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("first binding returns the phone secret", func(t *testing.T) {
		resp, err := api.Authenticate(ctx, "LIC-NEW", "")
		require.NoError(t, err)
		assert.Equal(t, LicenseAccept, resp.Message)
		require.NotNil(t, resp.Data)
		assert.Equal(t, "ps-1", resp.Data.PhoneSecretKey)
		assert.Equal(t, "Gold EA", resp.Data.EAName)
		assert.Equal(t, "Desk", resp.Data.Owner.Name)
	})

	t.Run("bound device resends the secret", func(t *testing.T) {
		resp, err := api.Authenticate(ctx, "LIC-NEW", "ps-1")
		require.NoError(t, err)
		assert.Equal(t, LicenseAccept, resp.Message)
	})

	t.Run("used elsewhere", func(t *testing.T) {
		resp, err := api.Authenticate(ctx, "LIC-USED", "")
		require.NoError(t, err)
		assert.Equal(t, LicenseUsed, resp.Message)
	})

	t.Run("rejected", func(t *testing.T) {
		resp, err := api.Authenticate(ctx, "BAD", "")
		require.NoError(t, err)
		assert.Equal(t, LicenseError, resp.Message)
	})

	t.Run("empty licence never hits the network", func(t *testing.T) {
		resp, err := api.Authenticate(ctx, "", "")
		require.NoError(t, err)
		assert.Equal(t, LicenseError, resp.Message)
	})
}
