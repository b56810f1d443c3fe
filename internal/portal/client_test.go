package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seclytics/sirsync/internal/pipeline"
)

type fakePortal struct {
	mux *http.ServeMux

	authCalls int
	authBody  string
	authCode  int

	itemCodes []int
	itemCalls int
	lastAuth  string
	lastItem  map[string]any
}

func newFakePortal(authBody string) *fakePortal {
	p := &fakePortal{
		mux:      http.NewServeMux(),
		authBody: authBody,
		authCode: http.StatusOK,
	}

	p.mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		p.authCalls++
		w.WriteHeader(p.authCode)
		w.Write([]byte(p.authBody))
	})

	p.mux.HandleFunc("/items", func(w http.ResponseWriter, r *http.Request) {
		p.lastAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&p.lastItem)

		code := http.StatusOK
		if p.itemCalls < len(p.itemCodes) {
			code = p.itemCodes[p.itemCalls]
		}
		p.itemCalls++
		w.WriteHeader(code)
		w.Write([]byte(`{"ok":true}`))
	})

	return p
}

func newTestClient(t *testing.T, p *fakePortal, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(p.mux)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/auth", srv.URL+"/items", "cid", "secret", opts...)
	require.NoError(t, err)
	return c, srv
}

func record(id string, incidentID int64) pipeline.TransformedRecord {
	return pipeline.TransformedRecord{
		TenantItemID: id,
		Title:        "[" + id + "]: Phishing",
		IncidentID:   incidentID,
	}
}

func TestNew(t *testing.T) {
	t.Run("item URL is required", func(t *testing.T) {
		_, err := New("https://portal/auth", "", "cid", "secret")
		assert.Error(t, err)
	})

	t.Run("auth URL is required", func(t *testing.T) {
		_, err := New("", "https://portal/items", "cid", "secret")
		assert.Error(t, err)
	})
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantToken string
	}{
		{name: "bare string token", body: `"tok-123"`, wantToken: "tok-123"},
		{name: "token field", body: `{"token":"tok-456"}`, wantToken: "tok-456"},
		{name: "access_token field", body: `{"access_token":"tok-789"}`, wantToken: "tok-789"},
		{name: "opaque body used whole", body: `plain-token`, wantToken: "plain-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakePortal(tt.body)
			c, _ := newTestClient(t, p)

			require.True(t, c.Authenticate(context.Background()))

			c.Send(context.Background(), record("SIR-001", 1))
			assert.Equal(t, "Bearer "+tt.wantToken, p.lastAuth)
		})
	}

	t.Run("non-2xx is a soft failure", func(t *testing.T) {
		p := newFakePortal(`denied`)
		p.authCode = http.StatusForbidden
		c, _ := newTestClient(t, p)

		assert.False(t, c.Authenticate(context.Background()))
	})

	t.Run("network failure is a soft failure", func(t *testing.T) {
		c, err := New("http://127.0.0.1:1/auth", "http://127.0.0.1:1/items", "cid", "secret")
		require.NoError(t, err)

		assert.False(t, c.Authenticate(context.Background()))
	})
}

func TestSend(t *testing.T) {
	t.Run("delivered", func(t *testing.T) {
		p := newFakePortal(`"tok"`)
		c, _ := newTestClient(t, p)
		require.True(t, c.Authenticate(context.Background()))

		res := c.Send(context.Background(), record("SIR-001", 1))
		assert.True(t, res.Delivered())
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, OutcomeDelivered, res.Outcome())
		assert.Equal(t, "SIR-001", p.lastItem["tenantItemId"])
	})

	t.Run("network failure reports status 0", func(t *testing.T) {
		c, err := New("http://127.0.0.1:1/auth", "http://127.0.0.1:1/items", "cid", "secret")
		require.NoError(t, err)

		res := c.Send(context.Background(), record("SIR-001", 1))
		assert.Equal(t, 0, res.StatusCode)
		assert.NotEmpty(t, res.Body)
		assert.Equal(t, OutcomeNetworkFailure, res.Outcome())
	})
}

func TestSendMany(t *testing.T) {
	t.Run("bootstraps authentication once", func(t *testing.T) {
		p := newFakePortal(`"tok"`)
		c, _ := newTestClient(t, p)

		_, summary := c.SendMany(context.Background(), []pipeline.TransformedRecord{
			record("SIR-001", 1),
			record("SIR-002", 2),
		})
		assert.Equal(t, 1, p.authCalls)
		assert.Equal(t, Summary{Sent: 2, Success: 2}, summary)
	})

	t.Run("partial failure is isolated per record", func(t *testing.T) {
		p := newFakePortal(`"tok"`)
		p.itemCodes = []int{200, 200, 500}
		c, _ := newTestClient(t, p)

		results, summary := c.SendMany(context.Background(), []pipeline.TransformedRecord{
			record("SIR-001", 1),
			record("SIR-002", 2),
			record("SIR-003", 3),
		})
		assert.Equal(t, Summary{Sent: 3, Success: 2, Failed: 1}, summary)
		assert.Len(t, results, 3)
		assert.Equal(t, OutcomeServerError, results["SIR-003"].Outcome())
		assert.Equal(t, summary.Sent, summary.Success+summary.Failed)
	})

	t.Run("duplicate tenant item ids overwrite", func(t *testing.T) {
		p := newFakePortal(`"tok"`)
		p.itemCodes = []int{500, 200}
		c, _ := newTestClient(t, p)

		results, summary := c.SendMany(context.Background(), []pipeline.TransformedRecord{
			record("SIR-001", 1),
			record("SIR-001", 1),
		})
		require.Len(t, results, 1)
		assert.True(t, results["SIR-001"].Delivered())
		assert.Equal(t, Summary{Sent: 2, Success: 1, Failed: 1}, summary)
	})

	t.Run("401 triggers re-auth for subsequent records only", func(t *testing.T) {
		p := newFakePortal(`"tok"`)
		p.itemCodes = []int{401, 200}
		c, _ := newTestClient(t, p)

		results, summary := c.SendMany(context.Background(), []pipeline.TransformedRecord{
			record("SIR-001", 1),
			record("SIR-002", 2),
		})
		// bootstrap + the re-auth after the 401
		assert.Equal(t, 2, p.authCalls)
		// the 401 record is not retried
		assert.Equal(t, OutcomeStaleToken, results["SIR-001"].Outcome())
		assert.Equal(t, Summary{Sent: 2, Success: 1, Failed: 1}, summary)
	})

	t.Run("auth failure fails every record", func(t *testing.T) {
		p := newFakePortal(`denied`)
		p.authCode = http.StatusUnauthorized
		c, _ := newTestClient(t, p)

		results, summary := c.SendMany(context.Background(), []pipeline.TransformedRecord{
			record("SIR-001", 1),
			record("SIR-002", 2),
		})
		assert.Equal(t, Summary{Sent: 2, Failed: 2}, summary)
		assert.Equal(t, 0, p.itemCalls)
		for _, res := range results {
			assert.Equal(t, OutcomeNetworkFailure, res.Outcome())
		}
	})
}

func TestResultOutcome(t *testing.T) {
	tests := []struct {
		code int
		want Outcome
	}{
		{0, OutcomeNetworkFailure},
		{200, OutcomeDelivered},
		{201, OutcomeDelivered},
		{400, OutcomeRejected},
		{401, OutcomeStaleToken},
		{403, OutcomeForbidden},
		{404, OutcomeNotFound},
		{500, OutcomeServerError},
		{503, OutcomeServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Result{StatusCode: tt.code}.Outcome())
	}
}
