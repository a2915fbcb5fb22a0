package knowledgeclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return New(DefaultConfig(srv.URL)), srv
}

func TestLabResultPlausibilityParsesVerdict(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/plausibility/lab-result", r.URL.Path)
		require.Equal(t, "2000-01-01", r.URL.Query().Get("dob"))
		w.Write([]byte(`{"plausibility": "PLAUSIBLE"}`))
	})
	defer srv.Close()

	p, err := client.LabResultPlausibility(context.Background(), LabResultParams{DOB: "2000-01-01", TestCode: "2345-7", ResultValue: "7.2"})
	require.NoError(t, err)
	require.Equal(t, Plausible, p)
}

func TestLabResultPlausibilityUnrecognizedVerdictIsUnknown(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"plausibility": "SOMETHING_ELSE"}`))
	})
	defer srv.Close()

	p, err := client.LabResultPlausibility(context.Background(), LabResultParams{})
	require.NoError(t, err)
	require.Equal(t, Unknown, p)
}

func TestLabDevicePlausibilityImplausible(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/plausibility/lab-device", r.URL.Path)
		w.Write([]byte(`{"plausibility": "IMPLAUSIBLE"}`))
	})
	defer srv.Close()

	p, err := client.LabDevicePlausibility(context.Background(), LabDeviceParams{TestCode: "2345-7"})
	require.NoError(t, err)
	require.Equal(t, Implausible, p)
}

func TestPlausibilityErrorsOnUnexpectedStatus(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	defer srv.Close()

	_, err := client.LabResultPlausibility(context.Background(), LabResultParams{})
	require.Error(t, err)
}
