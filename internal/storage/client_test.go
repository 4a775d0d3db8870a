package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPutObject(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())

	err := client.PutObject(context.Background(), "room-images", "GOL_2000_ts", []byte("jpeg-bytes"), "image/jpeg")

	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/room-images/GOL_2000_ts", gotPath)
	assert.Equal(t, []byte("jpeg-bytes"), gotBody)
}

func TestDeleteObject(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())

	err := client.DeleteObject(context.Background(), "room-images", "GOL_2000_ts")

	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/room-images/GOL_2000_ts", gotPath)
}

func TestDeleteObject_ServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())

	assert.Error(t, client.DeleteObject(context.Background(), "room-images", "GOL_2000_ts"))
}

func TestPutObject_MissingArgs(t *testing.T) {
	client := NewClient("http://localhost:0", zap.NewNop())

	assert.Error(t, client.PutObject(context.Background(), "", "k", nil, "image/jpeg"))
	assert.Error(t, client.PutObject(context.Background(), "b", "", nil, "image/jpeg"))
}
