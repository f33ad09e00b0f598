package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/membership-gateway/pkg/config"
)

func newServer(t *testing.T) (*Server, *bytes.Buffer) {
	t.Helper()
	t.Setenv("MEMBERSHIP_CONFIG_PATH", t.TempDir())
	cfg, err := config.Load()
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	return NewServer(cfg, Options{Logger: logger}), &buf
}

func TestRecoversFromPanics(t *testing.T) {
	s, buf := newServer(t)
	s.Router.HandleFunc("/boom", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, buf.String(), "kaboom")
}

func TestListenAddress(t *testing.T) {
	s, _ := newServer(t)
	assert.Equal(t, s.Config.ListenAddress(), s.srv.Addr)
}
