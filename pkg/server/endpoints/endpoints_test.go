package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/membership-gateway/pkg/audit"
	"github.com/doodlesbykumbi/membership-gateway/pkg/config"
	"github.com/doodlesbykumbi/membership-gateway/pkg/invitation"
	"github.com/doodlesbykumbi/membership-gateway/pkg/logging"
	"github.com/doodlesbykumbi/membership-gateway/pkg/membership"
	"github.com/doodlesbykumbi/membership-gateway/pkg/metrics"
	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server/middleware"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server/respond"
	"github.com/doodlesbykumbi/membership-gateway/pkg/testenv"
)

func TestMain(m *testing.M) {
	audit.SetEnabled(false)
	m.Run()
}

const (
	space   = "space-1"
	owner   = "did:key:zOwner"
	admin   = "0xadmin"
	invitee = "0xinvitee"
)

var sessionSecret = []byte("endpoint-test-secret")

type MockHealthStore struct {
	mock.Mock
}

func (m *MockHealthStore) CheckConnectivity(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type testServer struct {
	env    *testenv.Env
	srv    *server.Server
	health *MockHealthStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	env := testenv.Isolated(t)
	env.AddResource(t, model.Resource{ID: space, Type: model.ResourceSpace, OwnerID: owner})
	env.Grant(admin, model.ResourceSpace, space, testenv.RoleAdmin)

	logger := logging.Discard()
	registry := prometheus.NewRegistry()
	invitations := invitation.NewService(env.Docs, env.Gate, env.Evaluator, invitation.Options{Now: env.Clock.Now, Logger: logger})
	members := membership.NewService(env.Docs, env.Gate, env.Evaluator, invitations, membership.Options{Now: env.Clock.Now, Logger: logger})
	health := &MockHealthStore{}

	t.Setenv("MEMBERSHIP_CONFIG_PATH", t.TempDir())
	cfg, err := config.Load()
	require.NoError(t, err)
	srv := server.NewServer(cfg, server.Options{
		Logger:      logger,
		Metrics:     metrics.New(registry),
		Gatherer:    registry,
		Session:     middleware.NewSessionAuthenticator(sessionSecret, "", logger),
		Members:     members,
		Invitations: invitations,
		HealthStore: health,
	})
	RegisterAll(srv)
	return &testServer{env: env, srv: srv, health: health}
}

func token(t *testing.T, sub string) string {
	t.Helper()
	now := time.Now()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(sessionSecret)
	require.NoError(t, err)
	return raw
}

type response struct {
	Code int
	respond.Envelope
	Raw json.RawMessage
}

func (ts *testServer) do(t *testing.T, method, path, operator string, body interface{}) response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if operator != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, operator))
	}
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)

	res := response{Code: w.Code, Raw: w.Body.Bytes()}
	_ = json.Unmarshal(w.Body.Bytes(), &res.Envelope)
	return res
}

func (ts *testServer) putInvitation(id string) {
	now := ts.env.Clock.Now()
	ts.env.Graph.PutInvitation(model.Invitation{
		ID:         id,
		InviterID:  owner,
		InviteeID:  invitee,
		Resource:   model.ResourceSpace,
		ResourceID: space,
		RoleID:     testenv.RoleMember,
		Status:     model.InvitationPending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(time.Hour),
		UpdatedAt:  now,
		LastSentAt: now,
	})
}

func TestRequiresSession(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/member/add", "/invitation/reject"} {
		res := ts.do(t, http.MethodPost, path, "", map[string]string{})
		assert.Equal(t, http.StatusUnauthorized, res.Code, path)
		assert.Equal(t, "AuthenticationError", res.Error)
	}
}

func TestAdminAddsAdmin(t *testing.T) {
	ts := newTestServer(t)
	body := map[string]string{
		"resourceType": "space",
		"resourceId":   space,
		"userId":       "0xnewadmin",
		"roleId":       testenv.RoleAdmin,
	}

	res := ts.do(t, http.MethodPost, "/member/add", admin, body)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, "error", res.Status)
	assert.Equal(t, "AuthorizationError", res.Error)

	ts.env.Roles.SetPermissions(testenv.RoleAdmin, model.PermissionManageAdminRole, model.PermissionManageMemberRole)
	res = ts.do(t, http.MethodPost, "/member/add", admin, body)
	require.Equal(t, http.StatusOK, res.Code, string(res.Raw))
	assert.Equal(t, "success", res.Status)

	count := 0
	for _, ur := range ts.env.Graph.UserRoles(space) {
		if ur.UserID == "0xnewadmin" {
			count++
			assert.Equal(t, testenv.RoleAdmin, ur.RoleID)
		}
	}
	assert.Equal(t, 1, count)
}

func TestMemberValidation(t *testing.T) {
	ts := newTestServer(t)

	res := ts.do(t, http.MethodPost, "/member/add", admin, map[string]string{"resourceType": "club"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "ValidationError", res.Error)
	assert.Equal(t, "must be one of space, event", res.Details["resourceType"])
	assert.Equal(t, "is required", res.Details["resourceId"])
	assert.Equal(t, "is required", res.Details["userId"])
	assert.Equal(t, "is required", res.Details["roleId"])

	req := httptest.NewRequest(http.MethodPost, "/member/join", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+token(t, admin))
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFollowLifecycle(t *testing.T) {
	ts := newTestServer(t)
	body := map[string]string{"resourceType": "space", "resourceId": space}

	res := ts.do(t, http.MethodPost, "/member/follow", "0xfan", body)
	require.Equal(t, http.StatusOK, res.Code, string(res.Raw))

	res = ts.do(t, http.MethodPost, "/member/follow", "0xfan", body)
	assert.Equal(t, http.StatusConflict, res.Code)

	res = ts.do(t, http.MethodPost, "/member/unfollow", "0xfan", body)
	assert.Equal(t, http.StatusOK, res.Code)

	res = ts.do(t, http.MethodPost, "/member/unfollow", "0xfan", body)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestAssignableRoles(t *testing.T) {
	ts := newTestServer(t)

	res := ts.do(t, http.MethodGet, "/member/assignable-roles?resourceType=space&resourceId="+space, admin, nil)
	require.Equal(t, http.StatusOK, res.Code, string(res.Raw))

	var env struct {
		Data []model.RolePermission `json:"data"`
	}
	require.NoError(t, json.Unmarshal(res.Raw, &env))
	var ids []string
	for _, rp := range env.Data {
		ids = append(ids, rp.RoleID)
	}
	assert.Equal(t, []string{testenv.RoleMember, testenv.RoleFollower}, ids)

	res = ts.do(t, http.MethodGet, "/member/assignable-roles?resourceType=space", admin, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "is required", res.Details["resourceId"])
}

func TestQueryDecoding(t *testing.T) {
	ts := newTestServer(t)

	res := ts.do(t, http.MethodGet, "/member/assignable-roles?resourceType=space&resourceId="+space+"&page=2", admin, nil)
	assert.Equal(t, http.StatusOK, res.Code, "unknown parameters are ignored")

	res = ts.do(t, http.MethodGet, "/member/assignable-roles?resourceType=club&resourceId="+space, admin, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "must be one of space, event", res.Details["resourceType"])

	res = ts.do(t, http.MethodGet, "/invitation/list?status=pending&resourceId="+space, invitee, nil)
	assert.Equal(t, http.StatusOK, res.Code, string(res.Raw))

	res = ts.do(t, http.MethodGet, "/invitation/list?status=lost", invitee, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Details["status"], "must be one of")
}

func TestInviteeRejectsPendingInvitation(t *testing.T) {
	ts := newTestServer(t)
	ts.putInvitation("inv1")

	res := ts.do(t, http.MethodPost, "/invitation/reject", invitee, map[string]string{"invitationId": "inv1"})
	require.Equal(t, http.StatusOK, res.Code, string(res.Raw))

	stored, ok := ts.env.Graph.Invitation("inv1")
	require.True(t, ok)
	assert.Equal(t, model.InvitationRejected, stored.Status)
	assert.True(t, stored.IsRead)
}

func TestNonInviterCancel(t *testing.T) {
	ts := newTestServer(t)
	ts.putInvitation("inv1")

	res := ts.do(t, http.MethodPost, "/invitation/cancel", invitee, map[string]string{"invitationId": "inv1"})
	assert.Equal(t, http.StatusForbidden, res.Code)

	stored, _ := ts.env.Graph.Invitation("inv1")
	assert.Equal(t, model.InvitationPending, stored.Status)
	assert.Empty(t, ts.env.Graph.Writes())
}

func TestInvitationGuardStatusCodes(t *testing.T) {
	ts := newTestServer(t)
	ts.putInvitation("inv1")

	res := ts.do(t, http.MethodPost, "/invitation/read", "0xstranger", map[string]string{"invitationId": "inv1"})
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = ts.do(t, http.MethodPost, "/invitation/reject", invitee, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	ts.env.Clock.Advance(2 * time.Hour)
	res = ts.do(t, http.MethodPost, "/invitation/reject", invitee, map[string]string{"invitationId": "inv1"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "ExpiredError", res.Error)
}

func TestInvitationFlow(t *testing.T) {
	ts := newTestServer(t)

	res := ts.do(t, http.MethodPost, "/invitation/create", admin, map[string]string{
		"inviteeId":    invitee,
		"resourceType": "space",
		"resourceId":   space,
		"roleId":       testenv.RoleMember,
	})
	require.Equal(t, http.StatusOK, res.Code, string(res.Raw))
	var created struct {
		Data model.Invitation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(res.Raw, &created))

	res = ts.do(t, http.MethodGet, "/invitation/unread-count", invitee, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"count":1}`, mustJSON(t, res.Data))

	res = ts.do(t, http.MethodGet, "/invitation/pending", invitee, nil)
	require.Equal(t, http.StatusOK, res.Code)

	res = ts.do(t, http.MethodPost, "/invitation/mark-read", invitee, map[string][]string{})
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"updated":1}`, mustJSON(t, res.Data))

	res = ts.do(t, http.MethodPost, "/invitation/accept", invitee, map[string]string{"invitationId": created.Data.ID})
	require.Equal(t, http.StatusOK, res.Code, string(res.Raw))

	res = ts.do(t, http.MethodGet, "/invitation/list?status=accepted", invitee, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var listed struct {
		Data []invitation.View `json:"data"`
	}
	require.NoError(t, json.Unmarshal(res.Raw, &listed))
	require.Len(t, listed.Data, 1)
	assert.Equal(t, created.Data.ID, listed.Data[0].ID)
	assert.False(t, listed.Data[0].Expired)

	res = ts.do(t, http.MethodGet, "/invitation/list?status=bogus", invitee, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	found := false
	for _, ur := range ts.env.Graph.UserRoles(space) {
		if ur.UserID == invitee {
			found = true
		}
	}
	assert.True(t, found)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	ts.health.On("CheckConnectivity", mock.Anything).Return(nil).Once()
	res := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, res.Code)

	ts.health.On("CheckConnectivity", mock.Anything).Return(errors.New("connection refused")).Once()
	res = ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
	assert.Equal(t, "database unreachable", res.Message)

	ts.health.AssertExpectations(t)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.health.On("CheckConnectivity", mock.Anything).Return(nil)
	ts.do(t, http.MethodGet, "/healthz", "", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `membership_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
