//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/golang-jwt/jwt/v5"

	"github.com/doodlesbykumbi/membership-gateway/pkg/policy"
)

// StepsContext holds state shared between step definitions
type StepsContext struct {
	tc           *TestContext
	response     *http.Response
	responseBody []byte
	envelope     map[string]interface{}
	operator     string
	invitationID string
}

// NewStepsContext creates a new steps context
func NewStepsContext(tc *TestContext) *StepsContext {
	return &StepsContext{tc: tc}
}

// RegisterSteps registers all step definitions
func (s *StepsContext) RegisterSteps(sc *godog.ScenarioContext) {
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		return ctx, s.reset()
	})

	// Background steps
	sc.Step(`^the membership gateway is running$`, s.theGatewayIsRunning)
	sc.Step(`^the default roles exist$`, s.theDefaultRolesExist)
	sc.Step(`^I am "([^"]*)"$`, s.iAm)

	// Request steps
	sc.Step(`^I (GET|POST) "([^"]*)"$`, s.iSendRequest)
	sc.Step(`^I POST "([^"]*)" with:$`, s.iPostWith)
	sc.Step(`^I POST "([^"]*)" without a session$`, s.iPostWithoutSession)

	// Response steps
	sc.Step(`^the response status should be (\d+)$`, s.theResponseStatusShouldBe)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, s.theResponseFieldShouldBe)
	sc.Step(`^the response data should have (\d+) items?$`, s.theResponseDataShouldHaveItems)

	s.registerMembershipSteps(sc)
	s.registerInvitationSteps(sc)
}

func (s *StepsContext) reset() error {
	s.response = nil
	s.responseBody = nil
	s.envelope = nil
	s.operator = ""
	s.invitationID = ""

	s.tc.Graph.Reset()
	return s.tc.DB.Exec(`TRUNCATE role_permissions, roles, resource_signing_seeds`).Error
}

func (s *StepsContext) theGatewayIsRunning() error {
	return waitForServer(s.tc.ServerURL, 5*time.Second)
}

const defaultRoles = `
roles:
  - id: owner
    name: Owner
    level: owner
    permissions: [MANAGE_ADMIN_ROLE, MANAGE_MEMBER_ROLE, INVITE_USERS]
  - id: admin
    name: Admin
    level: admin
    permissions: [MANAGE_MEMBER_ROLE, INVITE_USERS]
  - id: member
    name: Member
    level: member
  - id: follower
    name: Follower
    level: follower
`

func (s *StepsContext) theDefaultRolesExist() error {
	loader := policy.NewLoader(policy.NewGormStore(s.tc.DB))
	_, err := loader.LoadFromReader(context.Background(), strings.NewReader(defaultRoles))
	return err
}

func (s *StepsContext) iAm(userID string) error {
	s.operator = userID
	return nil
}

func (s *StepsContext) sessionToken() (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   s.operator,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.tc.SessionSecret)
}

func (s *StepsContext) do(method, path string, body []byte, authenticated bool) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, s.tc.ServerURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		if s.operator == "" {
			return fmt.Errorf("no operator set; use `I am \"<user>\"` first")
		}
		token, err := s.sessionToken()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.tc.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	s.response = resp
	s.responseBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	s.envelope = nil
	_ = json.Unmarshal(s.responseBody, &s.envelope)
	return nil
}

func (s *StepsContext) iSendRequest(method, path string) error {
	return s.do(method, s.expand(path), nil, true)
}

func (s *StepsContext) iPostWith(path string, body *godog.DocString) error {
	return s.do(http.MethodPost, s.expand(path), []byte(s.expand(body.Content)), true)
}

func (s *StepsContext) iPostWithoutSession(path string) error {
	return s.do(http.MethodPost, path, []byte(`{}`), false)
}

// expand substitutes {invitation} with the id of the last created invitation.
func (s *StepsContext) expand(text string) string {
	return strings.ReplaceAll(text, "{invitation}", s.invitationID)
}

func (s *StepsContext) theResponseStatusShouldBe(expected int) error {
	if s.response == nil {
		return fmt.Errorf("no request was sent")
	}
	if s.response.StatusCode != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, s.response.StatusCode, string(s.responseBody))
	}
	return nil
}

func (s *StepsContext) theResponseFieldShouldBe(path, expected string) error {
	value, ok := lookup(s.envelope, path)
	if !ok {
		return fmt.Errorf("field %q not found in %s", path, string(s.responseBody))
	}
	if actual := fmt.Sprint(value); actual != expected {
		return fmt.Errorf("expected %s to be %q, got %q", path, expected, actual)
	}
	return nil
}

func (s *StepsContext) theResponseDataShouldHaveItems(count int) error {
	items, ok := s.envelope["data"].([]interface{})
	if !ok {
		return fmt.Errorf("response data is not a list: %s", string(s.responseBody))
	}
	if len(items) != count {
		return fmt.Errorf("expected %d items, got %d", count, len(items))
	}
	return nil
}

// lookup walks a dotted path through decoded JSON objects.
func lookup(doc map[string]interface{}, path string) (interface{}, bool) {
	var current interface{} = doc
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
