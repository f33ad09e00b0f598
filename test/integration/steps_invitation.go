//go:build integration

package integration

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cucumber/godog"

	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
)

func (s *StepsContext) registerInvitationSteps(sc *godog.ScenarioContext) {
	sc.Step(`^"([^"]*)" has invited "([^"]*)" to space "([^"]*)" as "([^"]*)"$`, s.hasInvited)
	sc.Step(`^the invitation has expired$`, s.theInvitationHasExpired)

	sc.Step(`^the invitation should be "([^"]*)"$`, s.theInvitationShouldBe)
	sc.Step(`^the invitation should be read$`, s.theInvitationShouldBeRead)
	sc.Step(`^the invitation should be unread$`, s.theInvitationShouldBeUnread)
}

func (s *StepsContext) hasInvited(inviterID, inviteeID, spaceID, roleID string) error {
	previous := s.operator
	defer func() { s.operator = previous }()

	s.operator = inviterID
	body, err := json.Marshal(map[string]string{
		"resourceType": string(model.ResourceSpace),
		"resourceId":   spaceID,
		"inviteeId":    inviteeID,
		"roleId":       roleID,
	})
	if err != nil {
		return err
	}
	if err := s.do("POST", "/invitation/create", body, true); err != nil {
		return err
	}
	if err := s.theResponseStatusShouldBe(200); err != nil {
		return err
	}

	id, ok := lookup(s.envelope, "data.id")
	if !ok {
		return fmt.Errorf("created invitation has no id: %s", string(s.responseBody))
	}
	s.invitationID = fmt.Sprint(id)
	return nil
}

func (s *StepsContext) currentInvitation() (model.Invitation, error) {
	if s.invitationID == "" {
		return model.Invitation{}, fmt.Errorf("no invitation was created")
	}
	inv, ok := s.tc.Graph.Invitation(s.invitationID)
	if !ok {
		return model.Invitation{}, fmt.Errorf("invitation %s not found", s.invitationID)
	}
	return inv, nil
}

func (s *StepsContext) theInvitationHasExpired() error {
	inv, err := s.currentInvitation()
	if err != nil {
		return err
	}
	inv.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	s.tc.Graph.PutInvitation(inv)
	return nil
}

func (s *StepsContext) theInvitationShouldBe(status string) error {
	inv, err := s.currentInvitation()
	if err != nil {
		return err
	}
	if string(inv.Status) != status {
		return fmt.Errorf("expected invitation to be %q, got %q", status, inv.Status)
	}
	return nil
}

func (s *StepsContext) theInvitationShouldBeRead() error {
	inv, err := s.currentInvitation()
	if err != nil {
		return err
	}
	if !inv.IsRead {
		return fmt.Errorf("expected invitation to be read")
	}
	return nil
}

func (s *StepsContext) theInvitationShouldBeUnread() error {
	inv, err := s.currentInvitation()
	if err != nil {
		return err
	}
	if inv.IsRead {
		return fmt.Errorf("expected invitation to be unread")
	}
	return nil
}
