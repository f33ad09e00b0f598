//go:build integration

package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/doodlesbykumbi/membership-gateway/pkg/credential"
	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
)

func (s *StepsContext) registerMembershipSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a space "([^"]*)" owned by "([^"]*)"$`, s.aSpaceOwnedBy)
	sc.Step(`^a gated space "([^"]*)" owned by "([^"]*)"$`, s.aGatedSpaceOwnedBy)
	sc.Step(`^"([^"]*)" holds the "([^"]*)" role on space "([^"]*)"$`, s.holdsRoleOnSpace)
	sc.Step(`^the "([^"]*)" role is granted "([^"]*)" on space "([^"]*)"$`, s.roleIsGrantedOnSpace)

	sc.Step(`^"([^"]*)" should hold the "([^"]*)" role on space "([^"]*)"$`, s.shouldHoldRoleOnSpace)
	sc.Step(`^"([^"]*)" should hold no role on space "([^"]*)"$`, s.shouldHoldNoRoleOnSpace)
	sc.Step(`^no writes should have been made on space "([^"]*)"$`, s.noWritesOnSpace)
	sc.Step(`^every write on space "([^"]*)" should be signed by its own identity$`, s.everyWriteSignedBySpace)
}

func (s *StepsContext) addSpace(spaceID, ownerID string, gated bool) error {
	signer, err := credential.NewBroker(s.tc.Seeds, 0, nil).Provision(context.Background(), spaceID)
	if err != nil {
		return fmt.Errorf("failed to provision signing seed: %w", err)
	}
	s.tc.Graph.AddResource(model.Resource{
		ID:      spaceID,
		Type:    model.ResourceSpace,
		OwnerID: ownerID,
		Gated:   gated,
	}, signer.DID())
	return s.holdsRoleOnSpace(ownerID, "owner", spaceID)
}

func (s *StepsContext) aSpaceOwnedBy(spaceID, ownerID string) error {
	return s.addSpace(spaceID, ownerID, false)
}

func (s *StepsContext) aGatedSpaceOwnedBy(spaceID, ownerID string) error {
	return s.addSpace(spaceID, ownerID, true)
}

func (s *StepsContext) holdsRoleOnSpace(userID, roleID, spaceID string) error {
	now := time.Now().UTC()
	s.tc.Graph.PutUserRole(model.UserRole{
		ID:           uuid.NewString(),
		UserID:       userID,
		ResourceID:   spaceID,
		ResourceType: model.ResourceSpace,
		RoleID:       roleID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	return nil
}

func (s *StepsContext) roleIsGrantedOnSpace(roleID, permissionName, spaceID string) error {
	var permissionID string
	if err := s.tc.DB.Raw(`SELECT id FROM permissions WHERE name = ?`, permissionName).Scan(&permissionID).Error; err != nil {
		return err
	}
	if permissionID == "" {
		return fmt.Errorf("unknown permission %s", permissionName)
	}
	return s.tc.DB.Exec(
		`INSERT INTO role_permissions (id, role_id, resource_type, resource_id, permissions) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), roleID, string(model.ResourceSpace), spaceID, pq.StringArray{permissionID},
	).Error
}

func (s *StepsContext) roleOn(userID, spaceID string) *model.UserRole {
	for _, ur := range s.tc.Graph.UserRoles(spaceID) {
		if model.SameID(ur.UserID, userID) {
			ur := ur
			return &ur
		}
	}
	return nil
}

func (s *StepsContext) shouldHoldRoleOnSpace(userID, roleID, spaceID string) error {
	ur := s.roleOn(userID, spaceID)
	if ur == nil {
		return fmt.Errorf("%s holds no role on %s", userID, spaceID)
	}
	if ur.RoleID != roleID {
		return fmt.Errorf("expected %s to hold %q on %s, got %q", userID, roleID, spaceID, ur.RoleID)
	}
	return nil
}

func (s *StepsContext) shouldHoldNoRoleOnSpace(userID, spaceID string) error {
	if ur := s.roleOn(userID, spaceID); ur != nil {
		return fmt.Errorf("expected %s to hold no role on %s, got %q", userID, spaceID, ur.RoleID)
	}
	return nil
}

func (s *StepsContext) noWritesOnSpace(spaceID string) error {
	for _, w := range s.tc.Graph.Writes() {
		if w.ResourceID == spaceID {
			return fmt.Errorf("unexpected %s write on %s", w.Operation, spaceID)
		}
	}
	return nil
}

func (s *StepsContext) everyWriteSignedBySpace(spaceID string) error {
	signer, err := credential.NewBroker(s.tc.Seeds, 0, nil).Acquire(context.Background(), spaceID)
	if err != nil {
		return err
	}
	found := false
	for _, w := range s.tc.Graph.Writes() {
		if w.ResourceID != spaceID {
			continue
		}
		found = true
		if w.DID != signer.DID() {
			return fmt.Errorf("%s on %s was signed by %s, want %s", w.Operation, spaceID, w.DID, signer.DID())
		}
	}
	if !found {
		return fmt.Errorf("no writes were made on %s", spaceID)
	}
	return nil
}
