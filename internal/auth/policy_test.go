package auth

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func principal(role Role) *Principal {
	return &Principal{ID: uuid.New(), Username: string(role), Role: role, Active: true}
}

func TestDefaultPolicy_NominalRoles(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		op      Operation
		role    Role
		allowed bool
	}{
		{OpCreateOwnAppointment, RoleClient, true},
		{OpCreateOwnAppointment, RoleMechanic, false},
		{OpCreateAppointmentForAny, RoleClient, false},
		{OpUpdateAppointmentStatus, RoleClient, false},
		{OpUpdateAppointmentStatus, RoleMechanic, false},
		{OpViewOwnAppointments, RoleClient, true},
		{OpViewOwnAppointments, RoleMechanic, false},
		{OpViewAssignedAppointments, RoleMechanic, true},
		{OpViewAssignedAppointments, RoleClient, false},
		{OpViewAllAppointments, RoleMechanic, false},
		{OpBulkImport, RoleClient, false},
		{OpViewAvailability, RoleClient, true},
		{OpRecordWorkItem, RoleMechanic, true},
		{OpRecordWorkItem, RoleClient, false},
		{OpRecordWorkItemForAny, RoleMechanic, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.op)+"/"+string(tt.role), func(t *testing.T) {
			err := policy.Authorize(principal(tt.role), tt.op)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrPermissionDenied)
			assert.False(t, errors.Is(err, ErrUnauthenticated))
		})
	}
}

func TestDefaultPolicy_SecretaryPassesEveryOperation(t *testing.T) {
	policy := DefaultPolicy()
	secretary := principal(RoleSecretary)

	ops := policy.Operations()
	require.NotEmpty(t, ops)
	for _, op := range ops {
		assert.NoError(t, policy.Authorize(secretary, op), "operation %s", op)
	}
}

func TestPolicy_UniversalRoleIgnoresNominalList(t *testing.T) {
	policy := NewPolicy().
		Allow(OpViewOwnAppointments, RoleClient).
		GrantAll(RoleSecretary)

	assert.NoError(t, policy.Authorize(principal(RoleSecretary), OpViewOwnAppointments))
	assert.ErrorIs(t, policy.Authorize(principal(RoleMechanic), OpViewOwnAppointments), ErrPermissionDenied)
}

func TestPolicy_UnauthenticatedAlwaysDenied(t *testing.T) {
	policy := DefaultPolicy()

	inactive := principal(RoleSecretary)
	inactive.Active = false
	noRole := principal("")
	noID := principal(RoleClient)
	noID.ID = uuid.Nil

	for name, p := range map[string]*Principal{
		"nil":      nil,
		"inactive": inactive,
		"no role":  noRole,
		"no id":    noID,
	} {
		t.Run(name, func(t *testing.T) {
			for _, op := range policy.Operations() {
				err := policy.Authorize(p, op)
				assert.ErrorIs(t, err, ErrUnauthenticated)
				assert.ErrorIs(t, err, ErrPermissionDenied)
			}
		})
	}
}

func TestPolicy_UnknownOperationDenied(t *testing.T) {
	policy := DefaultPolicy()

	err := policy.Authorize(principal(RoleSecretary), Operation("drop-database"))
	assert.ErrorIs(t, err, ErrPermissionDenied)
}
