package auth

import (
	"errors"
	"fmt"
	"sort"
)

type Operation string

const (
	OpCreateOwnAppointment     Operation = "create-own-appointment"
	OpCreateAppointmentForAny  Operation = "create-appointment-for-any-client"
	OpUpdateAppointmentStatus  Operation = "update-appointment-status"
	OpViewOwnAppointments      Operation = "view-own-appointments"
	OpViewAssignedAppointments Operation = "view-assigned-appointments"
	OpViewAllAppointments      Operation = "view-all-appointments"
	OpBulkImport               Operation = "bulk-import"
	OpViewAvailability         Operation = "view-availability"
	OpRecordWorkItem           Operation = "record-work-item"
	OpRecordWorkItemForAny     Operation = "record-work-item-for-any-appointment"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnauthenticated  = fmt.Errorf("%w: not authenticated", ErrPermissionDenied)
)

// Policy maps operations to the roles allowed to invoke them. Roles registered
// through GrantAll pass every operation known to the table.
type Policy struct {
	grants    map[Operation]map[Role]struct{}
	universal map[Role]struct{}
}

func NewPolicy() *Policy {
	return &Policy{
		grants:    make(map[Operation]map[Role]struct{}),
		universal: make(map[Role]struct{}),
	}
}

// Allow registers op with its nominal roles. Calling it again adds roles.
func (p *Policy) Allow(op Operation, roles ...Role) *Policy {
	set, ok := p.grants[op]
	if !ok {
		set = make(map[Role]struct{}, len(roles))
		p.grants[op] = set
	}
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return p
}

func (p *Policy) GrantAll(role Role) *Policy {
	p.universal[role] = struct{}{}
	return p
}

// DefaultPolicy is the workshop's access table. The secretary is an
// administrative superuser across every booking and status operation.
func DefaultPolicy() *Policy {
	return NewPolicy().
		Allow(OpCreateOwnAppointment, RoleClient).
		Allow(OpCreateAppointmentForAny, RoleSecretary).
		Allow(OpUpdateAppointmentStatus, RoleSecretary).
		Allow(OpViewOwnAppointments, RoleClient).
		Allow(OpViewAssignedAppointments, RoleMechanic).
		Allow(OpViewAllAppointments, RoleSecretary).
		Allow(OpBulkImport, RoleSecretary).
		Allow(OpViewAvailability, RoleClient).
		Allow(OpRecordWorkItem, RoleMechanic).
		Allow(OpRecordWorkItemForAny, RoleSecretary).
		GrantAll(RoleSecretary)
}

func (p *Policy) Operations() []Operation {
	ops := make([]Operation, 0, len(p.grants))
	for op := range p.grants {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// Authorize returns nil when the principal may invoke op. Unknown operations
// are denied for every role.
func (p *Policy) Authorize(principal *Principal, op Operation) error {
	if !principal.Authenticated() {
		return ErrUnauthenticated
	}

	roles, known := p.grants[op]
	if !known {
		return fmt.Errorf("%w: unknown operation %q", ErrPermissionDenied, op)
	}
	if _, ok := p.universal[principal.Role]; ok {
		return nil
	}
	if _, ok := roles[principal.Role]; ok {
		return nil
	}

	return fmt.Errorf("%w: role %s may not %s", ErrPermissionDenied, principal.Role, op)
}
