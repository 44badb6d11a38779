// Package accesspolicy is the single table of who may do what.
//
// Each role-gated operation maps every role to a Scope. Routes derive their
// role gates from the table (Roles), and domain operations derive their
// ownership filters from it (Scope / OwnerFilter), so the rules live in one
// place and are evaluated once per request.
package accesspolicy

import (
	"sort"

	"github.com/dalemusser/impacthub/internal/app/system/apperr"
	"github.com/dalemusser/impacthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Operation names a role-gated action.
type Operation string

const (
	NGORegister Operation = "ngo.register"
	NGOUpdate   Operation = "ngo.update"
	NGODelete   Operation = "ngo.delete"
	NGOVerify   Operation = "ngo.verify"

	EventCreate     Operation = "event.create"
	EventUpdate     Operation = "event.update"
	EventDelete     Operation = "event.delete"
	EventRegister   Operation = "event.register"
	EventUnregister Operation = "event.unregister"
	EventListMine   Operation = "event.list_mine"

	ParticipationListMine Operation = "participation.list_mine"
	ParticipationManage   Operation = "participation.manage" // roster, attendance, certificate
	ParticipationFeedback Operation = "participation.feedback"

	AdminUsers   Operation = "admin.users"
	AdminReports Operation = "admin.reports"
	AdminAudit   Operation = "admin.audit"
)

// Scope is how much of a collection a role may touch for an operation.
type Scope int

const (
	// None forbids the operation.
	None Scope = iota
	// Own limits the operation to records the user created (or, for
	// participant operations, the user's own participations).
	Own
	// All permits the operation on any record.
	All
)

func (s Scope) String() string {
	switch s {
	case Own:
		return "own"
	case All:
		return "all"
	}
	return "none"
}

type row map[string]Scope

var table = map[Operation]row{
	NGORegister: {models.RoleUser: Own, models.RoleNGOAdmin: Own, models.RoleAdmin: Own},
	NGOUpdate:   {models.RoleNGOAdmin: Own, models.RoleAdmin: All},
	NGODelete:   {models.RoleNGOAdmin: Own, models.RoleAdmin: All},
	NGOVerify:   {models.RoleAdmin: All},

	EventCreate:     {models.RoleNGOAdmin: Own, models.RoleAdmin: All},
	EventUpdate:     {models.RoleNGOAdmin: Own, models.RoleAdmin: All},
	EventDelete:     {models.RoleNGOAdmin: Own, models.RoleAdmin: All},
	EventRegister:   {models.RoleUser: Own},
	EventUnregister: {models.RoleUser: Own, models.RoleNGOAdmin: Own, models.RoleAdmin: Own},
	EventListMine:   {models.RoleUser: Own, models.RoleNGOAdmin: Own, models.RoleAdmin: All},

	ParticipationListMine: {models.RoleUser: Own, models.RoleNGOAdmin: Own, models.RoleAdmin: Own},
	ParticipationManage:   {models.RoleNGOAdmin: Own, models.RoleAdmin: All},
	ParticipationFeedback: {models.RoleUser: Own, models.RoleNGOAdmin: Own, models.RoleAdmin: Own},

	AdminUsers:   {models.RoleAdmin: All},
	AdminReports: {models.RoleAdmin: All},
	AdminAudit:   {models.RoleAdmin: All},
}

// ScopeFor returns the scope role has for op.
func ScopeFor(op Operation, role string) Scope {
	return table[op][role]
}

// Allowed reports whether role may perform op at all.
func Allowed(op Operation, role string) bool {
	return ScopeFor(op, role) != None
}

// Roles returns the roles permitted to perform op, sorted.
func Roles(op Operation) []string {
	var out []string
	for role, s := range table[op] {
		if s != None {
			out = append(out, role)
		}
	}
	sort.Strings(out)
	return out
}

// SetRoles replaces the permitted roles for op, granting each listed role
// Own scope (or keeping All where the table already grants it). Used at
// startup for deployment-configurable operations such as NGO registration.
func SetRoles(op Operation, roles []string) {
	r := row{}
	for _, role := range roles {
		if table[op][role] == All {
			r[role] = All
			continue
		}
		r[role] = Own
	}
	table[op] = r
}

// needsVerified lists the operations an NGO_ADMIN may only perform once an
// admin has verified the account.
var needsVerified = map[Operation]bool{
	NGOUpdate:           true,
	NGODelete:           true,
	EventCreate:         true,
	EventUpdate:         true,
	EventDelete:         true,
	ParticipationManage: true,
}

// Decision is the outcome of evaluating the table for one user.
type Decision struct {
	Allowed    bool
	Scope      Scope
	Unverified bool // refused only because the NGO admin is not verified
}

// Evaluate looks up op for u. A nil user is never allowed.
func Evaluate(op Operation, u *models.User) Decision {
	if u == nil {
		return Decision{}
	}
	s := ScopeFor(op, u.Role)
	if s != None && u.Role == models.RoleNGOAdmin && !u.Verified && needsVerified[op] {
		return Decision{Unverified: true}
	}
	return Decision{Allowed: s != None, Scope: s}
}

// OwnerFilter returns a Mongo filter restricting op to what u may touch:
// nil for All, {field: u.ID} for Own. ok is false when u may not perform
// op at all.
func OwnerFilter(op Operation, u *models.User, field string) (filter bson.M, ok bool) {
	d := Evaluate(op, u)
	switch {
	case !d.Allowed:
		return nil, false
	case d.Scope == All:
		return bson.M{}, true
	default:
		return bson.M{field: u.ID}, true
	}
}

// Denied is the error for a refused decision.
func (d Decision) Denied() error {
	if d.Unverified {
		return apperr.Forbidden("your NGO admin account has not been verified yet")
	}
	return apperr.Forbidden("forbidden")
}

// Require returns nil when u may perform op on a record created by owner,
// and an Authorization error otherwise.
func Require(op Operation, u *models.User, owner primitive.ObjectID) error {
	d := Evaluate(op, u)
	if !d.Allowed {
		return d.Denied()
	}
	if d.Scope == All || owner == u.ID {
		return nil
	}
	return apperr.Forbidden("forbidden")
}
