// Package authz decides whether a principal may perform an action, optionally
// against a resource it may or may not own. Every rule lives in Check; the
// per-role capability listing is derived from it.
package authz

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ovaphlow/pitchfork/service-market-core/internal/identity/entity"
)

// Action is a capability a role may hold.
type Action string

const (
	ActionManageUsers    Action = "manage_users"
	ActionApproveSellers Action = "approve_sellers"
	ActionManageMarket   Action = "manage_market"
	ActionManageProduct  Action = "manage_product"
	ActionRecordPrice    Action = "record_price"
	ActionPlaceOrder     Action = "place_order"
	ActionViewOrder      Action = "view_order"
	ActionManageOrder    Action = "manage_order"
	ActionCancelOrder    Action = "cancel_order"
	ActionViewAnalytics  Action = "view_analytics"
	ActionExportReports  Action = "export_reports"
)

// Actions lists every action in display order.
var Actions = []Action{
	ActionManageUsers,
	ActionApproveSellers,
	ActionManageMarket,
	ActionManageProduct,
	ActionRecordPrice,
	ActionPlaceOrder,
	ActionViewOrder,
	ActionManageOrder,
	ActionCancelOrder,
	ActionViewAnalytics,
	ActionExportReports,
}

// Resource carries the ownership facts of the target.
//
// OwnerID is the identity owning the market or product (for orders: the owner
// of the order's market). CustomerID and OrderStatus are set for orders only.
type Resource struct {
	OwnerID     int64
	CustomerID  int64
	OrderStatus string
}

// ErrPermissionDenied matches every *PermissionDeniedError.
var ErrPermissionDenied = errors.New("permission denied")

// PermissionDeniedError names the capability the principal is missing.
type PermissionDeniedError struct {
	Role   entity.Role
	Action Action
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: role %q lacks %q", e.Role, e.Action)
}

func (e *PermissionDeniedError) Is(target error) bool { return target == ErrPermissionDenied }

func finalOrderStatus(s string) bool { return s == "completed" || s == "cancelled" }

// Check reports whether p may perform action against res (nil for no target).
func Check(p entity.Principal, action Action, res *Resource) bool {
	switch p.Role {
	case entity.RoleAdmin:
		return true
	case entity.RoleSeller:
		switch action {
		case ActionViewAnalytics, ActionExportReports:
			return true
		case ActionManageMarket, ActionManageProduct, ActionRecordPrice,
			ActionViewOrder, ActionManageOrder:
			return res != nil && res.OwnerID != 0 && res.OwnerID == p.ID
		}
	case entity.RoleCustomer:
		switch action {
		case ActionViewAnalytics, ActionExportReports:
			return true
		case ActionPlaceOrder:
			return res == nil || res.CustomerID == p.ID
		case ActionViewOrder:
			return res != nil && res.CustomerID == p.ID
		case ActionCancelOrder:
			return res != nil && res.CustomerID == p.ID && !finalOrderStatus(res.OrderStatus)
		}
	}
	return false
}

// Require is Check returning a *PermissionDeniedError on refusal.
func Require(p entity.Principal, action Action, res *Resource) error {
	if Check(p, action, res) {
		return nil
	}
	return &PermissionDeniedError{Role: p.Role, Action: action}
}

// Scope says whether a capability applies to any target or only owned ones.
type Scope string

const (
	ScopeAll Scope = "all"
	ScopeOwn Scope = "own"
)

// Capability is one entry of a role's capability listing.
type Capability struct {
	Action Action
	Scope  Scope
}

func (c Capability) String() string {
	if c.Scope == ScopeOwn {
		return string(c.Action) + ":own"
	}
	return string(c.Action)
}

var (
	capsOnce  sync.Once
	capsCache map[entity.Role][]Capability
)

// Capabilities returns the cached listing for role, derived by asking Check
// about a resource the role holder owns and one it does not.
func Capabilities(role entity.Role) []Capability {
	capsOnce.Do(func() {
		capsCache = make(map[entity.Role][]Capability)
		for _, r := range []entity.Role{entity.RoleAdmin, entity.RoleSeller, entity.RoleCustomer} {
			capsCache[r] = project(r)
		}
	})
	out := make([]Capability, len(capsCache[role]))
	copy(out, capsCache[role])
	return out
}

func project(role entity.Role) []Capability {
	const self, other = int64(1), int64(2)
	p := entity.Principal{ID: self, Role: role}
	owned := &Resource{OwnerID: self, CustomerID: self, OrderStatus: "pending"}
	foreign := &Resource{OwnerID: other, CustomerID: other, OrderStatus: "pending"}

	var caps []Capability
	for _, a := range Actions {
		switch {
		case Check(p, a, foreign):
			caps = append(caps, Capability{Action: a, Scope: ScopeAll})
		case Check(p, a, owned):
			caps = append(caps, Capability{Action: a, Scope: ScopeOwn})
		}
	}
	return caps
}
