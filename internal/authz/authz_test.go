package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-market-core/internal/identity/entity"
)

var (
	admin    = entity.Principal{ID: 1, Role: entity.RoleAdmin}
	seller   = entity.Principal{ID: 10, Role: entity.RoleSeller}
	customer = entity.Principal{ID: 7, Role: entity.RoleCustomer}
)

func TestAdminIsPermittedEverything(t *testing.T) {
	for _, a := range Actions {
		assert.True(t, Check(admin, a, nil), "admin %s without resource", a)
		assert.True(t, Check(admin, a, &Resource{OwnerID: 99, CustomerID: 99, OrderStatus: "completed"}), "admin %s", a)
	}
}

func TestSellerOwnership(t *testing.T) {
	own := &Resource{OwnerID: seller.ID}
	foreign := &Resource{OwnerID: 11}

	for _, a := range []Action{ActionManageMarket, ActionManageProduct, ActionRecordPrice, ActionViewOrder, ActionManageOrder} {
		assert.True(t, Check(seller, a, own), "own %s", a)
		assert.False(t, Check(seller, a, foreign), "foreign %s", a)
		assert.False(t, Check(seller, a, nil), "untargeted %s", a)
	}
	// unowned resources never match a seller
	assert.False(t, Check(seller, ActionManageMarket, &Resource{}))

	assert.True(t, Check(seller, ActionViewAnalytics, nil))
	assert.True(t, Check(seller, ActionExportReports, nil))
	assert.False(t, Check(seller, ActionPlaceOrder, nil))
	assert.False(t, Check(seller, ActionCancelOrder, &Resource{OwnerID: seller.ID, CustomerID: seller.ID}))
	assert.False(t, Check(seller, ActionManageUsers, nil))
}

func TestCustomerRules(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		res    *Resource
		want   bool
	}{
		{"place order", ActionPlaceOrder, nil, true},
		{"place order for self", ActionPlaceOrder, &Resource{CustomerID: customer.ID}, true},
		{"place order for someone else", ActionPlaceOrder, &Resource{CustomerID: 8}, false},
		{"view own order", ActionViewOrder, &Resource{CustomerID: customer.ID}, true},
		{"view other order", ActionViewOrder, &Resource{CustomerID: 8}, false},
		{"cancel own pending", ActionCancelOrder, &Resource{CustomerID: customer.ID, OrderStatus: "pending"}, true},
		{"cancel own ready", ActionCancelOrder, &Resource{CustomerID: customer.ID, OrderStatus: "ready"}, true},
		{"cancel own completed", ActionCancelOrder, &Resource{CustomerID: customer.ID, OrderStatus: "completed"}, false},
		{"cancel own cancelled", ActionCancelOrder, &Resource{CustomerID: customer.ID, OrderStatus: "cancelled"}, false},
		{"cancel other", ActionCancelOrder, &Resource{CustomerID: 8, OrderStatus: "pending"}, false},
		{"manage order", ActionManageOrder, &Resource{CustomerID: customer.ID}, false},
		{"analytics", ActionViewAnalytics, nil, true},
		{"export", ActionExportReports, nil, true},
		{"manage market", ActionManageMarket, &Resource{OwnerID: customer.ID}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Check(customer, tt.action, tt.res))
		})
	}
}

func TestUnknownRoleIsDenied(t *testing.T) {
	ghost := entity.Principal{ID: 5, Role: entity.Role("guest")}
	for _, a := range Actions {
		assert.False(t, Check(ghost, a, &Resource{OwnerID: 5, CustomerID: 5}))
	}
}

func TestRequireNamesMissingCapability(t *testing.T) {
	err := Require(customer, ActionManageOrder, &Resource{OwnerID: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	var pd *PermissionDeniedError
	require.ErrorAs(t, err, &pd)
	assert.Equal(t, ActionManageOrder, pd.Action)
	assert.Equal(t, entity.RoleCustomer, pd.Role)
	assert.Contains(t, err.Error(), "manage_order")

	assert.NoError(t, Require(admin, ActionManageUsers, nil))
}

func TestCapabilitiesAreProjectedFromCheck(t *testing.T) {
	names := func(role entity.Role) []string {
		var out []string
		for _, c := range Capabilities(role) {
			out = append(out, c.String())
		}
		return out
	}

	assert.Len(t, Capabilities(entity.RoleAdmin), len(Actions))
	for _, c := range Capabilities(entity.RoleAdmin) {
		assert.Equal(t, ScopeAll, c.Scope)
	}

	assert.Equal(t, []string{
		"manage_market:own",
		"manage_product:own",
		"record_price:own",
		"view_order:own",
		"manage_order:own",
		"view_analytics",
		"export_reports",
	}, names(entity.RoleSeller))

	assert.Equal(t, []string{
		"place_order:own",
		"view_order:own",
		"cancel_order:own",
		"view_analytics",
		"export_reports",
	}, names(entity.RoleCustomer))

	assert.Empty(t, Capabilities(entity.Role("guest")))
}

func TestCapabilitiesAgreeWithCheck(t *testing.T) {
	for _, role := range []entity.Role{entity.RoleAdmin, entity.RoleSeller, entity.RoleCustomer} {
		p := entity.Principal{ID: 42, Role: role}
		listed := map[Action]Scope{}
		for _, c := range Capabilities(role) {
			listed[c.Action] = c.Scope
		}
		for _, a := range Actions {
			owned := Check(p, a, &Resource{OwnerID: 42, CustomerID: 42, OrderStatus: "pending"})
			_, ok := listed[a]
			assert.Equal(t, owned, ok, "%s/%s", role, a)
		}
	}
}

func TestCapabilitiesReturnsCopy(t *testing.T) {
	caps := Capabilities(entity.RoleSeller)
	caps[0].Action = ActionManageUsers
	assert.Equal(t, ActionManageMarket, Capabilities(entity.RoleSeller)[0].Action)
}
