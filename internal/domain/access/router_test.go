package access

import (
	"testing"

	"reliefportal/internal/domain/account"
)

// TestDecide tests every branch of the route decision.
func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		state    RouteState
		required account.Role
		want     Decision
	}{
		{"loading wins", RouteState{Loading: true, HasUser: true, Role: account.RoleAdmin}, account.RoleAdmin, Wait},
		{"loading without user", RouteState{Loading: true}, account.RoleAdmin, Wait},
		{"no user", RouteState{}, account.RoleAdmin, RedirectSignIn},
		{"no user any role", RouteState{Role: account.RoleAdmin}, account.RoleAdmin, RedirectSignIn},
		{"wrong role", RouteState{HasUser: true, Role: account.RoleVolunteer}, account.RoleAdmin, RedirectHome},
		{"no role row", RouteState{HasUser: true}, account.RoleVolunteer, RedirectHome},
		{"admin allowed", RouteState{HasUser: true, Role: account.RoleAdmin}, account.RoleAdmin, Allow},
		{"donor allowed", RouteState{HasUser: true, Role: account.RoleDonor}, account.RoleDonor, Allow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.state, tt.required); got != tt.want {
				t.Errorf("Decide() = %s, want %s", got, tt.want)
			}
		})
	}
}

// TestDecision_Target tests redirect targets.
func TestDecision_Target(t *testing.T) {
	if RedirectSignIn.Target() != "/auth" {
		t.Errorf("sign-in target = %q", RedirectSignIn.Target())
	}
	if RedirectHome.Target() != "/" {
		t.Errorf("home target = %q", RedirectHome.Target())
	}
	if Allow.Target() != "" || Wait.Target() != "" {
		t.Error("non-redirect decisions should have no target")
	}
}
