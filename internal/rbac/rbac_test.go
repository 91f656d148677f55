package rbac

import "testing"

func TestCan(t *testing.T) {
	tests := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleAdmin, ActionRead, true},
		{RoleAdmin, ActionWrite, true},
		{RoleAdmin, ActionApprove, true},
		{RoleAdmin, ActionAdmin, true},
		{RoleManager, ActionRead, true},
		{RoleManager, ActionWrite, true},
		{RoleManager, ActionApprove, true},
		{RoleManager, ActionAdmin, false},
		{RoleAgent, ActionRead, true},
		{RoleAgent, ActionWrite, true},
		{RoleAgent, ActionApprove, false},
		{RoleAgent, ActionAdmin, false},
		{RoleViewer, ActionRead, true},
		{RoleViewer, ActionWrite, false},
		{RoleViewer, ActionApprove, false},
		{RoleViewer, ActionAdmin, false},
		{Role("intern"), ActionRead, false},
	}
	for _, tt := range tests {
		if got := Can(tt.role, tt.action); got != tt.want {
			t.Errorf("Can(%s, %s) = %v, want %v", tt.role, tt.action, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"admin", RoleAdmin},
		{"manager", RoleManager},
		{"agent", RoleAgent},
		{"viewer", RoleViewer},
		{"", RoleViewer},
		{"superuser", RoleViewer},
		{"Admin", RoleViewer},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
