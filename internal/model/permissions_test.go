package model

import "testing"

func TestHasPermissionRoleDefaults(t *testing.T) {
	tests := []struct {
		role string
		key  string
		want bool
	}{
		{RoleSuperAdmin, PermUsers, true},
		{RoleSuperAdmin, PermSettings, true},
		{RoleAdmin, PermUsers, false},
		{RoleAdmin, PermSettings, true},
		{RoleAdmin, PermFixtures, true},
		{RoleEditor, PermNews, true},
		{RoleEditor, PermFixtures, true},
		{RoleEditor, PermGallery, true},
		{RoleEditor, PermPlayers, false},
		{RoleEditor, PermUsers, false},
		{RoleEditor, PermSettings, false},
	}

	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.key, func(t *testing.T) {
			u := &AdminUser{Role: tt.role}
			if got := HasPermission(u, tt.key); got != tt.want {
				t.Errorf("HasPermission(%s, %s) = %v, want %v", tt.role, tt.key, got, tt.want)
			}
		})
	}
}

func TestHasPermissionOverrides(t *testing.T) {
	// Explicit per-user override beats the role default both ways.
	editor := &AdminUser{Role: RoleEditor, Permissions: map[string]bool{PermPlayers: true}}
	if !HasPermission(editor, PermPlayers) {
		t.Error("override grant ignored")
	}
	admin := &AdminUser{Role: RoleAdmin, Permissions: map[string]bool{PermFixtures: false}}
	if HasPermission(admin, PermFixtures) {
		t.Error("override revoke ignored")
	}
	// Keys absent from the override fall back to the role default.
	if !HasPermission(admin, PermNews) {
		t.Error("fallback to role default failed")
	}
}

func TestHasPermissionUnknown(t *testing.T) {
	u := &AdminUser{Role: RoleSuperAdmin}
	if HasPermission(u, "time-travel") {
		t.Error("unknown key must deny")
	}
	if HasPermission(&AdminUser{Role: "intern"}, PermNews) {
		t.Error("unknown role must deny")
	}
	if HasPermission(nil, PermNews) {
		t.Error("nil user must deny")
	}
}

func TestCanPerformAction(t *testing.T) {
	editor := &AdminUser{Role: RoleEditor}
	admin := &AdminUser{Role: RoleAdmin}
	super := &AdminUser{Role: RoleSuperAdmin}

	if !CanPerformAction(editor, "create") || !CanPerformAction(editor, "edit") {
		t.Error("any authenticated user can create/edit")
	}
	if CanPerformAction(editor, "delete") {
		t.Error("editor must not delete")
	}
	if !CanPerformAction(admin, "delete") || !CanPerformAction(super, "delete") {
		t.Error("admin/super-admin can delete")
	}
	if CanPerformAction(admin, "manageUsers") {
		t.Error("admin must not manage users by default")
	}
	if !CanPerformAction(super, "manageUsers") {
		t.Error("super-admin manages users")
	}
	if CanPerformAction(super, "defenestrate") {
		t.Error("unknown action must deny")
	}
}

func TestCanAccessSection(t *testing.T) {
	editor := &AdminUser{Role: RoleEditor}
	super := &AdminUser{Role: RoleSuperAdmin}

	if !CanAccessSection(editor, "dashboard") {
		t.Error("dashboard is always accessible")
	}
	if CanAccessSection(editor, "activity-log") {
		t.Error("activity log is super-admin only")
	}
	if !CanAccessSection(super, "activity-log") {
		t.Error("super-admin can open activity log")
	}
	// Sub-sections inherit the parent permission.
	if !CanAccessSection(editor, "news-drafts") {
		t.Error("news-drafts inherits news")
	}
	if CanAccessSection(editor, "shop-orders") {
		t.Error("shop-orders inherits shop, denied for editor")
	}
	// settings-backup is hardcoded super-admin only.
	admin := &AdminUser{Role: RoleAdmin}
	if CanAccessSection(admin, "settings-backup") {
		t.Error("settings-backup is super-admin only")
	}
	if !CanAccessSection(super, "settings-backup") {
		t.Error("super-admin can open settings-backup")
	}
	if CanAccessSection(super, "broom-cupboard") {
		t.Error("unknown section must deny")
	}
}

func TestCountActiveSuperAdmins(t *testing.T) {
	users := []AdminUser{
		{Role: RoleSuperAdmin, Status: StatusActive},
		{Role: RoleSuperAdmin, Status: StatusDisabled},
		{Role: RoleAdmin, Status: StatusActive},
	}
	if got := CountActiveSuperAdmins(users); got != 1 {
		t.Errorf("CountActiveSuperAdmins = %d, want 1", got)
	}
}

func TestSanitizedStripsPassword(t *testing.T) {
	u := &AdminUser{ID: "1", Email: "a@x.com", Password: "pbkdf2:aa:bb"}
	s := u.Sanitized()
	if s.Password != "" {
		t.Error("Sanitized must strip the password")
	}
	if u.Password == "" {
		t.Error("Sanitized must not mutate the original")
	}
}

func TestDefaultUsername(t *testing.T) {
	if got := DefaultUsername("coach@club.org"); got != "coach" {
		t.Errorf("DefaultUsername = %q, want %q", got, "coach")
	}
	if got := DefaultUsername("no-at-sign"); got != "no-at-sign" {
		t.Errorf("DefaultUsername = %q, want %q", got, "no-at-sign")
	}
}
