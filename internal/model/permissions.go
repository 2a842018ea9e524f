package model

// Permission keys cover every manageable section of the site. A user's
// effective permission for a key is their explicit override when present,
// else the default for their role, else denied.
const (
	PermNews     = "news"
	PermFixtures = "fixtures"
	PermPlayers  = "players"
	PermSponsors = "sponsors"
	PermGallery  = "gallery"
	PermShop     = "shop"
	PermTeams    = "teams"
	PermContacts = "contacts"
	PermEvents   = "events"
	PermVPWall   = "vp-wall"
	PermSettings = "settings"
	PermUsers    = "users"
)

// PermissionKeys lists every recognized permission key.
var PermissionKeys = []string{
	PermNews, PermFixtures, PermPlayers, PermSponsors, PermGallery,
	PermShop, PermTeams, PermContacts, PermEvents, PermVPWall,
	PermSettings, PermUsers,
}

// roleDefaults is the fixed role default table: what each role can do when
// no per-user override is present.
var roleDefaults = map[string]map[string]bool{
	RoleSuperAdmin: allPermissions(true),
	RoleAdmin: func() map[string]bool {
		m := allPermissions(true)
		m[PermUsers] = false
		return m
	}(),
	RoleEditor: func() map[string]bool {
		m := allPermissions(false)
		m[PermNews] = true
		m[PermFixtures] = true
		m[PermGallery] = true
		return m
	}(),
}

func allPermissions(v bool) map[string]bool {
	m := make(map[string]bool, len(PermissionKeys))
	for _, k := range PermissionKeys {
		m[k] = v
	}
	return m
}

// sectionPermission maps a dashboard section id to the permission key that
// gates it. Sections absent from this map (and from subSectionParent) are
// denied by default.
var sectionPermission = map[string]string{
	"news":     PermNews,
	"fixtures": PermFixtures,
	"players":  PermPlayers,
	"sponsors": PermSponsors,
	"gallery":  PermGallery,
	"shop":     PermShop,
	"teams":    PermTeams,
	"contacts": PermContacts,
	"events":   PermEvents,
	"vp-wall":  PermVPWall,
	"settings": PermSettings,
	"users":    PermUsers,
}

// subSectionParent maps dashboard sub-sections to their parent section; a
// sub-section inherits the parent's permission result.
var subSectionParent = map[string]string{
	"news-drafts":      "news",
	"fixtures-results": "fixtures",
	"shop-orders":      "shop",
	"gallery-albums":   "gallery",
	"settings-backup":  "settings",
}

// settings-backup is the one sub-section restricted to super-admins
// regardless of the parent permission.
const superAdminOnlySubSection = "settings-backup"

// HasPermission resolves a user's effective permission for a key: explicit
// per-user override first, role default second, deny otherwise.
func HasPermission(u *AdminUser, key string) bool {
	if u == nil {
		return false
	}
	if u.Permissions != nil {
		if v, ok := u.Permissions[key]; ok {
			return v
		}
	}
	if defaults, ok := roleDefaults[u.Role]; ok {
		return defaults[key]
	}
	return false
}

// CanPerformAction reports whether a user may perform a named action.
// Any authenticated user can create and edit; delete requires admin or
// super-admin; user and settings management resolve through HasPermission.
func CanPerformAction(u *AdminUser, action string) bool {
	if u == nil {
		return false
	}
	switch action {
	case "create", "edit":
		return true
	case "delete":
		return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
	case "manageUsers":
		return HasPermission(u, PermUsers)
	case "manageSiteSettings":
		return HasPermission(u, PermSettings)
	default:
		return false
	}
}

// CanAccessSection reports whether a user may open a dashboard section.
// The dashboard itself is always visible; the activity log is super-admin
// only; sub-sections inherit their parent's permission.
func CanAccessSection(u *AdminUser, sectionID string) bool {
	if u == nil {
		return false
	}
	if sectionID == "dashboard" {
		return true
	}
	if sectionID == "activity-log" {
		return u.IsSuperAdmin()
	}
	if parent, ok := subSectionParent[sectionID]; ok {
		if sectionID == superAdminOnlySubSection {
			return u.IsSuperAdmin()
		}
		return CanAccessSection(u, parent)
	}
	if key, ok := sectionPermission[sectionID]; ok {
		return HasPermission(u, key)
	}
	return false
}
