package rbac

const (
	PermTestImport     = "test:import"
	PermTestPreview    = "test:preview"
	PermTestView       = "test:view"
	PermTestViewKey    = "test:view-key"
	PermTestDelete     = "test:delete"
	PermTestExport     = "test:export"
	PermResultSubmit   = "result:submit"
	PermResultViewOwn  = "result:view-own"
	PermResultViewAll  = "result:view-all"
	PermResultReview   = "result:review"
	PermUserList       = "user:list"
	PermStatsView      = "stats:view"
	PermMediaUpload    = "media:upload"
	PermChangePassword = "user:change_password"
)

// RolePermissions is the default policy. Patterns ending in "*" match by prefix.
var RolePermissions = map[string][]string{
	"student": {
		PermTestView,
		PermResultSubmit,
		PermResultViewOwn,
		PermChangePassword,
	},
	"admin": {
		"*",
	},
}
