package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"lecture:view",
		"quiz:take",
		"attempt:view-own",
	},
	"teacher": {
		"lecture:create",
		"lecture:view",
		"quiz:take",
		"attempt:view-own",
		"attempt:view-all",
		"events:view",
	},
	"admin": {
		"*", // everything
	},
}
