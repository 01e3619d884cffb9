package enums

// AdminRole is the back-office role carried in admin access tokens.
type AdminRole string

const (
	AdminRoleSuperAdmin    AdminRole = "SUPERADMIN"
	AdminRoleSalesAdmin    AdminRole = "SALES_ADMIN"
	AdminRoleAccountsAdmin AdminRole = "ACCOUNTS_ADMIN"
)

func (r AdminRole) String() string { return string(r) }

func (r AdminRole) IsValid() bool {
	return r.In(AdminRoleSuperAdmin, AdminRoleSalesAdmin, AdminRoleAccountsAdmin)
}

// In reports whether r is one of allowed.
func (r AdminRole) In(allowed ...AdminRole) bool {
	return set[AdminRole](allowed).has(r)
}
