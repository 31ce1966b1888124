package shared

// Platform permission scopes.
const (
	PermUsersView = "users.view"
	PermUsersEdit = "users.edit"

	PermRolesView = "roles.view"
	PermRolesEdit = "roles.edit"

	PermMasterDataView = "masterdata.view"
	PermMasterDataEdit = "masterdata.edit"

	PermPurchasingView    = "purchasing.view"
	PermPurchasingEdit    = "purchasing.edit"
	PermPurchasingReceive = "purchasing.receive"
	PermPurchasingDelete  = "purchasing.delete"
)

// AllScopes lists every permission the platform knows about.
func AllScopes() []string {
	return []string{
		PermUsersView,
		PermUsersEdit,
		PermRolesView,
		PermRolesEdit,
		PermMasterDataView,
		PermMasterDataEdit,
		PermPurchasingView,
		PermPurchasingEdit,
		PermPurchasingReceive,
		PermPurchasingDelete,
	}
}
