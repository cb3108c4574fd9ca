package placement

//go:generate gtrace

// StoreTrace contains hooks called by Store during membership changes.
// Any hook may be nil.
//
//gtrace:gen
type StoreTrace struct {
	// OnAddNode is called before node registration. Returned function, if
	// non-nil, is called with the number of migrated resources and the error
	// AddNode returns.
	OnAddNode func(name string) func(migrated int, err error)

	// OnRemoveNode is called before node deregistration. Returned function,
	// if non-nil, is called with the number of migrated resources and the
	// error RemoveNode returns.
	OnRemoveNode func(name string) func(migrated int, err error)

	// OnMigrate is called for every resource moved from one node to another.
	// For resources of a removed node or resources reinserted by a full
	// rehash from is the node they were held by before the change.
	OnMigrate func(r Resource, from, to string)

	// OnReject is called when an operation is refused with an error and
	// makes no change.
	OnReject func(op string, err error)
}
