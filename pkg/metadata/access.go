package metadata

// Permission selects one flag of an AccessEntry
type Permission int

const (
	Read Permission = iota
	Write
	Execute
)

func (p Permission) String() string {
	switch p {
	case Read:
		return "read"
	case Write:
		return "write"
	case Execute:
		return "execute"
	default:
		return "unknown"
	}
}

// AccessEntry is one user's rights on a collection
type AccessEntry struct {
	User    string `json:"user"`
	Read    bool   `json:"read"`
	Write   bool   `json:"write"`
	Execute bool   `json:"execute"`
}

// AccessRights holds at most one entry per user. Absent users have no rights.
type AccessRights []AccessEntry

// Get returns the user's entry, or an all-false entry when absent
func (a AccessRights) Get(user string) AccessEntry {
	for _, e := range a {
		if e.User == user {
			return e
		}
	}
	return AccessEntry{User: user}
}

// Set inserts or replaces the user's entry
func (a *AccessRights) Set(user string, read, write, execute bool) {
	entry := AccessEntry{User: user, Read: read, Write: write, Execute: execute}
	for i := range *a {
		if (*a)[i].User == user {
			(*a)[i] = entry
			return
		}
	}
	*a = append(*a, entry)
}

// Allows reports whether user holds permission p
func (a AccessRights) Allows(user string, p Permission) bool {
	e := a.Get(user)
	switch p {
	case Read:
		return e.Read
	case Write:
		return e.Write
	case Execute:
		return e.Execute
	default:
		return false
	}
}
