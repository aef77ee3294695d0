package domain

// IdentityKind tags the field an Identity resolves a user by.
type IdentityKind int

const (
	IdentityByID IdentityKind = iota
	IdentityByUsername
	IdentityByEmail
)

// Identity names a user by exactly one of id, username, or email.
// Username and email resolution is case-insensitive.
type Identity struct {
	Kind  IdentityKind
	Value string
}

// ByID identifies a user by id.
func ByID(id string) Identity {
	return Identity{Kind: IdentityByID, Value: id}
}

// ByUsername identifies a user by username.
func ByUsername(username string) Identity {
	return Identity{Kind: IdentityByUsername, Value: username}
}

// ByEmail identifies a user by email address.
func ByEmail(email string) Identity {
	return Identity{Kind: IdentityByEmail, Value: email}
}
