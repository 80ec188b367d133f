package model

const CollectionUsers = "users"

const (
	UserName           = "name"
	UserEmail          = "email"
	UserFavorites      = "favorites"
	UserSwappedItems   = "swappedItems"
	UserProfilePicture = "profilePicture"
)

// UserProfile is keyed by the identity-provider subject.
type UserProfile struct {
	ID             string
	Name           string
	Email          string
	Favorites      []string
	SwappedItems   int64
	ProfilePicture *string
}

func (u *UserProfile) HasFavorite(itemID string) bool {
	for _, f := range u.Favorites {
		if f == itemID {
			return true
		}
	}
	return false
}
