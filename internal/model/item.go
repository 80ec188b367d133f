package model

import "time"

const CollectionItems = "items"

const (
	ItemTitle          = "title"
	ItemDescription    = "description"
	ItemLookingFor     = "whatTheyAreLookingFor"
	ItemImage          = "image"
	ItemCategory       = "category"
	ItemUserID         = "userId"
	ItemUserName       = "userName"
	ItemUserProfilePic = "userProfilePic"
	ItemPostedAt       = "postedAt"
	ItemSwapRequested  = "swapRequested"
)

// Item is a listing offered for swap. UserID never changes after creation;
// UserName and UserProfilePic are copied from the owner's profile when the
// item is posted and are not refreshed afterwards.
type Item struct {
	ID             string
	Title          string
	Description    string
	LookingFor     string
	Image          string
	Category       Category
	UserID         string
	UserName       string
	UserProfilePic *string
	PostedAt       time.Time
	SwapRequested  bool
}
