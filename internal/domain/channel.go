package domain

// ChannelProfile is a user seen as a channel by a viewer.
type ChannelProfile struct {
	ID                string `json:"id"`
	FullName          string `json:"fullName"`
	Username          string `json:"username"`
	Email             string `json:"email"`
	SubscribersCount  int64  `json:"subscribersCount"`
	SubscribedToCount int64  `json:"subscribedToCount"`
	IsSubscribed      bool   `json:"isSubscribed"`
	Avatar            string `json:"avatar"`
	CoverImage        string `json:"coverImage"`
}
