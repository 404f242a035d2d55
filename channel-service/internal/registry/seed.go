package registry

import "github.com/weiawesome/wes-io-channels/channel-service/internal/domain"

// DefaultChannels returns the channels every process starts with.
func DefaultChannels() []*domain.Channel {
	return []*domain.Channel{
		{
			ID:       0,
			Name:     "parenting",
			Image:    "https://upload.wikimedia.org/wikipedia/commons/8/85/ParentChildIcon.svg",
			Endpoint: "/parenting",
		},
		{
			ID:       1,
			Name:     "gaming",
			Image:    "https://upload.wikimedia.org/wikipedia/commons/0/01/Gaming.png",
			Endpoint: "/gaming",
		},
		{
			ID:       2,
			Name:     "sports",
			Image:    "https://upload.wikimedia.org/wikipedia/commons/thumb/5/51/Soccerball_shade.svg/250px-Soccerball_shade.svg.png",
			Endpoint: "/sports",
		},
	}
}

// NewDefault creates a registry seeded with DefaultChannels.
func NewDefault() *Registry {
	return New(DefaultChannels())
}
