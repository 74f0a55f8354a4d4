package events

import (
	"strings"
)

func UserChannel(userID string) string {
	return ChannelPrefixUser + userID
}

// UserIDFromChannel extracts the user id from a per-user channel name.
func UserIDFromChannel(channel string) (string, bool) {
	if !strings.HasPrefix(channel, ChannelPrefixUser) {
		return "", false
	}
	id := strings.TrimPrefix(channel, ChannelPrefixUser)
	return id, id != ""
}
