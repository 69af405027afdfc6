package domain

import "strings"

// ChannelAddress identifies a channel on the backend.
type ChannelAddress struct {
	ChannelID  string `json:"channel_id" cbor:"1,keyasint"`
	AnnounceID string `json:"announce_id" cbor:"2,keyasint"`
}

// NewChannelAddress builds an address from its two parts.
func NewChannelAddress(channelID, announceID string) ChannelAddress {
	return ChannelAddress{ChannelID: channelID, AnnounceID: announceID}
}

// Equal reports an exact pair match.
func (a ChannelAddress) Equal(b ChannelAddress) bool {
	return a.ChannelID == b.ChannelID && a.AnnounceID == b.AnnounceID
}

// IsZero reports whether the address is unset.
func (a ChannelAddress) IsZero() bool {
	return a.ChannelID == "" && a.AnnounceID == ""
}

// String returns "channel_id:announce_id".
func (a ChannelAddress) String() string {
	return a.ChannelID + ":" + a.AnnounceID
}

// ParseChannelAddress parses the "channel_id:announce_id" form.
func ParseChannelAddress(s string) (ChannelAddress, error) {
	channelID, announceID, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || channelID == "" || announceID == "" {
		return ChannelAddress{}, ErrValidation.Detailf("malformed channel address %q", s)
	}
	return NewChannelAddress(channelID, announceID), nil
}
