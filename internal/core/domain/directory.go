package domain

import (
	"encoding/json"
	"fmt"
)

// CategoryDirectory is published once into the root channel and lists the
// three category channels.
type CategoryDirectory struct {
	Trucks   ChannelAddress `json:"trucks"`
	Scales   ChannelAddress `json:"weighing_scales"`
	BioCells ChannelAddress `json:"biocells"`
}

// Address returns the address listed for a category.
func (d CategoryDirectory) Address(c Category) ChannelAddress {
	switch c {
	case Trucks:
		return d.Trucks
	case Scales:
		return d.Scales
	default:
		return d.BioCells
	}
}

// Validate checks that every category has an address.
func (d CategoryDirectory) Validate() error {
	for _, c := range Categories() {
		a := d.Address(c)
		if a.ChannelID == "" || a.AnnounceID == "" {
			return fmt.Errorf("category directory: missing %s address", c.Tag())
		}
	}
	return nil
}

// ActorDirectoryEntry is published into a category channel and describes
// one actor sub-channel.
type ActorDirectoryEntry struct {
	Address  ChannelAddress `json:"address"`
	Category string         `json:"category"`
	ActorID  string         `json:"actor_id"`
}

// NewActorDirectoryEntry builds an entry with a normalized actor id.
func NewActorDirectoryEntry(addr ChannelAddress, category Category, actorID string) ActorDirectoryEntry {
	return ActorDirectoryEntry{
		Address:  addr,
		Category: category.Tag(),
		ActorID:  NormalizeActorID(actorID),
	}
}

// Validate checks the entry belongs to the expected category.
func (e ActorDirectoryEntry) Validate(category Category) error {
	if e.Category != category.Tag() {
		return fmt.Errorf("actor entry: category %q, want %q", e.Category, category.Tag())
	}
	if e.ActorID == "" {
		return fmt.Errorf("actor entry: empty actor id")
	}
	if e.Address.ChannelID == "" || e.Address.AnnounceID == "" {
		return fmt.Errorf("actor entry %q: missing address", e.ActorID)
	}
	return nil
}

// DailyDirectoryEntry is published into an actor channel and describes one
// daily sub-channel.
type DailyDirectoryEntry struct {
	Address           ChannelAddress `json:"address"`
	Category          string         `json:"category"`
	ActorID           string         `json:"actor_id"`
	CreationTimestamp int64          `json:"creation_timestamp"`
}

// NewDailyDirectoryEntry builds an entry for the given date. The timestamp is
// 00:00:00 UTC of the date.
func NewDailyDirectoryEntry(addr ChannelAddress, category Category, actorID string, date Date) DailyDirectoryEntry {
	return DailyDirectoryEntry{
		Address:           addr,
		Category:          category.Tag(),
		ActorID:           NormalizeActorID(actorID),
		CreationTimestamp: date.Timestamp(),
	}
}

// Date returns the calendar date of the entry.
func (e DailyDirectoryEntry) Date() Date {
	return DateFromTimestamp(e.CreationTimestamp)
}

// CreationDate returns the "dd/mm/yyyy" key of the entry.
func (e DailyDirectoryEntry) CreationDate() string {
	return e.Date().String()
}

// Validate checks the entry belongs to the expected actor.
func (e DailyDirectoryEntry) Validate(category Category, actorID string) error {
	if e.Category != category.Tag() {
		return fmt.Errorf("daily entry: category %q, want %q", e.Category, category.Tag())
	}
	if e.ActorID != NormalizeActorID(actorID) {
		return fmt.Errorf("daily entry: actor %q, want %q", e.ActorID, NormalizeActorID(actorID))
	}
	if e.Address.ChannelID == "" || e.Address.AnnounceID == "" {
		return fmt.Errorf("daily entry %s: missing address", e.CreationDate())
	}
	return nil
}

// DecodeEntry unmarshals a JSON directory packet.
func DecodeEntry[T any](payload []byte) (T, error) {
	var v T
	err := json.Unmarshal(payload, &v)
	return v, err
}
