package channel

import "github.com/lore-lml/bioenpro4to-channel-manager/internal/core/domain"

// Tree is a point-in-time view of a hierarchy.
type Tree struct {
	Root       domain.ChannelAddress `json:"root" yaml:"root"`
	Mainnet    bool                  `json:"mainnet" yaml:"mainnet"`
	Categories []CategoryNode        `json:"categories" yaml:"categories"`
}

// CategoryNode is one category in a Tree.
type CategoryNode struct {
	Category string                `json:"category" yaml:"category"`
	Address  domain.ChannelAddress `json:"address" yaml:"address"`
	Actors   []ActorNode           `json:"actors" yaml:"actors"`
}

// ActorNode is one actor in a Tree.
type ActorNode struct {
	ActorID string                       `json:"actor_id" yaml:"actor_id"`
	Address domain.ChannelAddress        `json:"address" yaml:"address"`
	Days    []domain.DailyDirectoryEntry `json:"days" yaml:"days"`
}

// Tree snapshots the directories known locally. Each manager is locked in
// turn, so concurrent writers may or may not be reflected.
func (r *RootManager) Tree() Tree {
	t := Tree{Root: r.Address(), Mainnet: r.env.mainnet}
	for _, c := range domain.Categories() {
		cm := r.categories[c]
		node := CategoryNode{Category: c.Tag(), Address: cm.Address()}
		for _, e := range cm.Actors() {
			an := ActorNode{ActorID: e.ActorID, Address: e.Address}
			if a, ok := cm.Actor(e.ActorID); ok {
				an.Days = a.DailyChannels()
			}
			node.Actors = append(node.Actors, an)
		}
		t.Categories = append(t.Categories, node)
	}
	return t
}

// Count returns the number of actors and daily channels in the tree.
func (t Tree) Count() (actors, days int) {
	for _, c := range t.Categories {
		actors += len(c.Actors)
		for _, a := range c.Actors {
			days += len(a.Days)
		}
	}
	return actors, days
}
