package command

import (
	"strconv"
	"time"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/cli/output"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/core/channel"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/core/domain"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/vault"
)

// rootView is printed by "root open".
type rootView struct {
	Root       string            `json:"root" yaml:"root"`
	Mainnet    bool              `json:"mainnet" yaml:"mainnet"`
	Categories map[string]string `json:"categories" yaml:"categories"`
}

func newRootView(t channel.Tree) rootView {
	v := rootView{
		Root:       t.Root.String(),
		Mainnet:    t.Mainnet,
		Categories: make(map[string]string, len(t.Categories)),
	}
	for _, c := range t.Categories {
		v.Categories[c.Category] = c.Address.String()
	}
	return v
}

func (v rootView) Table() *output.Table {
	t := output.NewTable("CHANNEL", "ADDRESS")
	t.AddRow("root", v.Root)
	for _, c := range domain.Categories() {
		t.AddRow(c.Tag(), v.Categories[c.Tag()])
	}
	return t
}

// treeView renders a hierarchy snapshot one daily channel per row.
type treeView struct {
	channel.Tree `yaml:",inline"`
}

func (v treeView) Table() *output.Table {
	t := output.NewTable("CATEGORY", "ACTOR", "DATE", "ADDRESS")
	for _, c := range v.Categories {
		if len(c.Actors) == 0 {
			t.AddRow(c.Category, "", "", c.Address.String())
			continue
		}
		for _, a := range c.Actors {
			if len(a.Days) == 0 {
				t.AddRow(c.Category, a.ActorID, "", a.Address.String())
				continue
			}
			for _, d := range a.Days {
				t.AddRow(c.Category, a.ActorID, d.CreationDate(), d.Address.String())
			}
		}
	}
	return t
}

// dailyView describes one daily channel.
type dailyView struct {
	Category string `json:"category" yaml:"category"`
	ActorID  string `json:"actor_id" yaml:"actor_id"`
	Date     string `json:"date" yaml:"date"`
	Address  string `json:"address" yaml:"address"`
	Mainnet  bool   `json:"mainnet" yaml:"mainnet"`
}

func newDailyView(d *channel.DailyChannel) dailyView {
	return dailyView{
		Category: d.Category().Tag(),
		ActorID:  d.ActorID(),
		Date:     d.CreationDate(),
		Address:  d.Address().String(),
		Mainnet:  d.Mainnet(),
	}
}

func (v dailyView) Table() *output.Table {
	t := output.NewTable("CATEGORY", "ACTOR", "DATE", "ADDRESS")
	t.AddRow(v.Category, v.ActorID, v.Date, v.Address)
	return t
}

// sendView is printed by "daily send".
type sendView struct {
	dailyView `yaml:",inline"`
	MessageID string `json:"message_id" yaml:"message_id"`
}

func (v sendView) Table() *output.Table {
	t := output.NewTable("ADDRESS", "MESSAGE ID")
	t.AddRow(v.Address, v.MessageID)
	return t
}

// packetsView lists public payloads in log order.
type packetsView struct {
	Packets []string `json:"packets" yaml:"packets"`
}

func (v packetsView) Table() *output.Table {
	t := output.NewTable("#", "PUBLIC")
	for i, p := range v.Packets {
		t.AddRow(strconv.Itoa(i+1), p)
	}
	return t
}

// exportView carries an exported state blob.
type exportView struct {
	Key   string `json:"key" yaml:"key"`
	State string `json:"state" yaml:"state"`
	Saved bool   `json:"saved" yaml:"saved"`
}

func (v exportView) Table() *output.Table {
	t := output.NewTable("KEY", "SAVED", "STATE")
	t.AddRow(v.Key, strconv.FormatBool(v.Saved), v.State)
	return t
}

// vaultView lists stored blobs without their content.
type vaultView struct {
	Entries []vaultEntry `json:"entries" yaml:"entries"`
}

type vaultEntry struct {
	Category  string    `json:"category" yaml:"category"`
	ActorID   string    `json:"actor_id" yaml:"actor_id"`
	Date      string    `json:"date" yaml:"date"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

func newVaultView(entries []vault.Entry) vaultView {
	v := vaultView{Entries: make([]vaultEntry, 0, len(entries))}
	for _, e := range entries {
		v.Entries = append(v.Entries, vaultEntry{
			Category:  e.Key.Category.Tag(),
			ActorID:   e.Key.ActorID,
			Date:      e.Key.Date.String(),
			UpdatedAt: e.UpdatedAt,
		})
	}
	return v
}

func (v vaultView) Table() *output.Table {
	t := output.NewTable("CATEGORY", "ACTOR", "DATE", "UPDATED")
	for _, e := range v.Entries {
		t.AddRow(e.Category, e.ActorID, e.Date, e.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return t
}

// statsView is a flattened metrics snapshot.
type statsView struct {
	Samples []sample `json:"samples" yaml:"samples"`
}

type sample struct {
	Name   string            `json:"name" yaml:"name"`
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Value  float64           `json:"value" yaml:"value"`
}

func (v statsView) Table() *output.Table {
	t := output.NewTable("METRIC", "LABELS", "VALUE")
	for _, s := range v.Samples {
		t.AddRow(s.Name, formatLabels(s.Labels), strconv.FormatFloat(s.Value, 'g', -1, 64))
	}
	return t
}
