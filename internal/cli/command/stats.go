package command

import (
	"sort"
	"strings"

	"github.com/urfave/cli/v2"
)

// StatsCommand returns the stats command.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Import the hierarchy and print the gathered metrics",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root-password",
				Usage:   "Password of the root hierarchy; skip the import when empty",
				EnvVars: []string{"CHANNELCTL_ROOT_PASSWORD"},
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Include Go runtime and process metrics",
			},
		},
		Action: statsShow,
	}
}

func statsShow(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}

	if pw := c.String("root-password"); pw != "" {
		ctx, cancel := commandContext(c)
		defer cancel()
		if _, err := rt.Root(ctx, pw); err != nil {
			return err
		}
	}

	families, err := rt.Metrics.Gatherer().Gather()
	if err != nil {
		return err
	}

	var v statsView
	for _, mf := range families {
		name := mf.GetName()
		if !c.Bool("all") && !strings.HasPrefix(name, "channel_manager_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			s := sample{Name: name, Labels: labels}
			switch {
			case m.GetCounter() != nil:
				s.Value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				s.Value = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				s.Name = name + "_count"
				s.Value = float64(m.GetHistogram().GetSampleCount())
			case m.GetSummary() != nil:
				s.Name = name + "_count"
				s.Value = float64(m.GetSummary().GetSampleCount())
			default:
				s.Value = m.GetUntyped().GetValue()
			}
			v.Samples = append(v.Samples, s)
		}
	}
	return rt.Print(c, v)
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + labels[k]
	}
	return strings.Join(parts, ",")
}
