package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/techop/httpmetrics/pkg/metrics"
	"github.com/techop/httpmetrics/pkg/metricsjson"
)

var metricsFlags struct {
	pretty      bool
	fullSamples bool
	filter      string
	prometheus  bool
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print the JSON metrics document of this process",
	Long: `Print the document /metrics would serve for this process. Useful to
check the output format and the effect of filters and excludes.`,
	Example: `  httpmetrics metrics --pretty
  httpmetrics metrics --prometheus --filter 'go_*'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("prometheus") {
			cfg.Metrics.Prometheus = metricsFlags.prometheus
		}
		fullSamples := cfg.Metrics.FullSamples
		if cmd.Flags().Changed("full-samples") {
			fullSamples = metricsFlags.fullSamples
		}

		serializer := metricsjson.New(metricsjson.WithExclude(cfg.Metrics.Exclude...))
		return runMetrics(cmd.OutOrStdout(), serializer, registryFor(cfg.Metrics), metricsjson.Options{
			Pretty:      metricsFlags.pretty,
			FullSamples: fullSamples,
			Filter:      metricsFlags.filter,
		})
	},
}

func runMetrics(w io.Writer, s *metricsjson.Serializer, r metrics.Reader, opts metricsjson.Options) error {
	body, err := s.Serialize(r, opts)
	if err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsFlags.pretty, "pretty", false, "Indent the output")
	metricsCmd.Flags().BoolVar(&metricsFlags.fullSamples, "full-samples", false, "Include raw histogram and timer samples")
	metricsCmd.Flags().StringVar(&metricsFlags.filter, "filter", "", "Only include metric names matching this glob")
	metricsCmd.Flags().BoolVar(&metricsFlags.prometheus, "prometheus", false, "Also report the default Prometheus registry")
	rootCmd.AddCommand(metricsCmd)
}
