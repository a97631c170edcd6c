package main

import (
	"encoding/json"
	"strconv"

	"github.com/kkkkkxiaofei/web-agent/internal/ui"
	"github.com/spf13/cobra"
)

type historyOptions struct {
	limit int
	json  bool
}

func newHistoryCmd(root *rootOptions) *cobra.Command {
	opts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent analysis results stored in Redis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, root, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "number of results to show")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print results as JSON")

	return cmd
}

func runHistory(cmd *cobra.Command, root *rootOptions, opts *historyOptions) error {
	out := cmd.OutOrStdout()

	a, err := setup(cmd.Context(), root, cmd.ErrOrStderr())
	if err != nil {
		return reportSetupError(out, err)
	}
	defer a.Stop()

	results, err := a.Recent(cmd.Context(), opts.limit)
	if err != nil {
		ui.NewRenderer(out).Error(err.Error())
		return err
	}

	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	r := ui.NewRenderer(out)
	r.History(results)

	if minute, hour, ok, err := a.QuotaUsage(cmd.Context()); ok {
		cfg := a.GetConfig()
		r.Info("\nQuota used: %s this minute, %s this hour", usage(minute, cfg.Quota.PerMinute), usage(hour, cfg.Quota.PerHour))
	} else if err != nil {
		r.Error(err.Error())
	}
	return nil
}

// usage formats a counter against its limit; 0 means unlimited
func usage(n, limit int) string {
	if limit <= 0 {
		return strconv.Itoa(n)
	}
	return strconv.Itoa(n) + "/" + strconv.Itoa(limit)
}
