package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"optionsdata/internal/aggregate"
	"optionsdata/internal/config"
	"optionsdata/internal/contract"
	"optionsdata/internal/httpx"
	"optionsdata/internal/logging"
	"optionsdata/internal/optionsdata"
	"optionsdata/internal/provider"
	"optionsdata/internal/provider/polygon"
	"optionsdata/internal/provider/ratelimit"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newProvider is replaced in tests.
var newProvider = func(cfg config.Config) provider.Provider {
	hc := httpx.New(time.Duration(cfg.Polygon.TimeoutSec) * time.Second)
	return polygon.NewClient(cfg.Polygon.APIKey,
		polygon.WithBaseURL(cfg.Polygon.BaseURL),
		polygon.WithHTTPClient(ratelimit.Wrap(hc, cfg.Polygon.MaxRequestsPerMinute, cfg.Polygon.Burst,
			time.Duration(cfg.Polygon.MinRequestIntervalSec)*time.Second)),
		polygon.WithMaxConcurrency(cfg.Polygon.MaxConcurrency),
	)
}

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "optionsctl",
		Short:         "Inspect option contracts and snapshot quotes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().String("config", "", "path to config.json or config.yaml")
	root.AddCommand(newQuotesCmd(), newParseCmd())
	return root
}

func newQuotesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quotes CONTRACT[,CONTRACT...]",
		Short: "Fetch snapshot quotes and print them as a chain",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			asJSON, err := cmd.Flags().GetBool("json")
			if err != nil {
				return err
			}
			timeout, err := cmd.Flags().GetDuration("timeout")
			if err != nil {
				return err
			}

			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := logging.Setup(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr()); err != nil {
				return err
			}

			contracts := optionsdata.SplitContracts(strings.Join(args, ","))
			if len(contracts) == 0 {
				return fmt.Errorf("no contracts given, e.g. %s", "SPY240315C00450000")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			batch, err := newProvider(cfg).Fetch(ctx, contracts)
			if err != nil {
				return fmt.Errorf("fetch: %w", err)
			}

			summary := aggregate.Summarize(batch)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			renderChain(cmd.OutOrStdout(), summary)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "print the summary as JSON")
	cmd.Flags().Duration("timeout", 30*time.Second, "overall fetch timeout")
	return cmd
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse IDENTIFIER...",
		Short: "Decode contract identifiers without calling the provider",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Identifier", "Underlying", "Expiration", "Type", "Strike"})
			table.SetAutoFormatHeaders(false)
			for _, id := range args {
				p := contract.Parse(id)
				table.Append([]string{p.Identifier, p.Underlying, p.Expiration, string(p.Type), p.Strike.String()})
			}
			table.Render()
			return nil
		},
	}
}

func renderChain(w io.Writer, s aggregate.Summary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Contract", "Exp", "Strike", "Type", "Last", "Bid", "Ask", "Vol", "OI"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, r := range s.Rows {
		table.Append([]string{
			r.Contract,
			r.Expiration,
			money(r.Strike),
			string(r.Type),
			money(r.LastPrice),
			money(r.Bid),
			money(r.Ask),
			strconv.FormatInt(r.Volume, 10),
			strconv.FormatInt(r.OpenInterest, 10),
		})
	}
	table.Render()

	for _, u := range s.Underlyings {
		fmt.Fprintf(w, "%s: calls vol %d oi %d, puts vol %d oi %d, put/call %s\n",
			u.Underlying, u.CallVolume, u.CallOpenInterest, u.PutVolume, u.PutOpenInterest, ratio(u.PutCallVolume))
	}
	if len(s.Missing) > 0 {
		fmt.Fprintf(w, "missing: %s\n", strings.Join(s.Missing, ", "))
	}
}

func money(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func ratio(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
