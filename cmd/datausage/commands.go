package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	adapthttp "datausage/internal/adapter/http"
	"datausage/internal/adapter/postgres"
	"datausage/internal/app"
	"datausage/internal/config"
	"datausage/internal/domain"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the remote API over PostgreSQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			if cfg.Server.DatabaseURL == "" {
				return errors.New("server.database_url (or DATABASE_URL) is required")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var verifier app.IDTokenVerifier
			if o := cfg.Server.OIDC; o.Issuer != "" {
				v, err := app.NewOIDCVerifier(ctx, o.Issuer, o.Audience)
				if err != nil {
					return fmt.Errorf("oidc: %w", err)
				}
				verifier = v
			}
			if len(cfg.Server.TokenHashes) == 0 && verifier == nil {
				return errors.New("no credentials configured: set server.token_hashes or server.oidc.issuer")
			}

			db, err := postgres.Open(cfg.Server.DatabaseURL, logger)
			if err != nil {
				return fmt.Errorf("db open: %w", err)
			}
			defer func() { _ = db.Close() }()

			go func() {
				err := db.Listen(ctx, func(n domain.ChangeNotification) {
					logger.Info("remote change", "recordType", string(n.RecordType), "day", n.Day)
				})
				if err != nil {
					logger.Warn("change listener stopped", "err", err)
				}
			}()

			auth := app.NewAuthService(cfg.Server.TokenHashes, verifier)
			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           adapthttp.New(db, auth, logger).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			logger.Info("listening", "addr", cfg.Server.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile local usage and plan with the remote store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			watch, _ := cmd.Flags().GetBool("watch")
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			local, err := openLocal(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = local.Close() }()
			rem, err := openRemote(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = rem.close() }()

			coord := app.NewCoordinator(local, app.NewSyncService(rem.store, app.WithLogger(logger)))
			if watch {
				return app.NewWatcher(coord, rem.feed, cfg.Interval(), cfg.MinChangeGap()).Run(ctx)
			}

			rep, err := coord.Run(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().Bool("watch", false, "keep running, syncing on an interval and on remote changes")
	return cmd
}

func recordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a cumulative data counter sample for today",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}
			total, _ := cmd.Flags().GetInt64("bytes")

			local, err := openLocal(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = local.Close() }()

			rec, err := app.NewUsageRecorder(local).Record(cmd.Context(), total)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s used today\n",
				domain.DayKey(rec.Date), domain.FormatData(rec.DailyUsedData, "MB"))
			return nil
		},
	}
	cmd.Flags().Int64("bytes", 0, "cumulative bytes reported by the device counter")
	_ = cmd.MarkFlagRequired("bytes")
	return cmd
}

func planCmd() *cobra.Command {
	plan := &cobra.Command{
		Use:   "plan",
		Short: "Show or change the data plan",
	}

	set := &cobra.Command{
		Use:   "set",
		Short: "Store the active data plan locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}
			f := cmd.Flags()
			startStr, _ := f.GetString("start")
			endStr, _ := f.GetString("end")
			amount, _ := f.GetFloat64("amount")
			daily, _ := f.GetFloat64("daily-limit")
			limit, _ := f.GetFloat64("plan-limit")
			unit, _ := f.GetString("unit")

			if !domain.ValidUnit(unit) {
				return fmt.Errorf("unit must be one of B, KB, MB, GB")
			}
			start, err := domain.ParseDay(startStr)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			end, err := domain.ParseDay(endStr)
			if err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}
			if end.Before(start) {
				return errors.New("--end must not be before --start")
			}

			local, err := openLocal(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = local.Close() }()

			p := domain.PlanRecord{
				StartDate:  start,
				EndDate:    end,
				DataAmount: domain.ConvertData(amount, unit, "GB"),
				DailyLimit: domain.ConvertData(daily, unit, "GB"),
				PlanLimit:  domain.ConvertData(limit, unit, "GB"),
			}
			if err := local.SavePlan(cmd.Context(), p); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
	set.Flags().String("start", "", "first day of the plan (YYYY-MM-DD)")
	set.Flags().String("end", "", "last day of the plan (YYYY-MM-DD)")
	set.Flags().Float64("amount", 0, "data included in the plan")
	set.Flags().Float64("daily-limit", 0, "daily usage limit (0 = none)")
	set.Flags().Float64("plan-limit", 0, "plan usage warning limit (0 = none)")
	set.Flags().String("unit", "GB", "unit of the amounts: B, KB, MB, GB")
	_ = set.MarkFlagRequired("start")
	_ = set.MarkFlagRequired("end")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the local data plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}
			local, err := openLocal(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = local.Close() }()

			p, err := local.Plan(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}

	plan.AddCommand(set, show)
	return plan
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent usage and plan progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}
			days, _ := cmd.Flags().GetInt("days")
			unit, _ := cmd.Flags().GetString("unit")

			local, err := openLocal(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = local.Close() }()

			reports := app.NewReportService(local)
			points, err := reports.Daily(cmd.Context(), days, unit)
			if err != nil {
				return err
			}
			progress, err := reports.Progress(cmd.Context())
			if err != nil {
				return err
			}
			last, err := local.LastOldDataSync(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "DAY\tUSED (%s)\tSYNCED\n", unit)
			for _, p := range points {
				fmt.Fprintf(tw, "%s\t%.2f\t%v\n", p.Day, p.Used, p.Synced)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(out, "\nplan %s to %s: %.2f of %.2f GB used, %.2f GB left\n",
				domain.DayKey(progress.Plan.StartDate), domain.DayKey(progress.Plan.EndDate),
				progress.UsedInPlanGB, progress.Plan.DataAmount, progress.RemainingGB)
			if progress.OverDailyLimit {
				fmt.Fprintln(out, "daily limit exceeded")
			}
			if progress.OverPlanLimit {
				fmt.Fprintln(out, "plan limit exceeded")
			}
			if last != nil {
				fmt.Fprintf(out, "old data last synced %s\n", last.Format(time.RFC3339))
			} else {
				fmt.Fprintln(out, "old data never synced")
			}
			return nil
		},
	}
	cmd.Flags().Int("days", 7, "number of days to show")
	cmd.Flags().String("unit", "MB", "display unit: B, KB, MB, GB")
	return cmd
}

func hashTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token [token]",
		Short: "Print the bcrypt hash of a device token for server.token_hashes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				token = strings.TrimSpace(line)
			}
			hash, err := app.HashToken(token)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default datausage.toml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "datausage.toml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.InitFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
