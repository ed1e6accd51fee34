// Command signout serves and administers the shift sign-out record.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"signout/internal/adapters/httpapi"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string
	rootCmd := &cobra.Command{
		Use:          "signout",
		Short:        "Shift sign-out record store",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file with SIGNOUT_* settings (default .env)")

	open := func(cmd *cobra.Command) (*app, error) {
		return newApp(cmd.Context(), envFile, cmd.ErrOrStderr())
	}
	rootCmd.AddCommand(serveCmd(open))
	rootCmd.AddCommand(showCmd(open))
	rootCmd.AddCommand(exportCmd(open))
	rootCmd.AddCommand(archiveCmd(open))
	rootCmd.AddCommand(resetCmd(open))
	return rootCmd
}

type opener func(cmd *cobra.Command) (*app, error)

func serveCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServer(cmd.Context(), a)
		},
	}
}

func runServer(ctx context.Context, a *app) error {
	e := httpapi.NewServer(a.svc, httpapi.ServerConfig{
		Logger:       a.log,
		CORSOrigins:  a.cfg.CORSOrigins,
		RateLimitRPS: a.cfg.RateLimitRPS,
		Metrics:      a.metrics,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + a.cfg.Port
		a.log.Info().Str("addr", addr).Str("storage", a.svc.Store().Driver()).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	a.log.Info().Msg("server stopped")
	return nil
}

func showCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored record as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			rec, err := a.svc.GetRecord(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
}

func exportCmd(open opener) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the handover workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			now := a.svc.Now()
			if out == "" {
				out = "signout-" + now.UTC().Format("20060102-1504") + ".xlsx"
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := a.svc.ExportWorkbook(cmd.Context(), f, now); err != nil {
				_ = f.Close()
				_ = os.Remove(out)
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default signout-<timestamp>.xlsx)")
	return cmd
}

func archiveCmd(open opener) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Store the handover workbook in the blob store",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			w := cmd.OutOrStdout()
			if list {
				infos, err := a.svc.ListArchives(cmd.Context())
				if err != nil {
					return err
				}
				for _, info := range infos {
					fmt.Fprintf(w, "%s\t%d\t%s\n", info.Key, info.Size, info.LastModified.UTC().Format(time.RFC3339))
				}
				return nil
			}
			archive, err := a.svc.ArchiveWorkbook(cmd.Context(), a.svc.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(w, archive.Info.Key)
			if archive.URL != "" {
				fmt.Fprintln(w, archive.URL)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list archived workbooks instead")
	return cmd
}

func resetCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Remove the stored record from the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.svc.Reset(cmd.Context()); err != nil {
				return err
			}
			a.log.Info().Str("key", a.svc.Store().Key()).Msg("record removed")
			return nil
		},
	}
}
