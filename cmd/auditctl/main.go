package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ledgerguard/ledgerguard/internal/auth"
	"github.com/ledgerguard/ledgerguard/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	serviceURL string
	token      string
	cfgFile    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "auditctl",
	Short: "ledgerguard audit ledger CLI",
	Long: `auditctl is the operator command-line interface for ledgerguard.

It lists audit entries, verifies hash-chain integrity, downloads
checksummed exports, and inspects per-tenant chain tips.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.auditctl")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serviceURL == "" {
			serviceURL = viper.GetString("service_url")
		}
		if serviceURL == "" {
			serviceURL = "http://localhost:8080"
		}
		if token == "" {
			token = viper.GetString("token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.auditctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serviceURL, "service", "", "ledgerguard base URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "operator bearer token")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(latestCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() *client.Client {
	opts := []client.Option{}
	if token != "" {
		opts = append(opts, client.WithBearerToken(token))
	}
	return client.New(serviceURL, opts...)
}

// ── list ─────────────────────────────────────────────────────────────────────

var (
	listFilter client.Filter
	listFormat string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit entries matching a filter",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := newClient().List(context.Background(), listFilter)
		if err != nil {
			return fmt.Errorf("list entries: %w", err)
		}

		if listFormat == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tTENANT\tACTION\tENTITY\tACTOR\tTIMESTAMP")
		for _, e := range result.Entries {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				e.SequenceNumber, e.TenantID, e.Action,
				e.EntityType, e.ActorName, e.Timestamp.Format(time.RFC3339))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\n%d of %d entries (page %d)\n", len(result.Entries), result.Total, result.Page)
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listFilter.TenantID, "tenant", "", "Tenant ID")
	listCmd.Flags().StringVar(&listFilter.Action, "action", "", "Action (e.g. order.created)")
	listCmd.Flags().StringVar(&listFilter.EntityType, "entity-type", "", "Entity type")
	listCmd.Flags().StringVar(&listFilter.ActorID, "actor", "", "Actor ID")
	listCmd.Flags().StringVar(&listFilter.Search, "search", "", "Substring search")
	listCmd.Flags().StringVar(&listFilter.DateFrom, "from", "", "Start date (RFC 3339 or YYYY-MM-DD)")
	listCmd.Flags().StringVar(&listFilter.DateTo, "to", "", "End date (RFC 3339 or YYYY-MM-DD)")
	listCmd.Flags().BoolVar(&listFilter.IncludeArchived, "archived", false, "Include archived entries")
	listCmd.Flags().IntVar(&listFilter.Page, "page", 1, "Page number")
	listCmd.Flags().IntVar(&listFilter.Limit, "limit", 50, "Page size")
	listCmd.Flags().StringVar(&listFormat, "format", "text", "Output format: text or json")
}

// ── verify ───────────────────────────────────────────────────────────────────

var verifyTenant string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run a server-side hash-chain integrity check",
	Long: `verify asks the service to recompute every entry digest in the
selected window and check sequence continuity and chain linkage.

Exit status is non-zero when violations are found, so it can gate
scheduled compliance jobs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := newClient().IntegrityCheck(context.Background(), client.Filter{TenantID: verifyTenant})
		if err != nil {
			return fmt.Errorf("integrity check: %w", err)
		}

		if report.Valid {
			fmt.Printf("✓ chain valid (%d entries checked)\n", report.TotalChecked)
			return nil
		}

		fmt.Printf("✗ chain INVALID: %d violation(s) in %d entries\n\n",
			report.ViolationCount, report.TotalChecked)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TYPE\tTENANT\tSEQ\tDETAIL")
		for _, v := range report.Violations {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", v.Type, v.TenantID, v.SequenceNumber, v.Detail)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		return fmt.Errorf("%d integrity violation(s)", report.ViolationCount)
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyTenant, "tenant", "", "Limit the check to one tenant (default: all)")
}

// ── export ───────────────────────────────────────────────────────────────────

var (
	exportFilter client.Filter
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download a checksummed export (csv, json, or pdf)",
	Long: `export downloads the filtered audit window in the requested format.

The artifact's SHA-256 checksum is verified against the X-Export-Checksum
header before anything is written to disk.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		artifact, err := newClient().Export(context.Background(), exportFormat, exportFilter)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}

		out := exportOut
		if out == "" {
			out = artifact.Filename
		}
		if out == "" {
			out = "audit-export." + exportFormat
		}
		if err := os.WriteFile(out, artifact.Body, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}

		fmt.Printf("✓ exported %d bytes to %s\n", len(artifact.Body), out)
		fmt.Printf("  sha256: %s\n", artifact.Checksum)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Export format: csv, json, or pdf")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "Output file (default: server-assigned name)")
	exportCmd.Flags().StringVar(&exportFilter.TenantID, "tenant", "", "Tenant ID")
	exportCmd.Flags().StringVar(&exportFilter.Action, "action", "", "Action filter")
	exportCmd.Flags().StringVar(&exportFilter.EntityType, "entity-type", "", "Entity type filter")
	exportCmd.Flags().StringVar(&exportFilter.DateFrom, "from", "", "Start date (RFC 3339 or YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportFilter.DateTo, "to", "", "End date (RFC 3339 or YYYY-MM-DD)")
	exportCmd.Flags().IntVar(&exportFilter.Limit, "limit", 0, "Entry cap (default: server maximum)")
}

// ── latest ───────────────────────────────────────────────────────────────────

var latestCmd = &cobra.Command{
	Use:   "latest <tenant-id>",
	Short: "Show a tenant's chain tip",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tip, err := newClient().Latest(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("chain tip: %w", err)
		}

		fmt.Printf("Tenant:    %s\n", tip.TenantID)
		fmt.Printf("Sequence:  %d\n", tip.SequenceNumber)
		fmt.Printf("Hash:      %s\n", tip.HashChain)
		fmt.Printf("Timestamp: %s\n", tip.Timestamp.Format(time.RFC3339))
		return nil
	},
}

// ── token ────────────────────────────────────────────────────────────────────

var (
	tokenSubject string
	tokenRole    string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an operator bearer token",
	Long: `token signs an operator token locally with the shared auth secret.

The secret is read from the AUTH_SECRET environment variable or the
auth_secret config key, and must match the service's auth.secret.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := viper.GetString("auth_secret")
		if secret == "" {
			return fmt.Errorf("no auth secret configured (set AUTH_SECRET or auth_secret)")
		}

		signed, err := auth.NewTokenIssuer(secret, tokenTTL).Issue(tokenSubject, tokenRole)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		fmt.Println(signed)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Token subject (operator identity)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "auditor", "Operator role claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "Token lifetime")

	_ = tokenCmd.MarkFlagRequired("subject")
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the auditctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("auditctl %s\n", version)
	},
}
