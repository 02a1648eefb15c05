package commands

import (
	"context"
	"fmt"
	"os"

	"amazonorders/lib/configutil"
	"amazonorders/lib/restyutil"
	"amazonorders/lib/scrapers/amazon"
	"amazonorders/lib/serviceutil"
	"amazonorders/lib/telemetry"

	"github.com/spf13/cobra"
)

type Config struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	CookieJarPath string `json:"cookie_jar_path"`
	OutputDir     string `json:"output_dir"`
}

var verbose *bool
var debug *bool

var rootCmd = &cobra.Command{
	Use:   "amazon-orders",
	Short: "amazon-orders maintains an authenticated storefront session and scrapes order history.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
		if *verbose {
			amazon.SetRestyInstrumentOutput(
				restyutil.NewFilesystemOutput(".dev/resty/amazon"),
			)
		}
	},
}

func init() {
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Debug logging plus full http message dumps.")
	debug = rootCmd.PersistentFlags().Bool("debug", false, "Capture every raw response body to the output directory.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func createSession(ctx context.Context) *amazon.Session {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}

	session, err := amazon.NewSession(ctx, amazon.SessionOptions{
		Username:      cfg.Username,
		Password:      cfg.Password,
		Debug:         *debug,
		CookieJarPath: cfg.CookieJarPath,
		OutputDir:     cfg.OutputDir,
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize session", err)
	}
	return session
}
