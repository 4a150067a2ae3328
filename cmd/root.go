package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"github.com/clipfetch/clipfetch/internal/bot"
	"github.com/clipfetch/clipfetch/internal/config"
	"github.com/clipfetch/clipfetch/internal/extractor"
	"github.com/clipfetch/clipfetch/internal/fetch"
	"github.com/clipfetch/clipfetch/internal/media"
	"github.com/clipfetch/clipfetch/internal/metrics"
	"github.com/clipfetch/clipfetch/internal/mirror"
	"github.com/clipfetch/clipfetch/internal/session"
	"github.com/clipfetch/clipfetch/internal/store"
	"github.com/clipfetch/clipfetch/internal/utils"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var settings *config.Settings

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "clipfetch",
	Short:   "A Telegram bot that downloads and reposts media links",
	Long:    `Clipfetch is a Telegram bot that turns short-video and media links into uploaded clips, photo albums, and audio tracks.`,
	Version: Version,
	Args:    cobra.NoArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initializeGlobalState(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		isMaster, err := acquireLock()
		if err != nil {
			return fmt.Errorf("error acquiring lock: %w", err)
		}
		if !isMaster {
			fmt.Fprintln(os.Stderr, "Error: clipfetch is already running.")
			os.Exit(1)
		}
		defer releaseLock()

		envFile, _ := cmd.Flags().GetString("env-file")
		secrets, err := config.LoadSecrets(envFile)
		if err != nil {
			return err
		}

		st, err := store.Open(filepath.Join(config.GetStateDir(), "clipfetch.db"))
		if err != nil {
			return fmt.Errorf("failed to open state database: %w", err)
		}
		defer st.Close()

		listen, _ := cmd.Flags().GetString("listen")
		ln, err := net.Listen("tcp", listen)
		if err != nil {
			return fmt.Errorf("could not bind to %s: %w", listen, err)
		}
		go startHTTPServer(ln)

		api, err := tgbotapi.NewBotAPI(secrets.BotToken)
		if err != nil {
			return fmt.Errorf("failed to reach Telegram: %w", err)
		}

		sessions := session.NewStore(settings.Session.TTL)
		sessions.StartSweeper(settings.Session.SweepInterval)
		defer sessions.Stop()

		pipeline := &fetch.Pipeline{
			Mirror:     mirror.NewClient(settings.Mirror.BaseURL, secrets.MirrorAPIKey, settings.Mirror.Timeout),
			Extractor:  newExtractor(),
			Prober:     &media.FFprobe{Path: settings.Tools.FFprobePath},
			Transcoder: &media.FFmpeg{Path: settings.Tools.FFmpegPath},
			Limits:     settings.Limits,
			TempDir:    settings.General.TempDir,
			Suffix:     settings.General.AttributionSuffix,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		b := bot.New(api, pipeline, sessions, st, settings)
		if err := b.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		utils.Debug("shutting down")
		return nil
	},
}

func newExtractor() *extractor.YtDlp {
	y := extractor.NewYtDlp(settings.Tools.YtDlpPath, settings.Tools.CookieFile, settings.Limits.MaxUploadBytes)
	y.ProbeTimeout = settings.Limits.ProbeTimeout
	y.FetchTimeout = settings.Limits.FetchTimeout
	return y
}

// startHTTPServer serves the operational side endpoints. It never
// handles bot traffic; updates come over long polling.
func startHTTPServer(ln net.Listener) {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "ok",
			"version": Version,
		})
	})
	mux.Handle("/metrics", metrics.Handler())

	server := &http.Server{Handler: mux}
	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		utils.Debug("HTTP server error: %v", err)
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringP("config", "c", "", "Path to settings file (default: ~/.clipfetch/settings.json)")
	rootCmd.Flags().String("env-file", "", "Path to .env file with secrets")
	rootCmd.Flags().StringP("listen", "l", "127.0.0.1:9234", "Address for the health/metrics endpoint")
	rootCmd.SetVersionTemplate("clipfetch version {{.Version}}\n")
}

// initializeGlobalState sets up directories, settings, and logging.
func initializeGlobalState(cmd *cobra.Command) {
	if err := config.EnsureDirs(); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating app directories: %v\n", err)
		os.Exit(1)
	}

	configPath, _ := cmd.Flags().GetString("config")
	var err error
	if configPath != "" {
		settings, err = config.LoadSettingsFrom(configPath)
	} else {
		settings, err = config.LoadSettings()
	}
	if err != nil {
		settings = config.DefaultSettings()
	}

	utils.ConfigureDebug(config.GetLogsDir())
	utils.CleanupLogs(settings.General.LogRetentionCount)
}
