// Package cli provides the sous command-line interface.
package cli

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sous/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sous/internal/core/ports/driving"
	"github.com/custodia-labs/sous/internal/logger"
)

// version is set at build time via SetVersion.
var version = "dev"

// annotationStandalone marks commands that run without application services.
const annotationStandalone = "standalone"

var (
	cfgFile string
	verbose bool
)

// Driving ports used by the commands. Populated by SetServices.
var (
	ingestService   driving.IngestService
	chatService     driving.ChatService
	documentService driving.DocumentService
	watchService    driving.WatchService
	metricsHandler  http.Handler
	metricsAddr     string
)

// Services bundles what the commands need.
type Services struct {
	Ingest   driving.IngestService
	Chat     driving.ChatService
	Document driving.DocumentService

	// Watch is nil when the object store cannot push changes.
	Watch driving.WatchService

	// Metrics serves the Prometheus registry on MetricsAddr while watching.
	Metrics     http.Handler
	MetricsAddr string
}

// Bootstrap builds the services from the configuration at configPath.
// The returned func releases them.
type Bootstrap func(ctx context.Context, configPath string) (*Services, func(), error)

var (
	bootstrap Bootstrap
	release   func()
)

var rootCmd = &cobra.Command{
	Use:   "sous",
	Short: "Chat with a versioned recipe collection",
	Long: `Sous ingests markdown recipes from an object store, keeps every content
revision as a version, mirrors the active fragments into a vector index and
answers cooking questions over an owner's recipes.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.sous/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetVersion sets the version reported by "sous version".
func SetVersion(v string) {
	version = v
}

// SetServices injects the driving ports.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	ingestService = s.Ingest
	chatService = s.Chat
	documentService = s.Document
	watchService = s.Watch
	metricsHandler = s.Metrics
	metricsAddr = s.MetricsAddr
}

// Execute runs the root command. b builds services lazily, only for
// commands that need them.
func Execute(ctx context.Context, b Bootstrap) error {
	bootstrap = b
	defer func() {
		if release != nil {
			release()
			release = nil
		}
		bootstrap = nil
	}()
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if bootstrap == nil || isStandalone(cmd) {
		return nil
	}

	path, err := configPath()
	if err != nil {
		return err
	}
	svc, done, err := bootstrap(cmd.Context(), path)
	if err != nil {
		return err
	}
	SetServices(svc)
	release = done
	return nil
}

func isStandalone(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[annotationStandalone] == "true" {
			return true
		}
	}
	return false
}

// configPath resolves --config or the default location.
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return file.DefaultPath()
}

func requireService(configured bool, name string) error {
	if !configured {
		return errors.New(name + " service not configured")
	}
	return nil
}
