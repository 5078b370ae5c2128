package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dynamodb-backup-export/internal/backup"
)

var cfgFile string

// CLI flag variables
var (
	tableName    string
	bucketName   string
	keyPrefix    string
	awsRegion    string
	exportFormat string
	timezone     string

	pollInterval   time.Duration
	maxRetries     int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration

	verbose      bool
	quiet        bool
	logFile      string
	logFormat    string
	outputFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dynamodb-backup-export",
	Short: "Scheduled point-in-time backup exports of a DynamoDB table to S3",
	Long: `dynamodb-backup-export performs point-in-time backup exports of a
DynamoDB table to S3. It is designed to be invoked by a scheduler and
configured through environment variables.

Two job variants are available:

  export          Time-travel export of the live table at "now minus a
                  configured lag" (or the end of the previous month for
                  monthly schedules). Failures are reported in the
                  structured response body; the process exits 0.
  restore-export  Restores the table to a temporary table at the
                  configured restore point, exports the temporary table,
                  and always deletes it afterwards. Failures exit
                  non-zero so the scheduler alerts.

Examples:
  # Hourly snapshot export, one hour behind, configured via environment
  TABLE_NAME=Orders BUCKET_NAME=my-bucket dynamodb-backup-export export

  # Monthly export of the previous month's final state
  dynamodb-backup-export export --previous-month-end --table Orders --bucket my-bucket

  # Restore 30 days back into a temp table, export it, verify the manifest
  SOURCE_TABLE_NAME=Orders S3_BUCKET_NAME=my-bucket S3_PREFIX=archive \
    dynamodb-backup-export restore-export --restore-lag 720h --verify`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.dynamodb-backup-export.yaml)")

	rootCmd.PersistentFlags().StringVar(&tableName, "table", "", "source DynamoDB table name")
	rootCmd.PersistentFlags().StringVar(&bucketName, "bucket", "", "destination S3 bucket")
	rootCmd.PersistentFlags().StringVar(&keyPrefix, "prefix", "", "S3 key prefix for export destinations")
	rootCmd.PersistentFlags().StringVar(&awsRegion, "region", "", "AWS region (default from environment/shared config)")
	rootCmd.PersistentFlags().StringVar(&exportFormat, "export-format", "DYNAMODB_JSON", "export format (DYNAMODB_JSON, ION)")
	rootCmd.PersistentFlags().StringVar(&timezone, "timezone", "UTC", "IANA timezone export times are computed in")

	rootCmd.PersistentFlags().DurationVar(&pollInterval, "poll-interval", 30*time.Second, "delay between status checks while waiting on the service")
	rootCmd.PersistentFlags().IntVar(&maxRetries, "max-retries", 3, "attempts for the calls that initiate restores and exports")
	rootCmd.PersistentFlags().DurationVar(&retryBaseDelay, "retry-base-delay", 30*time.Second, "base delay of the exponential retry backoff")
	rootCmd.PersistentFlags().DurationVar(&retryMaxDelay, "retry-max-delay", 5*time.Minute, "maximum delay of the exponential retry backoff")

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "json", "response output format (json, yaml, summary)")

	viper.BindPFlag("table_name", rootCmd.PersistentFlags().Lookup("table"))
	viper.BindPFlag("bucket", rootCmd.PersistentFlags().Lookup("bucket"))
	viper.BindPFlag("prefix", rootCmd.PersistentFlags().Lookup("prefix"))
	viper.BindPFlag("region", rootCmd.PersistentFlags().Lookup("region"))
	viper.BindPFlag("export_format", rootCmd.PersistentFlags().Lookup("export-format"))
	viper.BindPFlag("timezone", rootCmd.PersistentFlags().Lookup("timezone"))
	viper.BindPFlag("poll_interval", rootCmd.PersistentFlags().Lookup("poll-interval"))
	viper.BindPFlag("max_retries", rootCmd.PersistentFlags().Lookup("max-retries"))
	viper.BindPFlag("retry_base_delay", rootCmd.PersistentFlags().Lookup("retry-base-delay"))
	viper.BindPFlag("retry_max_delay", rootCmd.PersistentFlags().Lookup("retry-max-delay"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(createVersionCommand())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".dynamodb-backup-export")
	}

	viper.SetEnvPrefix("DYNAMODB_BACKUP_EXPORT")
	viper.AutomaticEnv()

	// The job is normally deployed with the scheduler-era variable
	// names; bind them directly so no prefix is needed.
	viper.BindEnv("table_name", "SOURCE_TABLE_NAME", "TABLE_NAME")
	viper.BindEnv("bucket", "S3_BUCKET_NAME", "BUCKET_NAME")
	viper.BindEnv("prefix", "S3_PREFIX")
	viper.BindEnv("region", "AWS_REGION")

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// buildConfig assembles the job configuration from defaults, config
// file, environment, and flags.
func buildConfig() (backup.Config, error) {
	config := backup.DefaultConfig()

	if err := viper.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if verbose && quiet {
		return config, fmt.Errorf("--verbose and --quiet flags are mutually exclusive")
	}

	return config, nil
}

// Version information (set by main package)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
	goVersion = "unknown"
)

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, bt, gc, gv string) {
	version = v
	buildTime = bt
	gitCommit = gc
	goVersion = gv
}

// createVersionCommand creates the version subcommand
func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dynamodb-backup-export version %s\n", version)
			fmt.Printf("Built: %s\n", buildTime)
			fmt.Printf("Commit: %s\n", gitCommit)
			fmt.Printf("Go version: %s\n", goVersion)
		},
	}
}
