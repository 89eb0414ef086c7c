package flags

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/samber/lo"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nimbuslab/flotilla/server/config"
)

const (
	LogFormat        = "log-format"
	LogLevel         = "log-level"
	LogSource        = "log-source"
	Listen           = "listen"
	Provider         = "provider"
	PlanFile         = "plan-file"
	ServerData       = "server-data"
	SweepConcurrency = "sweep-concurrency"
	ProviderTimeout  = "provider-timeout"
	WebhookUrl       = "webhook-url"
	ResultsRetention = "results-retention"
	JournalMaxSize   = "journal-max-size"

	AwsRegion = "aws-region"

	AzureSubscriptionId = "azure-subscription-id"
	AzureResourceGroup  = "azure-resource-group"
	AzureLocation       = "azure-location"

	OpenstackRegion = "openstack-region"

	LocalQuotaVcpus = "local-quota-vcpus"
)

func init() {
	flags := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	// Flotilla
	flags.String(LogFormat, "json", "log format (json, text)")
	flags.String(LogLevel, "INFO", "minimum log level")
	flags.Bool(LogSource, false, "add source code location to logs")
	flags.String(Listen, fmt.Sprintf(":%d", config.DefaultPort), "listening address")
	flags.String(Provider, "local", "fleet provider to use (local, aws, azure, openstack)")
	flags.String(PlanFile, "flotilla.yaml", "path to the fleet plan file")
	flags.String(ServerData, "/var/lib/flotilla", "directory where server data is stored")
	flags.Int(SweepConcurrency, 8, "maximum number of resources acted on concurrently during a sweep")
	flags.Duration(ProviderTimeout, 2*time.Minute, "timeout applied to every provider call")
	flags.String(WebhookUrl, "", "URL notified after each invocation")
	flags.Int(ResultsRetention, 128, "number of invocation results kept in memory")
	flags.Int(JournalMaxSize, 32*1024*1024, "size in bytes after which the results journal is rotated")

	// AWS
	flags.String(AwsRegion, "", "region overriding the environment configuration")

	// Azure
	flags.String(AzureSubscriptionId, "", "subscription holding the fleet")
	flags.String(AzureResourceGroup, "", "resource group holding the fleet")
	flags.String(AzureLocation, "", "location of the fleet")

	// Openstack
	flags.String(OpenstackRegion, "", "region overriding OS_REGION_NAME")

	// Local
	flags.Int(LocalQuotaVcpus, 0, "vCPUs reported by the synthetic quota service")

	// Init
	// The test binary owns the process arguments
	if !testing.Testing() {
		if err := flags.Parse(os.Args[1:]); err != nil {
			if !errors.Is(err, flag.ErrHelp) {
				fmt.Fprintln(os.Stderr, err)
			}
			os.Exit(1)
		}
	}

	viper.SetEnvPrefix("flotilla")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	lo.Must0(viper.BindPFlags(flags))
}
