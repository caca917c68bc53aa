package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/toejough/behave/behavegen/run"
)

const (
	configBaseName = "behave"
	envPrefix      = "BEHAVE"

	templateExtKey      = "template_ext"
	mocksFileKey        = "mocks_file"
	reporterKey         = "reporter"
	runtimeImportKey    = "runtime_import"
	mockablePackagesKey = "mockable_packages"
	checkKey            = "check"
	parallelKey         = "parallel"
	debugDumpKey        = "debug.dump"
	watchDebounceKey    = "watch.debounce_ms"

	logLevelKey      = "log.level"
	logFileKey       = "log.file"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogLevel      = "info"
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
	defaultWatchDebounce = 200

	dumpToStdout = "stdout"
)

// newConfig returns the settings store: behave.yaml in the working
// directory, BEHAVE_* environment variables and bound flags.
func newConfig() *viper.Viper {
	defaults := run.DefaultConfig()

	v := viper.New()
	v.SetConfigName(configBaseName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault(templateExtKey, defaults.TemplateExt)
	v.SetDefault(mocksFileKey, defaults.MocksFile)
	v.SetDefault(reporterKey, defaults.Reporter)
	v.SetDefault(runtimeImportKey, defaults.RuntimeImport)
	v.SetDefault(mockablePackagesKey, []string{})
	v.SetDefault(checkKey, false)
	v.SetDefault(parallelKey, 0)
	v.SetDefault(debugDumpKey, "")
	v.SetDefault(watchDebounceKey, defaultWatchDebounce)

	v.SetDefault(logLevelKey, defaultLogLevel)
	v.SetDefault(logFileKey, "")
	v.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	v.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	v.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	v.SetDefault(logCompressKey, defaultLogCompress)

	return v
}

// readConfig loads the config file. A missing behave.yaml is fine; a missing
// file named with --config is not.
func readConfig(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
	}

	err := v.ReadInConfig()
	if err == nil {
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}

	return fmt.Errorf("failed to read config: %w", err)
}

// runConfig builds the generator settings, without the debug dump.
func runConfig(v *viper.Viper) run.Config {
	return run.Config{
		TemplateExt:      v.GetString(templateExtKey),
		MocksFile:        v.GetString(mocksFileKey),
		Reporter:         v.GetString(reporterKey),
		RuntimeImport:    v.GetString(runtimeImportKey),
		MockablePackages: v.GetStringSlice(mockablePackagesKey),
		Check:            v.GetBool(checkKey),
		Parallel:         v.GetInt(parallelKey),
	}
}

// openDump returns where debug.dump sends generated files, or nil. The
// returned function closes the dump file, if one was opened.
func openDump(v *viper.Viper, stdout io.Writer) (io.Writer, func(), error) {
	switch dump := v.GetString(debugDumpKey); dump {
	case "":
		return nil, func() {}, nil
	case dumpToStdout:
		return stdout, func() {}, nil
	default:
		file, err := os.Create(dump) //nolint:gosec // the dump path is chosen by the user
		if err != nil {
			return nil, func() {}, fmt.Errorf("failed to open debug dump: %w", err)
		}

		return file, func() { _ = file.Close() }, nil
	}
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(v *viper.Viper, flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(v.BindPFlag(key, flag))
}
