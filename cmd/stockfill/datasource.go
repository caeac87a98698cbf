package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vertextoedge/stockfill/internal/domain"
	"github.com/vertextoedge/stockfill/internal/logger"
	"github.com/vertextoedge/stockfill/internal/port"
	"github.com/vertextoedge/stockfill/internal/service/datasource"
	"github.com/vertextoedge/stockfill/internal/ui/terminal"
)

var (
	keysEnvFile string
	keysValues  map[string]string

	failureType string
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage data source API keys stored on the server",
}

var keysShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show which sources have an API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := current.client.APIKeys(cmd.Context())
		if err != nil {
			return err
		}
		return current.emit(keys, func() {
			current.presenter.ShowAPIKeys(keys)
		})
	},
}

var keysSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Send API keys to the server",
	Long: `Sends non-empty API keys to the server. Keys come from --key flags
and from an env file with AKSHARE_API_KEY, TUSHARE_API_KEY,
ALPHA_VANTAGE_API_KEY or QUANDL_API_KEY entries. Flags win over the file.`,
	Example: `  stockfill keys set --key akshare=abc123
  stockfill keys set --env-file secrets.env`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var fromFile map[string]string
		if keysEnvFile != "" {
			env, err := godotenv.Read(keysEnvFile)
			if err != nil {
				return fmt.Errorf("failed to read env file: %w", err)
			}
			fromFile = datasource.KeysFromEnv(env)
		}

		keys, err := datasource.CollectKeys(fromFile, keysValues)
		if err != nil {
			current.presenter.Alert(port.LevelWarning, err.Error())
			return reported(err)
		}

		current.presenter.Progress("正在保存API密钥...")
		res, err := current.client.SetAPIKeys(cmd.Context(), keys)
		current.presenter.Done()
		if err != nil {
			current.presenter.Alert(port.LevelDanger, "保存API密钥失败: "+err.Error())
			return reported(err)
		}
		return current.emit(res, func() {
			current.presenter.Alert(port.LevelSuccess, "API密钥保存成功！"+res.Message)
			for _, e := range res.Errors {
				current.presenter.Alert(port.LevelWarning, e)
			}
		})
	},
}

var keysTestCmd = &cobra.Command{
	Use:   "test [source...]",
	Short: "Test data source connections concurrently",
	RunE: func(cmd *cobra.Command, args []string) error {
		current.presenter.Progress("正在测试所有数据源连接...")
		results := datasource.TestAll(cmd.Context(), current.client, args, logger.Named("datasource"))
		current.presenter.Done()

		return current.emit(results, func() {
			current.presenter.ShowConnections(results)
			current.presenter.Alert(port.LevelSuccess, "连接测试完成")
		})
	},
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect data source health and configuration",
}

var sourcesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-source success rates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := current.client.SourceStats(cmd.Context())
		if err != nil {
			return err
		}
		return current.emit(stats, func() {
			current.presenter.ShowSourceStats(stats)
		})
	},
}

var sourcesSuggestCmd = &cobra.Command{
	Use:   "suggest <source>",
	Short: "Check whether configuring an API key is advisable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := args[0]
		if source == domain.SourceLocal {
			return current.emit(&domain.Suggestion{}, func() {
				current.presenter.Alert(port.LevelInfo, "本地数据源无需API密钥")
			})
		}
		s, err := current.client.Suggestion(cmd.Context(), source)
		if err != nil {
			return err
		}
		return current.emit(s, func() {
			if !s.ShouldSuggest {
				current.presenter.Alert(port.LevelSuccess, source+" 运行正常")
				return
			}
			current.presenter.ShowSuggestion(source, s)
		})
	},
}

var sourcesRecordFailureCmd = &cobra.Command{
	Use:   "record-failure <source>",
	Short: "Report a failure of a data source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := domain.FailureKind(failureType)
		switch kind {
		case domain.FailureTimeout, domain.FailureAPIError, domain.FailureUnknown:
		default:
			return fmt.Errorf("%w: --type must be timeout, api_error or unknown", domain.ErrInvalidInput)
		}
		s, err := current.client.RecordFailure(cmd.Context(), args[0], kind)
		if err != nil {
			return err
		}
		return current.emit(s, func() {
			if s != nil && s.ShouldSuggest {
				current.presenter.ShowSuggestion(args[0], s)
				return
			}
			current.presenter.Alert(port.LevelInfo, "已记录失败")
		})
	},
}

var sourcesConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the server's data source configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := current.client.DataSourceConfig(cmd.Context())
		if err != nil {
			return err
		}
		// the configuration is free-form, so tables fall back to yaml
		format := current.format
		if format == terminal.FormatTable {
			format = terminal.FormatYAML
		}
		return terminal.Encode(current.stdout, format, cfg)
	},
}

var sourcesConfigSetCmd = &cobra.Command{
	Use:   "set <file>",
	Short: "Replace the server's data source configuration from a yaml or json file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var cfg map[string]any
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", args[0], err)
		}
		if len(cfg) == 0 {
			return fmt.Errorf("%w: %s is empty", domain.ErrInvalidInput, args[0])
		}
		if err := current.client.SetDataSourceConfig(cmd.Context(), cfg); err != nil {
			current.presenter.Alert(port.LevelDanger, "保存配置失败: "+err.Error())
			return reported(err)
		}
		current.presenter.Alert(port.LevelSuccess, "数据源配置已更新")
		return nil
	},
}

func init() {
	keysSetCmd.Flags().StringVar(&keysEnvFile, "env-file", "", "read keys from a dotenv file")
	keysSetCmd.Flags().StringToStringVar(&keysValues, "key", nil, "source=key pairs, repeatable")
	keysCmd.AddCommand(keysShowCmd, keysSetCmd, keysTestCmd)

	sourcesRecordFailureCmd.Flags().StringVar(&failureType, "type", string(domain.FailureTimeout), "failure type: timeout, api_error or unknown")
	sourcesConfigCmd.AddCommand(sourcesConfigSetCmd)
	sourcesCmd.AddCommand(sourcesStatsCmd, sourcesSuggestCmd, sourcesRecordFailureCmd, sourcesConfigCmd)
}
