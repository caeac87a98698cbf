package main

import (
	"errors"
	"fmt"
	"strings"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vertextoedge/stockfill/internal/domain"
	"github.com/vertextoedge/stockfill/internal/logger"
	"github.com/vertextoedge/stockfill/internal/port"
	"github.com/vertextoedge/stockfill/internal/service/stockdata"
)

var (
	watchDir    string
	watchNoScan bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that the completion server is up",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := current.client.Status(cmd.Context())
		if err != nil {
			current.presenter.Alert(port.LevelDanger, "无法连接服务: "+err.Error())
			return reported(err)
		}
		current.logger.Info("server status", zap.String("status", st.Status), zap.Int("stock_count", st.StockCount))

		usage, usageErr := current.files.DiskUsage()
		return current.emit(map[string]any{"server": st, "output_dir": current.files.RootDir(), "disk": usage}, func() {
			current.presenter.ShowServiceStatus(st)
			if usageErr == nil {
				current.presenter.Alert(port.LevelInfo, fmt.Sprintf("输出目录 %s 剩余空间 %s (已用 %.1f%%)",
					current.files.RootDir(), humanize.IBytes(usage.Free), usage.UsedPct))
			}
		})
	},
}

var stockDataCmd = &cobra.Command{
	Use:   "stock-data",
	Short: "Manage the server's reference stock dataset",
}

var stockDataStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the reference dataset status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := current.client.StockDataStatus(cmd.Context())
		if err != nil {
			current.presenter.Alert(port.LevelDanger, "加载股票数据状态失败")
			return reported(err)
		}
		return current.emit(st, func() {
			current.presenter.ShowStockDataStatus(st)
		})
	},
}

var stockDataUploadCmd = &cobra.Command{
	Use:   "upload <file.csv>",
	Short: "Upload a reference dataset CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uploader := stockdata.NewUploader(current.client, logger.Named("stockdata"), 0)
		current.presenter.Progress("上传中...")
		res, err := uploader.Upload(cmd.Context(), args[0])
		current.presenter.Done()
		if err != nil {
			current.presenter.Alert(port.LevelDanger, stockDataError(err))
			return reported(err)
		}
		return current.emit(res, func() {
			current.presenter.Alert(port.LevelSuccess, res.Message)
			if len(res.ProcessedFiles) > 0 {
				current.presenter.Alert(port.LevelInfo, "已处理: "+strings.Join(res.ProcessedFiles, ", "))
			}
		})
	},
}

var stockDataAutoUpdateCmd = &cobra.Command{
	Use:   "auto-update",
	Short: "Ask the server to rescan its watch directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		current.presenter.Progress("检查中...")
		res, err := current.client.AutoUpdateStockData(cmd.Context())
		current.presenter.Done()
		if err != nil {
			current.presenter.Alert(port.LevelDanger, stockDataError(err))
			return reported(err)
		}
		return current.emit(res, func() {
			level := port.LevelInfo
			if res.Updated {
				level = port.LevelSuccess
			}
			current.presenter.Alert(level, res.Message)
			for _, e := range res.Errors {
				current.presenter.Alert(port.LevelWarning, e)
			}
		})
	},
}

var stockDataWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Upload CSV files as they appear in a directory",
	Long: `Watches a local directory and uploads every CSV file dropped into it.
Rejected files are skipped; network failures are retried. Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sd := current.cfg.StockData
		dir := sd.WatchDir
		if watchDir != "" {
			dir = watchDir
		}

		w := stockdata.NewWatcher(stockdata.WatchConfig{
			Dir:          dir,
			Debounce:     sd.GetDebounce(),
			MaxRetries:   sd.MaxRetries,
			ScanExisting: sd.ScanExisting && !watchNoScan,
		}, stockdata.NewUploader(current.client, logger.Named("stockdata"), 0), logger.Named("watcher"))

		current.presenter.Alert(port.LevelInfo, "监控目录: "+dir)

		// periodic cleanup runs for as long as the watcher does
		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			return current.maintenance.Start(ctx)
		})
		g.Go(func() error {
			defer current.maintenance.Stop()
			return w.Run(ctx)
		})
		if err := g.Wait(); err != nil {
			return err
		}

		stats := w.Stats()
		return current.emit(stats, func() {
			current.presenter.Alert(port.LevelInfo, fmt.Sprintf("已上传 %d 个, 跳过 %d 个, 失败 %d 个",
				stats.Uploaded, stats.Skipped, stats.Failed))
		})
	},
}

func init() {
	stockDataWatchCmd.Flags().StringVar(&watchDir, "dir", "", "directory to watch (default: stock_data.watch_dir)")
	stockDataWatchCmd.Flags().BoolVar(&watchNoScan, "no-scan", false, "ignore CSV files already in the directory")

	stockDataCmd.AddCommand(stockDataStatusCmd, stockDataUploadCmd, stockDataAutoUpdateCmd, stockDataWatchCmd)
}

// stockDataError picks the message to show for a dataset failure
func stockDataError(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	var sm interface{ ServerMessage() string }
	if errors.As(err, &sm) && sm.ServerMessage() != "" {
		return sm.ServerMessage()
	}
	return "上传失败: " + err.Error()
}
