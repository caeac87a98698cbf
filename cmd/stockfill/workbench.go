package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vertextoedge/stockfill/internal/domain"
	"github.com/vertextoedge/stockfill/internal/port"
	"github.com/vertextoedge/stockfill/internal/service/session"
	"github.com/vertextoedge/stockfill/internal/ui/terminal"
)

var (
	uploadMIME string

	processCodeColumn  string
	processPriceColumn string
	processSource      string
	processCrossCheck  bool
	processOptimize    bool

	historyFile  string
	historyLimit int
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a CSV or Excel file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := uploadFile(cmd, args[0])
		if err != nil {
			return err
		}
		return current.emit(res, nil)
	},
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Complete codes and names of the uploaded file",
	Long: `Runs the server side completion for the most recent upload.

Column flags override auto-detection. Pass an empty value (--code-column "")
to let the server detect the column itself.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := processUpload(cmd)
		if err != nil {
			return err
		}
		return current.emit(res, nil)
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the most recent result file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := downloadResult(cmd)
		if emitErr := current.emit(report, nil); emitErr != nil {
			return emitErr
		}
		return err
	},
}

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Upload, process and download in one go",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := uploadFile(cmd, args[0]); err != nil {
			return err
		}
		res, err := processUpload(cmd)
		if err != nil {
			return err
		}
		report, err := downloadResult(cmd)
		if emitErr := current.emit(map[string]any{"process": res, "download": report}, nil); emitErr != nil {
			return emitErr
		}
		return err
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show or reset the workbench session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		state := current.controller.State()
		return current.emit(state, func() {
			if state.CurrentFile == "" {
				current.presenter.Alert(port.LevelInfo, "当前没有上传的文件")
				return
			}
			current.presenter.Alert(port.LevelInfo, "当前文件: "+state.CurrentFile)
			current.presenter.ShowColumns(current.controller.Columns())
			if state.ResultFile != "" {
				current.presenter.Alert(port.LevelInfo, "结果文件: "+state.ResultFile.String())
			}
		})
	},
}

var sessionResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the current upload and result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := current.controller.Reset(); err != nil {
			return err
		}
		current.presenter.Alert(port.LevelSuccess, "会话已重置")
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show download attempt history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		attempts, err := current.store.ListAttempts(domain.ResultFileName(historyFile), historyLimit)
		if err != nil {
			return err
		}
		return current.emit(attempts, func() {
			current.presenter.ShowAttempts(attempts)
		})
	},
}

func init() {
	uploadCmd.Flags().StringVar(&uploadMIME, "mime", "", "declared MIME type (default: derived from the extension)")
	runCmd.Flags().StringVar(&uploadMIME, "mime", "", "declared MIME type (default: derived from the extension)")

	for _, c := range []*cobra.Command{processCmd, runCmd} {
		c.Flags().StringVar(&processCodeColumn, "code-column", "", "stock code column (default: auto-detected)")
		c.Flags().StringVar(&processPriceColumn, "price-column", "", "reference price column (default: auto-detected)")
		c.Flags().StringVar(&processSource, "source", "", "data source (default: processing.api_source)")
		c.Flags().BoolVar(&processCrossCheck, "cross-validation", false, "validate against a second data source")
		c.Flags().BoolVar(&processOptimize, "optimization", true, "use the server's optimized matcher")
	}

	historyCmd.Flags().StringVar(&historyFile, "file", "", "only show attempts for this result file")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of attempts to show")

	sessionCmd.AddCommand(sessionResetCmd)
}

func uploadFile(cmd *cobra.Command, path string) (*domain.UploadResult, error) {
	file, err := session.DescribeFile(path, uploadMIME)
	if err != nil {
		return nil, err
	}
	res, err := current.controller.SelectFile(cmd.Context(), file)
	if err != nil {
		return nil, reported(err)
	}
	return res, nil
}

func processUpload(cmd *cobra.Command) (*domain.ProcessResult, error) {
	opts := session.ProcessOptions{
		APISource:       current.cfg.Processing.APISource,
		CrossValidation: current.cfg.Processing.CrossValidation,
		Optimization:    current.cfg.Processing.Optimization,
	}
	flags := cmd.Flags()
	if flags.Changed("code-column") {
		opts.CodeColumn = &processCodeColumn
	}
	if flags.Changed("price-column") {
		opts.PriceColumn = &processPriceColumn
	}
	if flags.Changed("source") {
		opts.APISource = processSource
	}
	if flags.Changed("cross-validation") {
		opts.CrossValidation = processCrossCheck
	}
	if flags.Changed("optimization") {
		opts.Optimization = processOptimize
	}

	res, err := current.controller.Process(cmd.Context(), opts)
	if err != nil {
		return nil, reported(err)
	}
	return res, nil
}

// downloadResult runs the fallback chain and waits for deferred releases
func downloadResult(cmd *cobra.Command) (*domain.DownloadReport, error) {
	report := current.controller.Download(cmd.Context())
	current.chain.Wait()

	if current.format == terminal.FormatTable {
		current.presenter.ShowDownloadReport(report)
	}
	if !report.Succeeded() {
		if err := report.ResultFile.Validate(); err != nil {
			return report, reported(err)
		}
		return report, reported(fmt.Errorf("%w: %s", domain.ErrDownloadExhausted, report.ResultFile))
	}
	return report, nil
}
