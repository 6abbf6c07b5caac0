package cli

// This file contains the extract command, which converts a result bundle
// into suite reports and packages them.

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/xctools/xctools/config"
	"github.com/xctools/xctools/extract"
	"github.com/xctools/xctools/media"
	"github.com/xctools/xctools/publish"
	"github.com/xctools/xctools/xcresult"
)

func (a *App) extract(ctx *cli.Context) error {
	if ctx.NArg() < 1 || ctx.NArg() > 2 {
		return fmt.Errorf("expected XCRESULT [DESTINATION], got %d arguments", ctx.NArg())
	}
	bundlePath := ctx.Args().Get(0)
	destination := ctx.Args().Get(1)
	if destination == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		destination = wd
	}

	cfg := a.cfg.Extract
	opts := extract.Options{
		Destination: destination,
		Workers:     cfg.Workers,
		ExtractLogs: config.BoolValue(cfg.ExtractLogs),
		Profile:     config.BoolValue(cfg.Profile),
	}
	if ctx.IsSet("workers") {
		opts.Workers = ctx.Int("workers")
	}
	if ctx.IsSet("extract-logs") {
		opts.ExtractLogs = ctx.Bool("extract-logs")
	}
	if ctx.IsSet("profile") {
		opts.Profile = ctx.Bool("profile")
	}

	tool := xcresult.New(a.logger, bundlePath, xcresult.WithLegacyFlag(ctx.Bool("legacy")))
	frames := media.NewFrameExtractor(a.logger, media.WithFFmpegPath(stringOr(ctx, "ffmpeg", cfg.FFmpegPath)))

	var extractOpts []extract.Option
	if ctx.Bool("upload") {
		uploader, err := a.uploader()
		if err != nil {
			return err
		}
		extractOpts = append(extractOpts, extract.WithUploader(uploader))
	}

	a.logger.Debug().
		Str("bundle", bundlePath).
		Str("destination", destination).
		Int("workers", opts.Workers).
		Bool("logs", opts.ExtractLogs).
		Bool("profile", opts.Profile).
		Msg("Starting extraction")

	res, err := extract.New(a.logger, tool, frames, media.PNGWriter{}, extractOpts...).Run(ctx.Context, opts)
	if err != nil {
		return err
	}

	fmt.Println("Test results extraction finished successfully")
	fmt.Printf("Results at: %s\n", res.ArchivePath)
	if res.UploadURL != "" {
		fmt.Printf("Uploaded to: %s\n", res.UploadURL)
	}
	return nil
}

func (a *App) uploader() (*publish.Uploader, error) {
	upload := a.cfg.Upload
	if !upload.Enabled() {
		return nil, fmt.Errorf("upload requires endpoint and bucket in the upload section of %s", config.FileName)
	}
	accessKey, secretKey, err := config.Credentials()
	if err != nil {
		return nil, err
	}
	return publish.New(a.logger, publish.Options{
		Endpoint:  upload.Endpoint,
		Bucket:    upload.Bucket,
		Prefix:    upload.Prefix,
		Region:    upload.Region,
		UseSSL:    config.BoolValue(upload.UseSSL),
		AccessKey: accessKey,
		SecretKey: secretKey,
	})
}
