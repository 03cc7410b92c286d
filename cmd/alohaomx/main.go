package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/lanikai/alohaomx"
	"github.com/lanikai/alohaomx/internal/logging"
	"github.com/lanikai/alohaomx/internal/media"
	"github.com/lanikai/alohaomx/internal/omx"
	"github.com/lanikai/alohaomx/internal/omx/omxtest"
	"github.com/lanikai/alohaomx/internal/omxil"
)

// Populated via -ldflags="-X ...".
var GitRevisionId string
var GitTag string

var log = logging.DefaultLogger.WithTag("alohaomx")

// version displays information and exits successfully (GNU convention)
func version() {
	fmt.Println("alohaomx", GitTag, GitRevisionId)
	fmt.Println("Copyright 2019 Lanikai Labs LLC. All rights reserved.")
	fmt.Println("Sources:", strings.Join(media.SourceTypes(), ", "))
	fmt.Println("Sinks:", strings.Join(media.SinkTypes(), ", "))
}

func main() {
	flag.Parse()

	if flagHelp {
		help()
		os.Exit(0)
	}
	if flagVersion {
		version()
		os.Exit(0)
	}
	if flagLogLevel != "" {
		if err := logging.Configure(flagLogLevel); err != nil {
			log.Fatalf("Invalid --log-level: %v", err)
		}
	}
	if flagEncode && flagDecode {
		log.Fatalf("--encode and --decode are mutually exclusive")
	}
	if flagInput == "" {
		help()
		os.Exit(2)
	}

	cfg := alohaomx.Config{
		Role:           alohaomx.Decoder,
		InputBuffers:   flagInputBuffers,
		OutputBuffers:  flagOutputBuffers,
		Width:          flagWidth,
		Height:         flagHeight,
		Bitrate:        flagBitrate,
		FrameRate:      flagFrameRate,
		CommandTimeout: flagCommandTimeout,
		StreamTimeout:  flagStreamTimeout,
	}
	if flagEncode {
		cfg.Role = alohaomx.Encoder
	}
	if flagComponent != "sim" {
		cfg.ComponentName = flagComponent
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg alohaomx.Config) error {
	src, err := media.OpenSource(sourceSpec(cfg))
	if err != nil {
		return err
	}
	defer src.Close()

	sink, err := media.OpenSink(flagOutput)
	if err != nil {
		return err
	}
	defer sink.Close()

	core, closeCore, err := openCore(cfg)
	if err != nil {
		return err
	}
	defer closeCore()

	s := alohaomx.NewSession(core, cfg, src, sink)
	err = s.Run(ctx)

	stats := s.Stats()
	log.Info("%d frames, %d bytes written; %d reconfigurations, %d runtime errors",
		stats.FramesWritten, stats.BytesWritten, stats.Reconfigurations, stats.RuntimeErrors)
	return err
}

// Raw encoder input without a geometry prefix takes the frame size from the
// command line.
func sourceSpec(cfg alohaomx.Config) string {
	if cfg.Role != alohaomx.Encoder {
		return flagInput
	}
	if strings.HasPrefix(flagInput, "raw:") {
		path := strings.TrimPrefix(flagInput, "raw:")
		if !strings.Contains(path, ":") {
			return fmt.Sprintf("raw:%dx%d:%s", cfg.Width, cfg.Height, path)
		}
		return flagInput
	}
	if !strings.Contains(flagInput, ":") {
		return fmt.Sprintf("raw:%dx%d:%s", cfg.Width, cfg.Height, flagInput)
	}
	return flagInput
}

func openCore(cfg alohaomx.Config) (omx.Core, func(), error) {
	if flagComponent == "sim" {
		log.Warn("Using the simulated component")
		return omxtest.NewCore(omxtest.Options{
			InputBufferSize:  uint32(cfg.FrameSize()),
			OutputBufferSize: uint32(cfg.FrameSize()),
		}), func() {}, nil
	}

	core, err := omxil.Open(omxil.Options{Library: flagLibrary})
	if err != nil {
		return nil, nil, err
	}
	return core, func() {
		if err := core.Close(); err != nil {
			log.Warn("OMX_Deinit: %v", err)
		}
	}, nil
}
