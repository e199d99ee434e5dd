package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v2"

	cfg "tributary.dev/tributary/config"
	"tributary.dev/tributary/connectors/filesystem"
	"tributary.dev/tributary/formats"
	"tributary.dev/tributary/logging"
	"tributary.dev/tributary/pipeline"
	"tributary.dev/tributary/storage/locations"
)

func main() {
	slog.SetDefault(slog.New(logging.NewTextHandler()))

	app := &cli.App{
		Name:  "tributary",
		Usage: "Move rows between file formats and storage locations",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log debug detail to stderr",
			},
		},
		Before: func(ctx *cli.Context) error {
			if ctx.Bool("verbose") {
				logging.SetLevel(slog.LevelDebug)
			}
			return nil
		},
		Commands: []*cli.Command{{
			Name:      "cat",
			Usage:     "Read files through a format and print rows as JSON",
			Args:      true,
			ArgsUsage: "<file> [<file>...]",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "format",
					Usage:    "path to a JSON format definition",
					Required: true,
				},
			},
			Action: func(ctx *cli.Context) error {
				if ctx.Args().Len() == 0 {
					return fmt.Errorf("at least one file is required")
				}
				return catFiles(ctx.String("format"), ctx.Args().Slice())
			},
		}, {
			Name:      "convert",
			Usage:     "Read a directory through one format and write part files in another",
			Args:      true,
			ArgsUsage: "<input-directory>",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "in-format",
					Usage:    "path to a JSON format definition for reading",
					Required: true,
				},
				&cli.StringFlag{
					Name:     "out-format",
					Usage:    "path to a JSON format definition for writing",
					Required: true,
				},
				&cli.StringFlag{
					Name:     "out",
					Usage:    "directory to write part files to",
					Required: true,
				},
				&cli.StringFlag{
					Name:  "part-suffix",
					Usage: "suffix for written part files, like .csv",
				},
				&cli.StringFlag{
					Name:  "bucket-by",
					Usage: "route rows to subdirectories: basePath or dateTime",
				},
				&cli.StringFlag{
					Name:  "date-format",
					Usage: "bucket directory time layout for -bucket-by dateTime",
				},
				&cli.IntFlag{
					Name:  "workers",
					Value: 1,
					Usage: "number of concurrent source readers",
				},
			},
			Action: func(ctx *cli.Context) error {
				inputDir := ctx.Args().First()
				if inputDir == "" {
					return fmt.Errorf("an input directory is required")
				}
				return convert(convertParams{
					InputDir:      inputDir,
					InFormatPath:  ctx.String("in-format"),
					OutFormatPath: ctx.String("out-format"),
					OutputDir:     ctx.String("out"),
					PartSuffix:    ctx.String("part-suffix"),
					BucketBy:      ctx.String("bucket-by"),
					DateFormat:    ctx.String("date-format"),
					Workers:       ctx.Int("workers"),
				})
			},
		}, {
			Name:      "pipe",
			Usage:     "Run a job config file through the pipeline runner",
			Args:      true,
			ArgsUsage: "<job-config>",
			Flags: []cli.Flag{
				&cli.StringSliceFlag{
					Name:  "param",
					Usage: "substitute a ${name} variable in the config, like -param name=value",
				},
			},
			Action: func(ctx *cli.Context) error {
				configPath := ctx.Args().First()
				if configPath == "" {
					return fmt.Errorf("a job config path is required")
				}
				return pipe(configPath, ctx.StringSlice("param"))
			},
		}},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func catFiles(formatPath string, files []string) error {
	format, err := loadFormat(formatPath)
	if err != nil {
		return err
	}
	readerFormat, err := cfg.ReaderFormat(format)
	if err != nil {
		return err
	}

	for _, file := range files {
		data, err := locations.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading %s: %w", file, err)
		}
		reader, err := readerFormat.Open(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("opening %s: %w", file, err)
		}
		if err := printRows(reader); err != nil {
			reader.Close()
			return fmt.Errorf("reading %s: %w", file, err)
		}
		reader.Close()
	}
	return nil
}

type convertParams struct {
	InputDir      string
	InFormatPath  string
	OutFormatPath string
	OutputDir     string
	PartSuffix    string
	BucketBy      string
	DateFormat    string
	Workers       int
}

func convert(params convertParams) error {
	inFormat, err := loadFormat(params.InFormatPath)
	if err != nil {
		return err
	}
	readerFormat, err := cfg.ReaderFormat(inFormat)
	if err != nil {
		return err
	}

	outFormat, err := loadFormat(params.OutFormatPath)
	if err != nil {
		return err
	}
	writerFactory, err := cfg.WriterFactory(outFormat)
	if err != nil {
		return err
	}

	var assigner filesystem.BucketAssigner
	switch params.BucketBy {
	case "", "basePath":
		assigner = filesystem.NewBasePathBucketAssigner()
	case "dateTime":
		assigner = filesystem.NewDateTimeBucketAssigner(params.DateFormat)
	default:
		return fmt.Errorf("unknown bucket assigner %q", params.BucketBy)
	}

	p := pipeline.New(&pipeline.NewPipelineParams{
		Source: filesystem.SourceConfig{
			Directory: params.InputDir,
			Format:    readerFormat,
		},
		Sink: filesystem.SinkConfig{
			Directory:      params.OutputDir,
			WriterFactory:  writerFactory,
			BucketAssigner: assigner,
			PartSuffix:     params.PartSuffix,
		}.NewSink(),
		WorkerCount: params.Workers,
	})
	return runPipeline(p)
}

func pipe(configPath string, paramArgs []string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}
	params, err := cfg.ParamsFromArgs(paramArgs)
	if err != nil {
		return err
	}
	c, err := cfg.Unmarshal(data, params)
	if err != nil {
		return err
	}

	p, err := pipeline.FromConfig(c)
	if err != nil {
		return fmt.Errorf("job definition validation error: %v", err)
	}
	return runPipeline(p)
}

func runPipeline(p *pipeline.Pipeline) error {
	// Stop on ctrl-c
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := p.Run(ctx); err != nil {
		slog.Error("terminated with error", "error", err)
		return err
	}
	return nil
}

func loadFormat(path string) (cfg.FormatSection, error) {
	var format cfg.FormatSection
	data, err := os.ReadFile(path)
	if err != nil {
		return format, err
	}
	if err := json.Unmarshal(data, &format); err != nil {
		return format, fmt.Errorf("parsing format %s: %w", path, err)
	}
	return format, nil
}

func printRows(reader formats.RecordReader) error {
	out := json.NewEncoder(os.Stdout)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := out.Encode(row); err != nil {
			return err
		}
	}
}
