package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/facerig/internal/app"
	"github.com/specialistvlad/facerig/internal/config"
	"github.com/specialistvlad/facerig/internal/media"
	"github.com/specialistvlad/facerig/internal/orchestrator"
	"github.com/specialistvlad/facerig/internal/params"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// flagName turns a control name like rotate_pitch into rotate-pitch.
func flagName(control string) string {
	return strings.ReplaceAll(control, "_", "-")
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
//
// Request values are layered: built-in defaults, then the -request file, then
// any flag given explicitly on the command line.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("facerig", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
facerig - Drive a ComfyUI facial expression workflow for a single image.

Usage:
  facerig [options] [IMAGE]

Arguments:
  IMAGE
    Path to the source face image. Optional; without it the workflow runs
    with no image attached.

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to an HCL settings file.")
	requestFlag := flagSet.String("request", "", "Path to an HCL request file. Flags override its values.")
	imageFlag := flagSet.String("image", "", "Path to the source face image.")
	formatFlag := flagSet.String("output-format", string(media.DefaultFormat), "Output image format. Options: 'webp', 'jpg' or 'png'.")
	qualityFlag := flagSet.Int("output-quality", media.DefaultQuality, "Output quality from 0 to 100. Applies to jpg only.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	controls := params.Controls()
	controlFlags := make(map[string]*float64, len(controls))
	for _, c := range controls {
		usage := fmt.Sprintf("%s [%g, %g]", c.Description, c.Min, c.Max)
		controlFlags[flagName(c.Name)] = flagSet.Float64(flagName(c.Name), c.Default, usage)
	}

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if flagSet.NArg() > 1 {
		return nil, false, usageError("expected at most one image argument, got %d", flagSet.NArg())
	}
	slog.Debug("Arguments parsed successfully.")

	req := orchestrator.NewRequest("")
	if *requestFlag != "" {
		file, err := config.LoadRequest(*requestFlag)
		if err != nil {
			return nil, false, usageError("invalid request file: %v", err)
		}
		file.Apply(&req.Params)
		if file.Image != nil {
			req.ImagePath = *file.Image
		}
		if file.OutputFormat != nil {
			format, err := media.ParseFormat(*file.OutputFormat)
			if err != nil {
				return nil, false, usageError("invalid request file: %v", err)
			}
			req.OutputFormat = format
		}
		if file.OutputQuality != nil {
			req.OutputQuality = *file.OutputQuality
		}
		slog.Debug("Request file applied.", "path", *requestFlag)
	}

	var parseErr error
	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "image":
			req.ImagePath = *imageFlag
		case "output-format":
			format, err := media.ParseFormat(*formatFlag)
			if err != nil && parseErr == nil {
				parseErr = usageError("invalid -output-format: %v", err)
			}
			req.OutputFormat = format
		case "output-quality":
			req.OutputQuality = *qualityFlag
		default:
			v, ok := controlFlags[f.Name]
			if !ok {
				return
			}
			c, _ := params.Lookup(strings.ReplaceAll(f.Name, "-", "_"))
			if err := c.Check(*v); err != nil && parseErr == nil {
				parseErr = usageError("invalid -%s: %v", f.Name, err)
			}
			*c.Ptr(&req.Params) = *v
		}
	})
	if parseErr != nil {
		return nil, false, parseErr
	}
	if flagSet.NArg() == 1 {
		if *imageFlag != "" {
			return nil, false, usageError("image given both as -image and as an argument")
		}
		req.ImagePath = flagSet.Arg(0)
	}
	slog.Debug("Request assembled.", "image", req.ImagePath)

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, usageError("invalid log-format: must be 'text' or 'json'")
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, usageError("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}

	cfg, err := app.NewConfig(app.Config{
		ConfigPath:      *configFlag,
		Request:         req,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		HealthcheckPort: *healthPortFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.")
	return cfg, false, nil
}
