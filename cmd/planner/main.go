package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/orbitpath/planner/internal/config"
	"github.com/orbitpath/planner/internal/logging"
	"github.com/orbitpath/planner/internal/mission"
	intOtel "github.com/orbitpath/planner/internal/otel"
)

// BuildDate and Version can be set at build time via ldflags
var (
	Version   string = "0.0.1"
	BuildDate string = "unknown"

	AppName string = "planner"
)

var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// ZLogger feeds the database and influx managers
	ZLogger zerolog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	// MissionContext is the mission most recently planned
	MissionContext = mission.NewContext()

	SessionStartTime = time.Now()

	LogFilePath string
	logFile     *os.File
	graylog     io.Closer
)

const usage = `usage: planner <command> [arguments]

commands:
  generate <mission.json> [-o out] [--geojson] [--upload]
  serve
  bearing <lon,lat> <lon,lat>
  version
`

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd := strings.ToLower(args[0])
	if cmd == "version" {
		fmt.Printf("%s %s (built %s)\n", AppName, Version, BuildDate)
		return
	}

	setup()
	code := run(cmd, args[1:])
	shutdown()
	os.Exit(code)
}

func run(cmd string, args []string) int {
	var err error
	switch cmd {
	case "generate":
		err = generateCmd(context.Background(), args, os.Stdout)
	case "serve":
		err = serveCmd(args)
	case "bearing":
		err = bearingCmd(args, os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	if err != nil {
		Logger.Error("Command failed", "command", cmd, "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

// setup loads .env and config, then builds the log pipeline: log file,
// optional graylog and optional OTel.
func setup() {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(os.Stderr, "info", nil)
	Logger = SlogManager.Logger()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		Logger.Warn("Failed to load .env", "error", err)
	}

	configDir := os.Getenv("PLANNER_CONFIG_DIR")
	if configDir == "" {
		configDir = "."
	}
	if err := config.Load(configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "file", viper.ConfigFileUsed())
	}

	level := viper.GetString("logLevel")
	ZLogger = zerolog.New(os.Stderr).With().Timestamp().Str("app", AppName).Logger().
		Level(zerologLevel(level))

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		Logger.Error("Failed to create logs dir", "error", err, "path", logsDir)
	}
	LogFilePath = logging.LogFilePath(logsDir, AppName, SessionStartTime)
	var err error
	logFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", LogFilePath)
		logFile = nil
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		var otelWriter io.Writer
		if logFile != nil {
			otelWriter = logFile
		}
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    otelWriter,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
			OTelProvider = nil
		} else {
			Logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
		}
	}

	glCfg := config.GetGraylogConfig()
	if glCfg.Enabled {
		w, err := logging.NewGraylogWriter(glCfg.Address, AppName)
		if err != nil {
			Logger.Warn("Failed to connect to graylog", "error", err, "address", glCfg.Address)
		} else {
			SlogManager.SetGraylog(w)
			graylog = w
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	var fileOut io.Writer = os.Stderr
	if logFile != nil {
		fileOut = logFile
	}
	setupLogger(fileOut, level, otelLogProvider)
	Logger.Info("Starting up", "version", Version, "buildDate", BuildDate)
}

// setupLogger rebuilds Logger on SlogManager, tagging records with the
// active mission.
func setupLogger(out io.Writer, level string, provider *sdklog.LoggerProvider) {
	SlogManager.SetContextProvider(MissionContext.LogAttrs)
	SlogManager.Setup(out, level, provider)
	Logger = SlogManager.Logger()
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("Failed to shut down OTel provider", "error", err)
		}
	}
	if graylog != nil {
		_ = graylog.Close()
	}
	if logFile != nil {
		_ = logFile.Close()
	}
}

func zerologLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}
