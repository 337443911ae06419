package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/TurtleWithGlasses/deckgen/internal/infer"
	"github.com/TurtleWithGlasses/deckgen/internal/runtime"
	"github.com/TurtleWithGlasses/deckgen/internal/security"
	"github.com/TurtleWithGlasses/deckgen/internal/service"
	"github.com/TurtleWithGlasses/deckgen/internal/telemetry"
	"github.com/TurtleWithGlasses/deckgen/internal/xlsxio"
	"github.com/TurtleWithGlasses/deckgen/pkg/version"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var (
		useStdio        bool
		shutdownTimeout time.Duration
		maxRenders      int
		maxDatasets     int
	)

	flag.BoolVar(&useStdio, "stdio", false, "Run server over stdio transport")
	flag.DurationVar(&shutdownTimeout, "shutdown-timeout", 5*time.Second, "Graceful shutdown timeout")
	flag.IntVar(&maxRenders, "max-renders", 0, "Max concurrent tool calls (0 = default)")
	flag.IntVar(&maxDatasets, "max-datasets", 0, "Max open datasets (0 = default)")
	flag.Parse()

	logger := zlog.With().Str("service", "deckgen-server").Logger()
	ctx := logger.WithContext(context.Background())

	// Security: validate allow-list directories on startup (fail-safe on error)
	secMgr, err := security.NewManagerFromEnv()
	if err != nil {
		logger.Error().Err(err).Msg("security: failed to initialize manager from env")
		fmt.Fprintln(os.Stderr, "invalid security configuration; set DECKGEN_ALLOWED_DIRS")
		os.Exit(1)
	}
	if err := secMgr.ValidateConfig(); err != nil {
		logger.Error().Err(err).Msg("security: invalid allow-list configuration")
		fmt.Fprintln(os.Stderr, "no allowed directories configured; set DECKGEN_ALLOWED_DIRS")
		os.Exit(1)
	}
	logger.Info().Strs("allowed_dirs", secMgr.AllowedDirectories()).Msg("security allow-list configured")

	limits := runtime.NewLimits(maxRenders, maxDatasets)
	runtimeController := runtime.NewController(limits)
	runtimeMW := runtime.NewMiddleware(runtimeController)

	loader := xlsxio.NewLoader(infer.New(infer.Options{}, logger), logger)
	datasetMgr := xlsxio.NewManager(loader, 0, 0, runtimeController, secMgr, nil)
	datasetMgr.Start()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := datasetMgr.Close(closeCtx); err != nil {
			logger.Warn().Err(err).Msg("dataset manager shutdown")
		}
	}()

	toolRegistry := service.NewRegistry()
	writeFilter := service.NewWriteToolFilterFromEnv()
	svc := service.NewService(datasetMgr, limits, secMgr, logger)
	telem := telemetry.NewHooks(logger)

	srv := server.NewMCPServer(
		"Deck Generation Server",
		version.Version(),
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithHooks(buildHooks(logger, telem)),
		server.WithToolHandlerMiddleware(runtimeMW.ToolMiddleware),
		server.WithToolFilter(func(ctx context.Context, tools []mcp.Tool) []mcp.Tool { return writeFilter.FilterTools(ctx, tools) }),
	)

	service.RegisterTools(srv, toolRegistry, svc)

	logger.Info().
		Ctx(ctx).
		Str("version", version.Version()).
		Int("max_concurrent_renders", limits.MaxConcurrentRenders).
		Int("max_open_datasets", limits.MaxOpenDatasets).
		Bool("stdio", useStdio).
		Msg("server bootstrap configured")

	if useStdio {
		telem.OnServerStart()
		defer telem.OnServerStop()
		if err := server.ServeStdio(srv); err != nil {
			// Use stderr for transport errors so clients don't misinterpret output
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// If no transport flags provided, print usage and exit non-zero
	fmt.Fprintln(os.Stderr, "no transport selected; use --stdio to run over stdio")
	os.Exit(2)
}

// buildHooks routes mcp-go server lifecycle callbacks through the
// telemetry hooks.
func buildHooks(logger zerolog.Logger, telem *telemetry.Hooks) *server.Hooks {
	hooks := &server.Hooks{}

	hooks.AddOnRegisterSession(func(ctx context.Context, session server.ClientSession) {
		telem.OnSessionStart(session.SessionID())
	})

	hooks.AddOnUnregisterSession(func(ctx context.Context, session server.ClientSession) {
		telem.OnSessionEnd(session.SessionID())
	})

	hooks.AddAfterListTools(func(ctx context.Context, id any, req *mcp.ListToolsRequest, res *mcp.ListToolsResult) {
		// Keep it light: tool count only
		logger.Info().Int("tools", len(res.Tools)).Msg("list_tools served")
	})

	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, res *mcp.CallToolResult) {
		telem.OnToolCall(req.Params.Name, res != nil && res.IsError)
	})

	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		logger.Error().Str("method", string(method)).Err(err).Msg("request error")
	})

	return hooks
}
