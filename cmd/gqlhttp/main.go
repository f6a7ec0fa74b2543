package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hanpama/gqlhttp/internal/eventbus"
	"github.com/hanpama/gqlhttp/internal/language"
	"github.com/hanpama/gqlhttp/internal/logging"
	"github.com/hanpama/gqlhttp/internal/otel"
	"github.com/hanpama/gqlhttp/internal/server"
	"github.com/hanpama/gqlhttp/internal/upstream"
)

const rootUsage = `gqlhttp — GraphQL-over-HTTP endpoint adapter

USAGE:
  gqlhttp <command> [flags]

COMMANDS:
  serve            Serve a GraphQL endpoint, forwarding execution upstream
  check-schema     Parse and validate a schema SDL file
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -schema <file>                SDL schema file (required)
  -upstream <url>               Upstream GraphQL endpoint executing queries (required)
  -server.addr <addr>           HTTP listen address (default: :8080)
  -server.path <path>           Endpoint path (default: /graphql)
  -server.pretty                Pretty-print JSON responses
  -server.timeout <duration>    Per-request timeout, e.g. 10s (default: 10s)
  -server.max-body-bytes <n>    Request body size limit (default: unlimited)
  -server.cors-origin <origin>  Allowed CORS origin. Repeatable
  -graphiql <bool>              Serve the GraphiQL explorer to browsers (default: true)
  -graphiql.version <version>   GraphiQL release to load from the CDN
  -otel.endpoint <addr>         OTLP collector endpoint
  -otel.service <name>          OpenTelemetry service name (default: gqlhttp)
`

const checkSchemaUsage = `check-schema FLAGS:
  -schema <file>   SDL schema file (required)
  (Exits non-zero when the schema does not build)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("gqlhttp", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "serve":
		return cmdServe(cmdArgs)
	case "check-schema":
		return cmdCheckSchema(cmdArgs)
	case "help":
		return cmdHelp(cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Print(serveUsage)
	case "check-schema":
		fmt.Print(checkSchemaUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func cmdServe(args []string) error {
	schemaFile := ""
	upstreamURL := ""
	addr := ":8080"
	path := "/graphql"
	pretty := false
	timeout := 10 * time.Second
	var maxBodyBytes int64
	graphiqlEnabled := true
	graphiqlVersion := ""
	otelEndpoint := ""
	otelService := "gqlhttp"
	var corsOrigins stringListFlag

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&schemaFile, "schema", schemaFile, "SDL schema file")
	fs.StringVar(&upstreamURL, "upstream", upstreamURL, "Upstream GraphQL endpoint")
	fs.StringVar(&addr, "server.addr", addr, "HTTP listen address")
	fs.StringVar(&path, "server.path", path, "Endpoint path")
	fs.BoolVar(&pretty, "server.pretty", pretty, "Pretty-print JSON responses")
	fs.DurationVar(&timeout, "server.timeout", timeout, "Per-request timeout")
	fs.Int64Var(&maxBodyBytes, "server.max-body-bytes", maxBodyBytes, "Request body size limit")
	fs.Var(&corsOrigins, "server.cors-origin", "Allowed CORS origin")
	fs.BoolVar(&graphiqlEnabled, "graphiql", graphiqlEnabled, "Serve the GraphiQL explorer")
	fs.StringVar(&graphiqlVersion, "graphiql.version", graphiqlVersion, "GraphiQL release")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}
	if schemaFile == "" {
		fmt.Fprint(os.Stderr, serveUsage)
		return fmt.Errorf("-schema is required")
	}
	if upstreamURL == "" {
		fmt.Fprint(os.Stderr, serveUsage)
		return fmt.Errorf("-upstream is required")
	}

	schema, err := loadSchemaFile(schemaFile)
	if err != nil {
		return err
	}

	eventbus.Use(eventbus.New())
	logging.Attach(log.Default())
	shutdown, err := otel.Setup(otelEndpoint, otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	exec := upstream.New(upstreamURL)

	opts := []server.Option{
		server.WithGraphiQL(graphiqlEnabled),
		server.WithTimeout(timeout),
	}
	if pretty {
		opts = append(opts, server.WithPretty())
	}
	if maxBodyBytes > 0 {
		opts = append(opts, server.WithMaxBodyBytes(maxBodyBytes))
	}
	if len(corsOrigins) > 0 {
		opts = append(opts, server.WithCORS(corsOrigins...))
	}
	if graphiqlVersion != "" {
		opts = append(opts, server.WithGraphiQLVersion(graphiqlVersion))
	}
	h, err := server.New(schema, exec, opts...)
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(path, h)

	log.Info("GraphQL endpoint listening", "addr", addr, "path", path, "upstream", upstreamURL)
	return http.ListenAndServe(addr, mux)
}

func cmdCheckSchema(args []string) error {
	schemaFile := ""
	fs := flag.NewFlagSet("check-schema", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&schemaFile, "schema", schemaFile, "SDL schema file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, checkSchemaUsage)
		return err
	}
	if schemaFile == "" {
		fmt.Fprint(os.Stderr, checkSchemaUsage)
		return fmt.Errorf("-schema is required")
	}
	schema, err := loadSchemaFile(schemaFile)
	if err != nil {
		return err
	}
	fmt.Printf("schema ok: %d types\n", len(schema.Types))
	return nil
}

func loadSchemaFile(name string) (*language.Schema, error) {
	sdl, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	schema, err := language.LoadSchema(name, string(sdl))
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return schema, nil
}
