package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/datahub/pkg/clients"
	"github.com/ajitpratap0/datahub/pkg/config"
	"github.com/ajitpratap0/datahub/pkg/connector/core"
	"github.com/ajitpratap0/datahub/pkg/connector/registry"
	_ "github.com/ajitpratap0/datahub/pkg/connector/sinks"
	"github.com/ajitpratap0/datahub/pkg/errors"
	"github.com/ajitpratap0/datahub/pkg/json"
	"github.com/ajitpratap0/datahub/pkg/logger"
	"github.com/ajitpratap0/datahub/pkg/observability"
	"github.com/ajitpratap0/datahub/pkg/transport"
)

var version = "1.1.0"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	endpoint   string
	logLevel   string
	trace      bool
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "datahub",
		Short:         "DataHub client",
		Long:          `datahub sends requests to a DataHub service and converts connector descriptors between YAML and their wire JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "Path to client configuration YAML file")
	root.PersistentFlags().StringVar(&flags.endpoint, "endpoint", os.Getenv("DATAHUB_ENDPOINT"), "Service endpoint, overrides the config file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides log.level from the config file")
	root.PersistentFlags().BoolVar(&flags.trace, "trace", false, "Print request spans to stderr")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "datahub v%s (client version %s)\n", version, clients.ClientVersion)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(newTypesCmd())
	root.AddCommand(newRequestCmd(flags))
	root.AddCommand(newConnectorCmd(flags))
	root.AddCommand(newConfigCmd(flags))
	return root
}

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List connector types and their descriptor fields",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			for _, t := range registry.List() {
				info, ok := registry.Info(t)
				if !ok {
					fmt.Fprintf(out, "%s\n", t)
					continue
				}
				fmt.Fprintf(out, "%s\t%s\n", t, info.Description)
				fmt.Fprintf(out, "  fields: %s\n", strings.Join(info.Fields, ", "))
			}
		},
	}
}

func newRequestCmd(flags *globalFlags) *cobra.Command {
	var data string
	var headers []string
	cmd := &cobra.Command{
		Use:   "request METHOD RESOURCE",
		Short: "Send a raw request and print the response",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), flags, func(ctx context.Context, client *clients.Client) error {
				req := transport.NewRequest(transport.HTTPMethod(strings.ToUpper(args[0])), args[1])
				for _, h := range headers {
					k, v, ok := strings.Cut(h, ":")
					if !ok {
						return errors.New(errors.ErrorTypeValidation, "header must be KEY:VALUE, got "+h)
					}
					req.SetHeader(strings.TrimSpace(k), strings.TrimSpace(v))
				}
				if data != "" {
					body, err := readData(cmd.InOrStdin(), data)
					if err != nil {
						return err
					}
					if _, typed := req.Header(transport.HeaderContentType); !typed && !json.Valid(body) {
						return errors.New(errors.ErrorTypeValidation, "request body is not valid JSON; set a Content-Type header to send other payloads")
					}
					req.Body = body
				}

				result, err := client.Do(ctx, req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%d %s\n", result.Status, result.Message)
				fmt.Fprintf(out, "request id: %s\n\n", result.RequestID)
				_, err = out.Write(result.Payload)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "Request body; @file reads a file, @- reads stdin")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Extra header as KEY:VALUE (repeatable)")
	return cmd
}

func newConnectorCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connector",
		Short: "Manage topic connectors",
	}

	var project, topic, typeName string
	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Fetch a connector and print its descriptor as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := core.ParseConnectorType(typeName)
			if err != nil {
				return err
			}
			return withClient(cmd.Context(), flags, func(ctx context.Context, client *clients.Client) error {
				conn, err := client.GetConnector(ctx, project, topic, t)
				if err != nil {
					return err
				}
				return yaml.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"type":             conn.Type.String(),
					"state":            conn.State,
					"column_fields":    conn.ColumnFields,
					"create_time":      conn.CreateTime,
					"last_modify_time": conn.LastModifyTime,
					"config":           conn.Config,
				})
			})
		},
	}
	getCmd.Flags().StringVarP(&project, "project", "p", "", "Project name (required)")
	getCmd.Flags().StringVarP(&topic, "topic", "t", "", "Topic name (required)")
	getCmd.Flags().StringVar(&typeName, "type", "", "Connector type, e.g. sink_es (required)")
	_ = getCmd.MarkFlagRequired("project")
	_ = getCmd.MarkFlagRequired("topic")
	_ = getCmd.MarkFlagRequired("type")

	var encodeType string
	encodeCmd := &cobra.Command{
		Use:   "encode FILE",
		Short: "Convert a YAML descriptor into its wire JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readData(cmd.InOrStdin(), "@"+args[0])
			if err != nil {
				return err
			}
			out, err := encodeDescriptor(encodeType, data)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	encodeCmd.Flags().StringVar(&encodeType, "type", "", "Connector type (required)")
	_ = encodeCmd.MarkFlagRequired("type")

	var decodeType string
	decodeCmd := &cobra.Command{
		Use:   "decode FILE",
		Short: "Convert a wire JSON descriptor into YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readData(cmd.InOrStdin(), "@"+args[0])
			if err != nil {
				return err
			}
			desc, err := decodeDescriptor(decodeType, data)
			if err != nil {
				return err
			}
			return yaml.NewEncoder(cmd.OutOrStdout()).Encode(desc)
		},
	}
	decodeCmd.Flags().StringVar(&decodeType, "type", "", "Connector type (required)")
	_ = decodeCmd.MarkFlagRequired("type")

	cmd.AddCommand(getCmd, encodeCmd, decodeCmd)
	return cmd
}

func newConfigCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage client configuration files",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init FILE",
		Short: "Write a configuration file with every setting at its default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil && !force {
				return errors.New(errors.ErrorTypeValidation, path+" already exists; use --force to overwrite")
			}
			cfg := config.DefaultConfig()
			cfg.Endpoint = flags.endpoint
			if flags.logLevel != "" {
				cfg.Log.Level = flags.logLevel
			}
			if err := config.Save(path, cfg); err != nil {
				return errors.Wrap(err, errors.ErrorTypeConfig, "failed to write configuration")
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return err
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}

// encodeDescriptor fills a fresh descriptor of the named type from YAML and
// renders its wire JSON.
func encodeDescriptor(typeName string, data []byte) ([]byte, error) {
	t, err := core.ParseConnectorType(typeName)
	if err != nil {
		return nil, err
	}
	desc, err := registry.Create(t)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, desc); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid descriptor YAML")
	}
	return json.MarshalIndent(desc.ToJSONNode(), "", "  ")
}

func decodeDescriptor(typeName string, data []byte) (core.ConnectorConfig, error) {
	t, err := core.ParseConnectorType(typeName)
	if err != nil {
		return nil, err
	}
	node, err := core.ParseNode(data)
	if err != nil {
		return nil, err
	}
	return registry.Decode(t, node)
}

// readData resolves @file and @- references; anything else is used literally.
func readData(stdin io.Reader, ref string) ([]byte, error) {
	switch {
	case ref == "@-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "failed to read stdin")
		}
		return data, nil
	case strings.HasPrefix(ref, "@"):
		data, err := os.ReadFile(ref[1:]) //nolint:gosec // G304: path supplied by the user
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "failed to read "+ref[1:])
		}
		return data, nil
	default:
		return []byte(ref), nil
	}
}

// loadConfig reads the config file when one is given and applies flag overrides.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if flags.configFile != "" {
		loaded, err := config.LoadConfig(flags.configFile)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load configuration")
		}
		cfg = loaded
	}
	if flags.endpoint != "" {
		cfg.Endpoint = flags.endpoint
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	return cfg, nil
}

func withClient(ctx context.Context, flags *globalFlags, fn func(context.Context, *clients.Client) error) error {
	if ctx == nil { // not run through ExecuteContext
		ctx = context.Background()
	}
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize logger")
	}
	defer func() { _ = logger.Sync() }()

	if flags.trace {
		shutdown, err := observability.InitTracing(observability.DefaultTracingConfig())
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize tracing")
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("failed to flush spans", zap.Error(err))
			}
		}()
	}

	client, err := clients.NewClient(cfg)
	if err != nil {
		return err
	}
	return fn(ctx, client)
}
