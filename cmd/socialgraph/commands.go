package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/narulaskaran/social-graph/application/commands"
	"github.com/narulaskaran/social-graph/application/queries"
	"github.com/narulaskaran/social-graph/application/services"
	"github.com/narulaskaran/social-graph/domain/core/valueobjects"
	"github.com/narulaskaran/social-graph/infrastructure/config"
	"github.com/narulaskaran/social-graph/infrastructure/di"
	"github.com/narulaskaran/social-graph/infrastructure/persistence/dynamodb"
)

// cli holds the flags shared by every command and the container they open
type cli struct {
	configPath string
	store      string
	logLevel   string

	cfg       *config.Config
	container *di.Container
	cleanup   func()
}

// execute runs the CLI with args and releases the container afterwards,
// whether or not the command failed
func execute(ctx context.Context, args []string, out io.Writer) error {
	c := &cli{}
	defer c.close()

	rootCmd := c.rootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)
	return rootCmd.ExecuteContext(ctx)
}

func (c *cli) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "socialgraph",
		Short:         "Administer social graph stores",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd.Context())
		},
	}
	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file (defaults to $CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&c.store, "store", "", "store backend override (memory, sqlite, postgres, badger, dynamodb, neo4j)")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level")

	rootCmd.AddCommand(
		c.migrateCmd(),
		c.createGraphCmd(),
		c.showCmd(),
		c.addCmd(),
		c.seedCmd(),
		c.deleteGraphCmd(),
		c.clearCmd(),
	)
	return rootCmd
}

func (c *cli) open(ctx context.Context) error {
	var err error
	if c.configPath != "" {
		c.cfg, err = config.LoadFile(c.configPath)
	} else {
		c.cfg, err = config.LoadConfig()
	}
	if err != nil {
		return err
	}
	if c.store != "" {
		c.cfg.Store.Backend = c.store
	}
	if c.logLevel != "" {
		c.cfg.LogLevel = c.logLevel
	}
	// The CLI is a single caller; throttling and bundle caching only get in the way
	c.cfg.RateLimit.RPS = 0
	c.cfg.Cache.Backend = config.CacheNone
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	c.container, c.cleanup, err = di.InitializeContainer(ctx, c.cfg)
	return err
}

func (c *cli) close() {
	if c.cleanup != nil {
		c.cleanup()
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema for the configured store",
		Long: `Relational and Neo4j stores create their schema when opened. For
DynamoDB the table is created if missing and awaited.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.Store.Backend == config.StoreDynamoDB {
				client, err := di.ProvideDynamoDBClient(cmd.Context(), c.cfg)
				if err != nil {
					return err
				}
				if err := dynamodb.EnsureTable(cmd.Context(), client, c.cfg.Store.DynamoDBTable); err != nil {
					return err
				}
			}
			if err := c.container.Store.Ping(cmd.Context()); err != nil {
				return err
			}
			c.container.Logger.Info("Schema ready", zap.String("backend", c.cfg.Store.Backend))
			fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", c.cfg.Store.Backend)
			return nil
		},
	}
}

func (c *cli) createGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-graph",
		Short: "Create an empty graph and print its share path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := c.container.CommandBus.Send(cmd.Context(), commands.CreateGraphCommand{})
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <graphID>",
		Short: "Print a graph with its profiles and connections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, err := c.container.QueryBus.Ask(cmd.Context(), queries.GetGraphBundleQuery{GraphID: args[0]})
			if err != nil {
				return err
			}
			return printJSON(cmd, bundle)
		},
	}
}

func (c *cli) addCmd() *cobra.Command {
	var (
		self     string
		connect  []string
		everyone bool
	)
	cmd := &cobra.Command{
		Use:   "add <graphID>",
		Short: "Add a person and their connections to a graph",
		Example: `  socialgraph add Zz9zZz9zZz9z --self "Alice Smith" --connect "Bob Jones" --connect "Carol Lee"
  socialgraph add Zz9zZz9zZz9z --self "Alice Smith" --connect "Bob Jones,Carol Lee" --everyone`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			selfPerson, err := parsePerson(self)
			if err != nil {
				return fmt.Errorf("--self: %w", err)
			}
			people := make([]services.Person, 0, len(connect))
			for _, name := range connect {
				p, err := parsePerson(name)
				if err != nil {
					return fmt.Errorf("--connect: %w", err)
				}
				people = append(people, p)
			}

			result, err := c.container.CommandBus.Send(cmd.Context(), commands.AddToGraphCommand{
				GraphID:         args[0],
				Self:            selfPerson,
				Connections:     people,
				ConnectEveryone: everyone,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().StringVar(&self, "self", "", `the submitting person, "First Last"`)
	cmd.Flags().StringSliceVar(&connect, "connect", nil, `a connection, "First Last" (repeatable)`)
	cmd.Flags().BoolVar(&everyone, "everyone", false, "connect every pair of people, not just self to each")
	_ = cmd.MarkFlagRequired("self")
	return cmd
}

func (c *cli) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create a sample graph holding a three person triangle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			created, err := c.container.CommandBus.Send(ctx, commands.CreateGraphCommand{})
			if err != nil {
				return err
			}
			graphID := created.(*commands.CreateGraphResult).Graph.ID

			_, err = c.container.CommandBus.Send(ctx, commands.AddToGraphCommand{
				GraphID: graphID,
				Self:    services.Person{FirstName: "Alice", LastName: "Smith"},
				Connections: []services.Person{
					{FirstName: "Bob", LastName: "Jones"},
					{FirstName: "Carol", LastName: "Lee"},
				},
				ConnectEveryone: true,
			})
			if err != nil {
				return err
			}

			bundle, err := c.container.QueryBus.Ask(ctx, queries.GetGraphBundleQuery{GraphID: graphID})
			if err != nil {
				return err
			}
			return printJSON(cmd, bundle)
		},
	}
}

func (c *cli) deleteGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-graph <graphID>",
		Short: "Delete a graph with its profiles and connections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.container.CommandBus.Send(cmd.Context(), commands.DeleteGraphCommand{GraphID: args[0]}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func (c *cli) clearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "DANGER: delete every graph, profile and connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear the %s store without --yes", c.cfg.Store.Backend)
			}
			if err := c.container.Store.ClearDatabase(cmd.Context()); err != nil {
				return err
			}
			c.container.Logger.Warn("Store cleared", zap.String("backend", c.cfg.Store.Backend))
			fmt.Fprintln(cmd.OutOrStdout(), "store cleared")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting all data")
	return cmd
}

func parsePerson(name string) (services.Person, error) {
	n, err := valueobjects.ParseFullName(name, 0)
	if err != nil {
		return services.Person{}, fmt.Errorf("%q must be a first and last name: %w", name, err)
	}
	return services.Person{FirstName: n.First(), LastName: n.Last()}, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
