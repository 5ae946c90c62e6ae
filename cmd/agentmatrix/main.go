// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/agentmatrix"
	"github.com/poiesic/agentmatrix/ai/openai"
	"github.com/poiesic/agentmatrix/config"
	"github.com/poiesic/agentmatrix/core"
	"github.com/poiesic/agentmatrix/fetch"
	"github.com/poiesic/agentmatrix/metrics"
	"github.com/poiesic/agentmatrix/synthesis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

// newProvider builds the completion provider. Tests replace it.
var newProvider = openai.NewProvider

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	withLogin := func(flags ...cli.Flag) []cli.Flag {
		return append([]cli.Flag{
			&cli.StringFlag{
				Name:     "tenant",
				Aliases:  []string{"t"},
				Usage:    "Tenant id",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "email",
				Aliases:  []string{"e"},
				Usage:    "Email of the acting user",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "Password of the acting user",
				EnvVars: []string{"AGENTMATRIX_PASSWORD"},
			},
		}, flags...)
	}

	return &cli.App{
		Name:  "agentmatrix",
		Usage: "Multi-tenant knowledge matrices for chat agents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Data directory (overrides DATA_DIR)",
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Storage backend, file or badger (overrides STORE_BACKEND)",
			},
			&cli.StringFlag{
				Name:  "metrics-textfile",
				Usage: "Write synthesis metrics to this file after the command",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "create-user",
				Usage:  "Create a user, or reset the password and role of an existing one",
				Action: createUserCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "tenant", Aliases: []string{"t"}, Usage: "Tenant id", Required: true},
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "User email", Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "User password", Required: true},
					&cli.StringFlag{Name: "role", Usage: "Role (user, admin)", Value: string(core.RoleUser)},
				},
			},
			{
				Name:   "create-agent",
				Usage:  "Create an agent (admins only)",
				Action: createAgentCommand,
				Flags: withLogin(
					&cli.StringFlag{Name: "name", Usage: "Agent name", Required: true},
					&cli.StringFlag{Name: "type", Usage: "Agent category (Personal, Corporate)", Value: string(core.CategoryPersonal)},
					&cli.StringFlag{Name: "specialty", Usage: "Core specialty of the agent"},
				),
			},
			{
				Name:   "list-agents",
				Usage:  "List the agents visible to the user",
				Action: listAgentsCommand,
				Flags:  withLogin(),
			},
			{
				Name:      "ingest",
				Usage:     "Synthesize a new knowledge matrix for an agent",
				ArgsUsage: "[FILE...]",
				Action:    ingestCommand,
				Flags: withLogin(
					&cli.StringFlag{Name: "agent", Aliases: []string{"a"}, Usage: "Agent id", Required: true},
					&cli.StringSliceFlag{Name: "url", Aliases: []string{"u"}, Usage: "URL to fetch (repeatable, at most 10 are used)"},
					&cli.Float64Flag{Name: "temperature", Usage: "Synthesis temperature", Value: agentmatrix.DefaultIngestTemperature},
				),
			},
			{
				Name:   "chat",
				Usage:  "Ask an agent a question",
				Action: chatCommand,
				Flags: withLogin(
					&cli.StringFlag{Name: "agent", Aliases: []string{"a"}, Usage: "Agent id", Required: true},
					&cli.StringFlag{Name: "conversation", Usage: "Continue an existing conversation"},
					&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "The question", Required: true},
				),
			},
			{
				Name:   "history",
				Usage:  "Print the messages of a conversation",
				Action: historyCommand,
				Flags: withLogin(
					&cli.StringFlag{Name: "conversation", Usage: "Conversation id", Required: true},
				),
			},
		},
	}
}

// session is an opened hub plus the ambient pieces commands share.
type session struct {
	hub      *agentmatrix.Hub
	registry *prometheus.Registry
	textfile string
}

func openSession(c *cli.Context) (*session, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if dir := c.String("data-dir"); dir != "" {
		cfg.Storage.DataDir = dir
	}
	if backend := c.String("backend"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	aiConfig := cfg.AIConfig()
	provider, err := newProvider(aiConfig)
	if err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	logger := slog.Default()
	registry := prometheus.NewRegistry()
	monitor := synthesis.MultiMonitor{
		metrics.NewSynthesisMetrics(registry),
		newProgressMonitor(c.App.ErrWriter),
	}

	hub, err := agentmatrix.NewHub(cfg.Storage.DataDir,
		agentmatrix.WithAIConfig(aiConfig),
		agentmatrix.WithProvider(provider),
		agentmatrix.WithBackend(cfg.Storage.Backend),
		agentmatrix.WithBudgets(cfg.GovernorBudgets()),
		agentmatrix.WithLogger(logger),
		agentmatrix.WithFetcher(fetch.NewHTTPFetcher(
			fetch.WithTimeout(cfg.Synthesis.URLTimeout),
			fetch.WithLogger(logger),
		)),
		agentmatrix.WithSynthesisOptions(
			synthesis.WithPoolSize(cfg.Synthesis.MapWorkers),
			synthesis.WithDeadline(cfg.Synthesis.Deadline),
			synthesis.WithTolerateMapFailures(cfg.Synthesis.TolerateMapFailures),
			synthesis.WithMonitor(monitor),
		),
	)
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("failed to open data directory %s: %w", cfg.Storage.DataDir, err)
	}

	return &session{hub: hub, registry: registry, textfile: c.String("metrics-textfile")}, nil
}

func (s *session) Close() error {
	if s.textfile != "" {
		if err := metrics.WriteTextfile(s.textfile, s.registry); err != nil {
			slog.Error("failed to write metrics", "file", s.textfile, "err", err)
		}
	}
	return s.hub.Close()
}

// withSession opens a session, runs fn and closes the session.
func withSession(c *cli.Context, fn func(ctx context.Context, s *session) error) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(c.Context, s)
}

// withPrincipal additionally authenticates the acting user.
func withPrincipal(c *cli.Context, fn func(ctx context.Context, s *session, p core.Principal) error) error {
	return withSession(c, func(ctx context.Context, s *session) error {
		p, err := s.hub.Login(ctx, c.String("tenant"), c.String("email"), c.String("password"))
		if err != nil {
			return err
		}
		return fn(ctx, s, p)
	})
}

func createUserCommand(c *cli.Context) error {
	role := core.Role(strings.ToLower(c.String("role")))
	if err := core.ValidateRole(role); err != nil {
		return err
	}
	return withSession(c, func(ctx context.Context, s *session) error {
		user, err := s.hub.Store().UpsertUser(ctx, c.String("tenant"), c.String("email"), c.String("password"), role)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\n", user.ID, user.Email, user.Role)
		return nil
	})
}

func createAgentCommand(c *cli.Context) error {
	category, err := core.ParseCategory(c.String("type"))
	if err != nil {
		return err
	}
	return withPrincipal(c, func(ctx context.Context, s *session, p core.Principal) error {
		agent, err := s.hub.CreateAgent(ctx, p, c.String("name"), category, c.String("specialty"))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\n", agent.ID, agent.Name, agent.Category)
		return nil
	})
}

func listAgentsCommand(c *cli.Context) error {
	return withPrincipal(c, func(ctx context.Context, s *session, p core.Principal) error {
		agents, err := s.hub.ListAgents(ctx, p)
		if err != nil {
			return err
		}
		for _, a := range agents {
			fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\tv%d\t%s\n", a.ID, a.Name, a.Category, a.MatrixVersion, a.Specialty)
		}
		return nil
	})
}

func ingestCommand(c *cli.Context) error {
	docs, err := loadDocuments(c.Args().Slice())
	if err != nil {
		return err
	}
	temperature := c.Float64("temperature")

	return withPrincipal(c, func(ctx context.Context, s *session, p core.Principal) error {
		res, err := s.hub.Ingest(ctx, p, c.String("agent"), agentmatrix.IngestRequest{
			Docs:        docs,
			URLs:        c.StringSlice("url"),
			Temperature: &temperature,
		})
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		fmt.Fprintf(c.App.Writer, "Agent %s now at matrix version %d\n\n%s\n", res.AgentID, res.MatrixVersion, res.MatrixPreview)
		return nil
	})
}

func chatCommand(c *cli.Context) error {
	return withPrincipal(c, func(ctx context.Context, s *session, p core.Principal) error {
		res, err := s.hub.Chat(ctx, p, agentmatrix.ChatRequest{
			AgentID:        c.String("agent"),
			ConversationID: c.String("conversation"),
			Message:        c.String("message"),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.ErrWriter, "conversation: %s\n", res.ConversationID)
		fmt.Fprintln(c.App.Writer, res.Answer)
		return nil
	})
}

func historyCommand(c *cli.Context) error {
	return withPrincipal(c, func(ctx context.Context, s *session, p core.Principal) error {
		msgs, err := s.hub.History(ctx, p, c.String("conversation"))
		if err != nil {
			return err
		}
		printHistory(c.App.Writer, msgs)
		return nil
	})
}

func printHistory(w io.Writer, msgs []core.Message) {
	for _, m := range msgs {
		fmt.Fprintf(w, "[%s] %s: %s\n", m.CreatedAt, strings.ToUpper(string(m.Role)), m.Content)
	}
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
