package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"research/internal/agent"
	"research/internal/rag"
	"research/internal/store"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func newProjectCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{Use: "project", Short: "Manage projects"}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a new project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			project, err := a.store.CreateProject(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("created project %s (%s)\n", project.Title, project.ID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			projects, err := a.store.ListProjects()
			if err != nil {
				return err
			}
			for _, p := range projects {
				fmt.Printf("%s  %s\n", dimStyle.Render(p.ID), p.Title)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "summary <project-id>",
		Short: "Show a project's contents by type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.store.GetProjectSummary(args[0])
			if err != nil {
				return err
			}
			fmt.Println(headerStyle.Render(fmt.Sprintf("%d nodes", summary.TotalNodes)))
			for nodeType, count := range summary.ByType {
				fmt.Printf("  %-10s %d\n", nodeType, count)
			}
			for _, title := range summary.RecentArtifacts {
				fmt.Println("  artifact:", title)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "export <project-id>",
		Short: "Export a project subgraph as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			export, err := a.store.ExportProject(args[0])
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(export)
		},
	})

	var relation string
	linkCmd := &cobra.Command{
		Use:   "link <project-id> <node-id>",
		Short: "Link a node into a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.store.LinkToProject(args[0], args[1], relation)
		},
	}
	linkCmd.Flags().StringVar(&relation, "relation", store.RelHasSource, "edge relation type")
	cmd.AddCommand(linkCmd)

	return cmd
}

func newIngestCmd(configPath *string) *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "ingest <url-or-pdf-path>",
		Short: "Ingest a web page or a local PDF into the knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			target := args[0]
			var source *store.Node
			if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
				source, err = a.ingestor.IngestURL(cmd.Context(), target)
			} else {
				source, err = a.ingestor.IngestPDF(cmd.Context(), target)
			}
			if err != nil {
				return err
			}

			if projectID != "" {
				if err := a.store.LinkToProject(projectID, source.ID, store.RelHasSource); err != nil {
					return err
				}
			}
			fmt.Printf("ingested %q as %s\n", source.Title, source.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "link the source into this project")
	return cmd
}

func newSearchCmd(configPath *string) *cobra.Command {
	var mode, projectID string
	var topK int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the knowledge base (fts, vector, or hybrid)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			query := strings.Join(args, " ")

			var scope []string
			if projectID != "" {
				scope, err = a.store.ProjectScope(projectID, store.DefaultScopeDepth)
				if err != nil {
					return err
				}
			}

			var results []*store.Node
			switch mode {
			case "fts":
				results, err = a.store.FTSSearch(query, topK, scope)
			case "vector":
				vec, embedErr := a.embedder.Embed(cmd.Context(), query)
				if embedErr != nil {
					return embedErr
				}
				results, err = a.store.VectorSearch(vec, topK, scope)
			default:
				vec, embedErr := a.embedder.Embed(cmd.Context(), query)
				if embedErr != nil {
					return embedErr
				}
				results, err = a.store.HybridSearch(query, vec, topK, scope)
			}
			if err != nil {
				return err
			}

			for _, n := range results {
				fmt.Printf("%s  [%s] %s\n", dimStyle.Render(n.ID), n.Type, n.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "hybrid", "search mode: fts, vector, hybrid")
	cmd.Flags().StringVar(&projectID, "project", "", "restrict results to this project")
	cmd.Flags().IntVar(&topK, "k", 10, "number of results")
	return cmd
}

func newRecallCmd(configPath *string) *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "recall <question>",
		Short: "Answer a question from the knowledge base with citations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			answer, err := a.rag.Recall(cmd.Context(), strings.Join(args, " "), projectID)
			if err != nil {
				return err
			}
			fmt.Println(answer)
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "restrict retrieval to this project")
	return cmd
}

func newChatCmd(configPath *string) *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive retrieval-grounded chat (streams tokens)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			var conv *store.Node
			if projectID != "" {
				conv, err = a.store.CreateConversation(projectID, "CLI chat")
				if err != nil {
					return err
				}
			}

			var history []store.Message
			reader := bufio.NewScanner(os.Stdin)
			fmt.Println(dimStyle.Render("ask away (ctrl-d to quit)"))
			for {
				fmt.Print("> ")
				if !reader.Scan() {
					return nil
				}
				question := strings.TrimSpace(reader.Text())
				if question == "" {
					continue
				}

				var answer strings.Builder
				for ev := range a.rag.ChatStream(cmd.Context(), question, history, projectID) {
					switch ev.Type {
					case rag.EventToken:
						fmt.Print(ev.Text)
						answer.WriteString(ev.Text)
					case rag.EventCitation:
						fmt.Println()
						for _, c := range ev.Nodes {
							fmt.Println(dimStyle.Render("  source: " + c.Title))
						}
					case rag.EventError:
						fmt.Println()
						fmt.Fprintln(os.Stderr, "error:", ev.Detail)
					case rag.EventDone:
						fmt.Println()
					}
				}

				turns := []store.Message{
					{Role: "user", Content: question},
					{Role: "assistant", Content: answer.String()},
				}
				history = append(history, turns...)
				if conv != nil {
					if _, err := a.store.AppendMessages(conv.ID, turns); err != nil {
						a.log.Warn("failed to persist conversation turn")
					}
				}
			}
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "scope retrieval and persist the transcript to this project")
	return cmd
}

func newAgentCmd(configPath *string) *cobra.Command {
	var projectID string

	run := &cobra.Command{
		Use:   "run <goal>",
		Short: "Run the autonomous research agent",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			goal := strings.Join(args, " ")
			researcher := a.newAgent()
			researcher.OnProgress(func(stage string, state agent.ResearchState) {
				fmt.Println(dimStyle.Render(fmt.Sprintf("[%s] iteration=%d urls=%d findings=%d",
					stage, state.Iteration, len(state.URLsFound), len(state.Findings))))
			})

			final, err := researcher.Run(cmd.Context(), goal)
			if err != nil {
				return err
			}

			if final.Report == "" {
				fmt.Println("agent finished without a report")
				return nil
			}

			if projectID != "" && final.ArtifactID != "" {
				if err := a.store.LinkToProject(projectID, final.ArtifactID, store.RelHasArtifact); err != nil {
					return err
				}
			}

			rendered, err := glamour.Render(final.Report, "dark")
			if err != nil {
				fmt.Println(final.Report)
				return nil
			}
			fmt.Print(rendered)
			return nil
		},
	}
	run.Flags().StringVar(&projectID, "project", "", "link the resulting artifact into this project")

	cmd := &cobra.Command{Use: "agent", Short: "Autonomous research agent"}
	cmd.AddCommand(run)
	return cmd
}

func newLibraryCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{Use: "library", Short: "Library utilities"}

	cmd.AddCommand(&cobra.Command{
		Use:   "watch <dir>",
		Short: "Auto-ingest PDFs dropped into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			err = a.ingestor.Watch(cmd.Context(), args[0])
			if err == context.Canceled {
				return nil
			}
			return err
		},
	})

	return cmd
}

func newStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.store.Stats()
			if err != nil {
				return err
			}
			for table, count := range stats {
				fmt.Printf("%-10s %d\n", table, count)
			}
			return nil
		},
	}
}
