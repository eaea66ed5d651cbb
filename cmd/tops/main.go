package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"talentops/internal/config"
	"talentops/internal/db"
	"talentops/internal/domain"
	"talentops/internal/engine"
	"talentops/internal/llm"
	"talentops/internal/migrate"
	"talentops/internal/monitor"
	"talentops/internal/notify"
	"talentops/internal/rag"
	"talentops/internal/repo"
	"talentops/internal/router"
	"talentops/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "tops",
	Short: "TalentOps CLI",
	Long: `TalentOps is a conversational HR operations assistant.
It resolves plain-language requests (leave, attendance, tasks, timesheets,
announcements) into permitted, validated, audited operations, drives each
task through a five-stage delivery lifecycle with approval gates, and
reminds assignees about stalled or due work.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TALENTOPS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("role", "consultant", "actor role")
	rootCmd.PersistentFlags().String("team-id", "", "actor team id")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("role", rootCmd.PersistentFlags().Lookup("role"))
	_ = viper.BindPFlag("team-id", rootCmd.PersistentFlags().Lookup("team-id"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(monitorCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(employeeCmd())
	rootCmd.AddCommand(orgCmd())
	rootCmd.AddCommand(notificationsCmd())
	rootCmd.AddCommand(dashboardCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage configuration"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default talentops.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send one message to the assistant",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return withRouter(cmd.Context(), func(ctx context.Context, rt router.Router) error {
				resp := rt.Route(ctx, engine.Request{
					Text:    text,
					Role:    viper.GetString("role"),
					ActorID: viper.GetString("actor-id"),
					TeamID:  viper.GetString("team-id"),
				})
				if viper.GetBool("json") {
					return printJSON(resp)
				}
				fmt.Println(resp.Message)
				return nil
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var devHeaders bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server and the task monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			logger := log.New(os.Stderr, "", log.LstdFlags)
			e := engine.New(conn, cfg, llmClient(cfg), logger)
			rt := router.Router{Engine: e, Retriever: rag.Unavailable{}, Client: llmClient(cfg), Log: logger}

			secret := cfg.Server.JWTSecret
			if env := os.Getenv("TALENTOPS_JWT_SECRET"); env != "" {
				secret = env
			}
			if secret == "" && !devHeaders {
				return fmt.Errorf("jwt secret is required; set server.jwt_secret, TALENTOPS_JWT_SECRET, or pass --dev-headers")
			}
			authCfg := server.AuthConfig{JWTSecret: secret, AllowDevHeaders: devHeaders, Logger: logger}
			handler, err := server.New(server.Config{Engine: e, Router: rt, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mon := monitor.New(e.Repo, notify.RepoSink{Repo: e.Repo}, cfg.Monitor, logger)
			sched := monitor.NewScheduler(mon, cfg.Monitor.Interval())
			go sched.Run(ctx)

			if addr == "" {
				addr = cfg.Server.Addr
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			fmt.Printf("Serving TalentOps API on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr from config)")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&devHeaders, "dev-headers", false, "accept X-Actor-Id/X-Role headers instead of JWT (dev only)")
	return cmd
}

func monitorCmd() *cobra.Command {
	mon := &cobra.Command{Use: "monitor", Short: "Task monitor"}
	mon.AddCommand(monitorRunCmd())
	mon.AddCommand(monitorStartCmd())
	return mon
}

func monitorRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one monitoring cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMonitor(cmd.Context(), func(ctx context.Context, m *monitor.Monitor) error {
				sent, err := m.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Sent %d reminder(s)\n", sent)
				return nil
			})
		},
	}
	return cmd
}

func monitorStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the monitor on its configured interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return withMonitor(cmd.Context(), func(ctx context.Context, m *monitor.Monitor) error {
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				monitor.NewScheduler(m, cfg.Monitor.Interval()).Run(ctx)
				return nil
			})
		},
	}
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Inspect tasks"}
	task.AddCommand(taskListCmd())
	task.AddCommand(taskHistoryCmd())
	return task
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				f.Limit = 100
				tasks, err := r.ListTasks(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Stage", "Sub-state", "Progress", "Assignee", "Due"})
				for _, t := range tasks {
					assignee := ""
					if t.AssignedTo != nil {
						assignee = *t.AssignedTo
					}
					progress := fmt.Sprintf("%d%%", domain.Progress(t.LifecycleState, t.SubState))
					tw.AppendRow(table.Row{t.ID, t.Title, t.Status, t.LifecycleState, t.SubState, progress, assignee, t.DueDate})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.AssignedTo, "assignee", "", "assignee filter")
	cmd.Flags().StringVar(&f.SubState, "sub-state", "", "sub-state filter")
	cmd.Flags().StringVar(&f.LifecycleState, "stage", "", "lifecycle stage filter")
	return cmd
}

func taskHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <task-id>",
		Short: "Show the audit history of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if _, err := r.GetTask(ctx, args[0]); err != nil {
					return err
				}
				entries, err := r.ListTaskHistory(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"At", "Action", "Stage", "Sub-state", "Actor", "Comment"})
				for _, h := range entries {
					stage := transition(h.FromLifecycle, h.ToLifecycle)
					sub := transition(h.FromSubState, h.ToSubState)
					tw.AppendRow(table.Row{h.CreatedAt, h.Action, stage, sub, h.ActorID, deref(h.Comment)})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func employeeCmd() *cobra.Command {
	emp := &cobra.Command{Use: "employee", Short: "Inspect employees"}
	emp.AddCommand(employeeListCmd())
	return emp
}

func employeeListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List employee profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				profiles, err := r.ListProfiles(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(profiles)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Email", "Role", "Leaves left"})
				for _, p := range profiles {
					tw.AppendRow(table.Row{p.ID, p.FullName, p.Email, p.Role, p.LeavesRemaining})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func orgCmd() *cobra.Command {
	org := &cobra.Command{Use: "org", Short: "Inspect teams and departments"}
	org.AddCommand(orgTeamsCmd())
	org.AddCommand(orgDepartmentsCmd())
	return org
}

func orgTeamsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teams",
		Short: "List teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				teams, err := r.ListTeams(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(teams)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Team", "Manager"})
				for _, t := range teams {
					tw.AppendRow(table.Row{t.ID, t.TeamName, t.ManagerID})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func orgDepartmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "departments",
		Short: "List departments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				departments, err := r.ListDepartments(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(departments)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Department"})
				for _, d := range departments {
					tw.AppendRow(table.Row{d.ID, d.DepartmentName})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func notificationsCmd() *cobra.Command {
	nt := &cobra.Command{Use: "notifications", Short: "My notifications"}
	nt.AddCommand(notificationsListCmd())
	nt.AddCommand(notificationsReadCmd())
	return nt
}

func notificationsListCmd() *cobra.Command {
	var unread bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications for the current actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListNotifications(ctx, viper.GetString("actor-id"), unread, 50)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"At", "Type", "Read", "Message"})
				for _, n := range items {
					tw.AppendRow(table.Row{n.CreatedAt, n.Type, n.IsRead, n.Message})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&unread, "unread", false, "only unread")
	return cmd
}

func notificationsReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Mark all notifications read",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.MarkNotificationsRead(ctx, viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func dashboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show workforce summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				counts, err := r.CountTasksByStatus(ctx)
				if err != nil {
					return err
				}
				pending, err := r.ListLeaves(ctx, "", "pending")
				if err != nil {
					return err
				}
				profiles, err := r.ListProfiles(ctx)
				if err != nil {
					return err
				}
				out := map[string]any{
					"task_counts":    counts,
					"pending_leaves": len(pending),
					"employees":      len(profiles),
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("Employees: %d\n", len(profiles))
				fmt.Printf("Pending leave requests: %d\n", len(pending))
				fmt.Println("Tasks:")
				for status, c := range counts {
					fmt.Printf("  %s: %d\n", status, c)
				}
				return nil
			})
		},
	}
	return cmd
}

// --- helpers ---

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func withRouter(ctx context.Context, fn func(context.Context, router.Router) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	logger := log.New(os.Stderr, "", log.LstdFlags)
	e := engine.New(conn, cfg, llmClient(cfg), logger)
	rt := router.Router{Engine: e, Retriever: rag.Unavailable{}, Client: llmClient(cfg), Log: logger}
	return fn(ctx, rt)
}

func withMonitor(ctx context.Context, fn func(context.Context, *monitor.Monitor) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	logger := log.New(os.Stderr, "", log.LstdFlags)
	return fn(ctx, monitor.New(r, notify.RepoSink{Repo: r}, cfg.Monitor, logger))
}

func llmClient(cfg *config.Config) llm.Client {
	if cfg.LLM.BaseURL == "" {
		return nil
	}
	timeout := time.Duration(cfg.LLM.TimeoutSec) * time.Second
	return llm.NewOpenAIClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Temperature, timeout)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func transition(from, to string) string {
	if from == "" && to == "" {
		return ""
	}
	if from == to {
		return to
	}
	return from + " -> " + to
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
