package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/hylla/tavla/internal/adapters/remote"
	serveradapter "github.com/hylla/tavla/internal/adapters/server"
	"github.com/hylla/tavla/internal/adapters/server/common"
	"github.com/hylla/tavla/internal/adapters/storage/rediscache"
	"github.com/hylla/tavla/internal/adapters/storage/sqlite"
	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/domain"
	"github.com/hylla/tavla/internal/tui"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// serveCommandRunner stores a package-level helper value.
var serveCommandRunner = serveradapter.Run

// exitFlushTimeout bounds the best-effort sync when the TUI closes.
const exitFlushTimeout = 3 * time.Second

func newServeCommand(opts *cliOptions) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and MCP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, opts, "serve", func(env *runtimeEnv) error {
				if strings.TrimSpace(bind) != "" {
					env.cfg.Server.Bind = bind
				}
				return runServe(cmd.Context(), env)
			})
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "listen address, overrides server.bind")
	return cmd
}

// runServe opens the board store and serves it until ctx is done.
func runServe(ctx context.Context, env *runtimeEnv) error {
	logger := env.logger
	logger.Info("opening sqlite repository", "db_path", env.cfg.Database.Path)
	repo, err := sqlite.Open(env.cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open sqlite repository: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.Warn("sqlite close failed", "db_path", env.cfg.Database.Path, "err", closeErr)
		}
	}()

	var store app.Repository = repo
	if addr := strings.TrimSpace(env.cfg.Cache.RedisAddr); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		defer func() { _ = client.Close() }()
		cache := rediscache.New(repo, client, env.cfg.Cache.TTL.Duration)
		if err := cache.Ping(ctx); err != nil {
			return fmt.Errorf("connect redis %q: %w", addr, err)
		}
		logger.Info("redis board cache enabled", "addr", addr, "ttl", env.cfg.Cache.TTL.Duration)
		store = cache
	}

	svc := app.NewService(store, uuid.NewString)
	return serveCommandRunner(ctx, serveradapter.Config{
		HTTPBind:      env.cfg.Server.Bind,
		APIEndpoint:   env.cfg.Server.APIEndpoint,
		MCPEndpoint:   env.cfg.Server.MCPEndpoint,
		ServerName:    "tavla",
		ServerVersion: version,
	}, serveradapter.Dependencies{
		Boards: common.NewAppServiceAdapter(svc),
		Logger: logger,
	})
}

// clientStack is the client side of a session: remote API, outbox, and sync queue.
type clientStack struct {
	client  *remote.Client
	outbox  *sqlite.Outbox
	queue   *app.SyncQueue
	session *app.Session

	dispatchErr error
}

// openClientStack opens the outbox and, when withSession is set, loads the user's boards.
func openClientStack(ctx context.Context, env *runtimeEnv, withSession bool) (*clientStack, error) {
	baseURL := strings.TrimRight(env.cfg.Remote.BaseURL, "/") + env.cfg.Server.APIEndpoint
	client := remote.New(baseURL, &http.Client{Timeout: env.cfg.Remote.Timeout.Duration})
	outbox, err := sqlite.OpenOutbox(env.cfg.Outbox.Path)
	if err != nil {
		return nil, fmt.Errorf("open outbox: %w", err)
	}
	queue := app.NewSyncQueue(outbox, client, time.Now, app.SyncConfig{
		MaxAttempts:  env.cfg.Sync.MaxAttempts,
		RetryInitial: env.cfg.Sync.RetryInitial.Duration,
		RetryMax:     env.cfg.Sync.RetryMax.Duration,
	})
	queue.OnFailure(func(entry app.OutboxEntry, err error) {
		env.logger.Warn("sync entry dropped", "seq", entry.Seq, "kind", entry.Mutation.Kind, "board_id", entry.Mutation.BoardID, "attempts", entry.Attempts, "err", err)
	})
	stack := &clientStack{client: client, outbox: outbox, queue: queue}
	env.logger.Debug("client stack ready", "base_url", baseURL, "outbox_path", env.cfg.Outbox.Path)
	if !withSession {
		return stack, nil
	}

	username := strings.TrimSpace(env.cfg.Identity.Username)
	if username == "" {
		_ = outbox.Close()
		return nil, errors.New("no username configured: pass --user, set TAVLA_USER, or set identity.username")
	}
	// Deliver what can be delivered first; anything still queued is replayed
	// onto the loaded boards so later edits build on it.
	if err := queue.Flush(ctx); err != nil {
		env.logger.Warn("sync before load incomplete", "err", err)
	}
	session, err := app.OpenSession(ctx, app.NewPendingOverlay(client, outbox), client, queue, username)
	if err != nil {
		_ = outbox.Close()
		return nil, err
	}
	session.WithDispatchErrorHandler(func(m domain.Mutation, err error) {
		env.logger.Error("queue mutation failed", "kind", m.Kind, "board_id", m.BoardID, "err", err)
		if stack.dispatchErr == nil {
			stack.dispatchErr = fmt.Errorf("queue %s: %w", m.Kind, err)
		}
	})
	stack.session = session
	return stack, nil
}

// Close closes the outbox.
func (s *clientStack) Close() error {
	return s.outbox.Close()
}

// settle pushes queued changes to the server. Delivery failures leave the
// changes queued and are reported, not returned.
func (s *clientStack) settle(ctx context.Context, out io.Writer) error {
	if s.dispatchErr != nil {
		return s.dispatchErr
	}
	if err := s.queue.Flush(ctx); err != nil {
		pending, _ := s.queue.Pending(ctx)
		_, _ = fmt.Fprintf(out, "queued: %d change(s) waiting for sync (%v)\n", pending, err)
	}
	return nil
}

// withClient runs fn against an opened client stack and closes it afterwards.
func withClient(cmd *cobra.Command, opts *cliOptions, command string, withSession bool, fn func(context.Context, *runtimeEnv, *clientStack) error) error {
	return withEnv(cmd, opts, command, func(env *runtimeEnv) error {
		ctx := cmd.Context()
		stack, err := openClientStack(ctx, env, withSession)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := stack.Close(); closeErr != nil {
				env.logger.Warn("outbox close failed", "err", closeErr)
			}
		}()
		return fn(ctx, env, stack)
	})
}

// runTUI runs the board screen with the sync worker in the background.
func runTUI(ctx context.Context, env *runtimeEnv) error {
	stack, err := openClientStack(ctx, env, true)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := stack.Close(); closeErr != nil {
			env.logger.Warn("outbox close failed", "err", closeErr)
		}
	}()

	failures := make(chan tui.SyncFailure, 16)
	report := func(f tui.SyncFailure) {
		select {
		case failures <- f:
		default:
		}
	}
	stack.queue.OnFailure(func(entry app.OutboxEntry, err error) {
		env.logger.Warn("sync entry dropped", "seq", entry.Seq, "kind", entry.Mutation.Kind, "board_id", entry.Mutation.BoardID, "err", err)
		report(tui.SyncFailure{Kind: string(entry.Mutation.Kind), BoardID: entry.Mutation.BoardID, Err: err.Error()})
	})
	stack.session.WithDispatchErrorHandler(func(m domain.Mutation, err error) {
		env.logger.Error("queue mutation failed", "kind", m.Kind, "board_id", m.BoardID, "err", err)
		report(tui.SyncFailure{Kind: string(m.Kind), BoardID: m.BoardID, Err: err.Error()})
	})

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := stack.queue.Run(runCtx); err != nil {
			env.logger.Warn("sync worker stopped", "err", err)
		}
	}()

	model := tui.NewModel(
		stack.session,
		tui.WithContext(runCtx),
		tui.WithSyncFailures(failures),
		tui.WithTitle("tavla · "+stack.session.User().Username),
	)
	env.logger.Info("command flow start", "command", "tui", "user", stack.session.User().Username)
	_, runErr := programFactory(model).Run()
	cancel()
	<-done

	flushCtx, flushCancel := context.WithTimeout(context.WithoutCancel(ctx), exitFlushTimeout)
	defer flushCancel()
	if err := stack.queue.Flush(flushCtx); err != nil {
		pending, _ := stack.queue.Pending(flushCtx)
		env.logger.Warn("changes left in outbox", "pending", pending, "err", err)
	}
	if runErr != nil {
		return fmt.Errorf("run tui program: %w", runErr)
	}
	return nil
}

func newBoardsCommand(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "boards",
		Aliases: []string{"board"},
		Short:   "List, add, and remove boards",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the user's boards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, opts, "boards list", true, func(_ context.Context, _ *runtimeEnv, stack *clientStack) error {
				tw := tabwriter.NewWriter(opts.stdout, 0, 4, 2, ' ', 0)
				for _, board := range stack.session.Boards().Boards() {
					_, _ = fmt.Fprintf(tw, "%s\t%s\t%d/%d\n", board.ID, board.Name, board.CompletedCount(), len(board.Tasks))
				}
				return tw.Flush()
			})
		},
	}

	var description string
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a board",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, "boards add", true, func(ctx context.Context, _ *runtimeEnv, stack *clientStack) error {
				board, err := stack.session.Boards().AddBoard(ctx, strings.Join(args, " "), description)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(opts.stdout, board.ID)
				return nil
			})
		},
	}
	add.Flags().StringVarP(&description, "description", "d", "", "board description (markdown)")

	remove := &cobra.Command{
		Use:     "rm BOARD_ID",
		Aliases: []string{"remove"},
		Short:   "Remove a board and its tasks",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, "boards rm", true, func(ctx context.Context, _ *runtimeEnv, stack *clientStack) error {
				if err := stack.session.Boards().RemoveBoard(ctx, args[0]); err != nil {
					return err
				}
				return stack.settle(ctx, opts.stdout)
			})
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}

func newTasksCommand(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "Work with the tasks of one board",
	}

	// onBoard opens args[0] and hands the task controller to fn.
	onBoard := func(command string, fn func(context.Context, *app.TaskListController, []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, command, true, func(ctx context.Context, _ *runtimeEnv, stack *clientStack) error {
				tasks, err := stack.session.OpenBoard(args[0])
				if err != nil {
					return err
				}
				if err := fn(ctx, tasks, args[1:]); err != nil {
					return err
				}
				return stack.settle(ctx, opts.stdout)
			})
		}
	}

	list := &cobra.Command{
		Use:   "list BOARD_ID",
		Short: "List tasks in display order",
		Args:  cobra.ExactArgs(1),
		RunE: onBoard("tasks list", func(_ context.Context, tasks *app.TaskListController, _ []string) error {
			tw := tabwriter.NewWriter(opts.stdout, 0, 4, 2, ' ', 0)
			for _, task := range tasks.Tasks() {
				mark := "[ ]"
				if task.Completed {
					mark = "[x]"
				}
				_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", task.ID, mark, task.Name)
			}
			return tw.Flush()
		}),
	}

	add := &cobra.Command{
		Use:   "add BOARD_ID NAME",
		Short: "Add a task to the top of the open section",
		Args:  cobra.MinimumNArgs(2),
		RunE: onBoard("tasks add", func(ctx context.Context, tasks *app.TaskListController, rest []string) error {
			task, err := tasks.AddTask(ctx, strings.Join(rest, " "))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(opts.stdout, task.ID)
			return nil
		}),
	}

	remove := &cobra.Command{
		Use:     "rm BOARD_ID TASK_ID",
		Aliases: []string{"remove"},
		Short:   "Remove a task",
		Args:    cobra.ExactArgs(2),
		RunE: onBoard("tasks rm", func(ctx context.Context, tasks *app.TaskListController, rest []string) error {
			id, err := parseTaskID(rest[0])
			if err != nil {
				return err
			}
			return tasks.RemoveTask(ctx, id)
		}),
	}

	done := &cobra.Command{
		Use:     "done BOARD_ID TASK_ID",
		Aliases: []string{"toggle"},
		Short:   "Toggle a task's completed state",
		Args:    cobra.ExactArgs(2),
		RunE: onBoard("tasks done", func(ctx context.Context, tasks *app.TaskListController, rest []string) error {
			id, err := parseTaskID(rest[0])
			if err != nil {
				return err
			}
			return tasks.CompleteTask(ctx, id)
		}),
	}

	rename := &cobra.Command{
		Use:   "rename BOARD_ID TASK_ID NAME",
		Short: "Rename a task",
		Args:  cobra.MinimumNArgs(3),
		RunE: onBoard("tasks rename", func(ctx context.Context, tasks *app.TaskListController, rest []string) error {
			id, err := parseTaskID(rest[0])
			if err != nil {
				return err
			}
			if !tasks.EditTask(id) {
				return fmt.Errorf("task %d: %w", id, app.ErrNotFound)
			}
			return tasks.SubmitEditedTask(ctx, id, strings.Join(rest[1:], " "))
		}),
	}

	move := &cobra.Command{
		Use:   "move BOARD_ID TASK_ID OVER_TASK_ID",
		Short: "Move a task to the position of another task",
		Args:  cobra.ExactArgs(3),
		RunE: onBoard("tasks move", func(ctx context.Context, tasks *app.TaskListController, rest []string) error {
			activeID, err := parseTaskID(rest[0])
			if err != nil {
				return err
			}
			overID, err := parseTaskID(rest[1])
			if err != nil {
				return err
			}
			return tasks.Reorder(ctx, activeID, overID)
		}),
	}

	cmd.AddCommand(list, add, remove, done, rename, move)
	return cmd
}

func newSyncCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Deliver queued changes and report the outbox state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, opts, "sync", false, func(ctx context.Context, _ *runtimeEnv, stack *clientStack) error {
				flushErr := stack.queue.Flush(ctx)
				pending, err := stack.queue.Pending(ctx)
				if err != nil {
					return fmt.Errorf("count pending: %w", err)
				}
				dead, err := stack.queue.Dead(ctx)
				if err != nil {
					return fmt.Errorf("list dead entries: %w", err)
				}
				_, _ = fmt.Fprintf(opts.stdout, "pending: %d\n", pending)
				_, _ = fmt.Fprintf(opts.stdout, "dead: %d\n", len(dead))
				for _, entry := range dead {
					_, _ = fmt.Fprintf(opts.stdout, "  #%d %s board=%s attempts=%d: %s\n", entry.Seq, entry.Mutation.Kind, entry.Mutation.BoardID, entry.Attempts, entry.LastError)
				}
				if flushErr != nil {
					return fmt.Errorf("sync: %w", flushErr)
				}
				return nil
			})
		},
	}
}

func parseTaskID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("task id %q: %w", raw, domain.ErrInvalidID)
	}
	return id, nil
}
