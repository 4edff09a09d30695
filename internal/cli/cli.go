package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	internal_http "github.com/ndimoski/taskmirror/internal/http"
	"github.com/ndimoski/taskmirror/internal/log"
	internal_storage "github.com/ndimoski/taskmirror/internal/storage"
	"github.com/ndimoski/taskmirror/internal/sweeper"
	"github.com/ndimoski/taskmirror/pkg/dedup"
	"github.com/ndimoski/taskmirror/pkg/filter"
	"github.com/ndimoski/taskmirror/pkg/models"
	"github.com/ndimoski/taskmirror/pkg/service"
	"github.com/ndimoski/taskmirror/pkg/status"
	"github.com/ndimoski/taskmirror/pkg/storage"
)

func initStore(dbConnStr string) *internal_storage.PostgresStore {
	store, err := internal_storage.InitStore(dbConnStr)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize store: %v", err)
		os.Exit(1)
	}
	return store
}

func ownerFromFlags(cmd *cobra.Command) models.OwnerFilter {
	email, _ := cmd.Flags().GetString("email")
	uid, _ := cmd.Flags().GetString("uid")
	return models.OwnerFilter{Email: email, UID: uid}
}

func recordFromFlags(cmd *cobra.Command) (models.TaskRecord, error) {
	title, _ := cmd.Flags().GetString("title")
	dueStr, _ := cmd.Flags().GetString("due")
	originStr, _ := cmd.Flags().GetString("origin")
	due, err := time.Parse(models.DueDayLayout, dueStr)
	if err != nil {
		return models.TaskRecord{}, fmt.Errorf("invalid --due %q: expected %s", dueStr, models.DueDayLayout)
	}
	origin := models.TaskOrigin(originStr)
	if origin == "" {
		origin = models.SelfOrigin
	}
	return models.TaskRecord{Title: title, DueDate: due, Origin: origin}, nil
}

func newEngine(store storage.Store) *service.LifecycleEngine {
	return service.NewLifecycleEngine(store, dedup.New(), log.GetLogger())
}

// SetupCLI wires the task lifecycle commands onto the root command.
func SetupCLI(rootCmd *cobra.Command) {
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task in the partition owned by its origin",
		Run: func(cmd *cobra.Command, args []string) {
			store := storeFromCmd(cmd)
			defer store.Close()
			rec, err := recordFromFlags(cmd)
			if err != nil {
				fail(err)
			}
			rec.Description, _ = cmd.Flags().GetString("description")
			rec.AssignedTo, _ = cmd.Flags().GetString("assignee")
			priority, _ := cmd.Flags().GetString("priority")
			if priority != "" {
				rec.Priority = models.Priority(priority)
			}
			rec.Status = models.NotStartedTaskStatus
			rec.StartDate = time.Now()
			if err := newEngine(store).CreateTask(rec); err != nil {
				fail(err)
			}
			fmt.Printf("Created task '%s' (due %s)\n", rec.Title, models.DueDayFor(rec.DueDate))
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the filtered, ordered visible task set",
		Run: func(cmd *cobra.Command, args []string) {
			store := storeFromCmd(cmd)
			defer store.Close()
			owner := ownerFromFlags(cmd)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			view, err := service.NewTaskView(ctx, store, status.NewCatalog(), dedup.New(), log.GetLogger(), owner)
			if err != nil {
				fail(err)
			}
			defer view.Close()
			// Wait for the first delivery before reading the snapshot.
			select {
			case <-view.Changed():
			case <-time.After(5 * time.Second):
			}
			selfOnly, _ := cmd.Flags().GetBool("self")
			search, _ := cmd.Flags().GetString("search")
			statusLabel, _ := cmd.Flags().GetString("status")
			tasks := view.Snapshot(filter.Filters{
				SelfOnly:    selfOnly,
				Search:      search,
				StatusLabel: statusLabel,
				Today:       time.Now(),
			})
			if len(tasks) == 0 {
				fmt.Println("No tasks found.")
				return
			}
			for _, t := range tasks {
				label := t.StatusLabel
				if label == "" {
					label = string(t.Status)
				}
				fmt.Printf("- %s [%s] due %s assigned to %s\n", t.Title, label, models.DueDayFor(t.DueDate), t.AssignedTo)
			}
		},
	}

	setStatusCmd := &cobra.Command{
		Use:   "set-status",
		Short: "Transition a task to a new status",
		Run: func(cmd *cobra.Command, args []string) {
			store := storeFromCmd(cmd)
			defer store.Close()
			rec, err := recordFromFlags(cmd)
			if err != nil {
				fail(err)
			}
			next, _ := cmd.Flags().GetString("to")
			comment, _ := cmd.Flags().GetString("comment")
			engine := newEngine(store)
			pending, err := engine.Transition(rec, models.TaskStatus(next))
			if err != nil {
				fail(err)
			}
			if pending != nil {
				if err := pending.Confirm(comment); err != nil {
					pending.Cancel()
					fail(fmt.Errorf("completing requires --comment: %v", err))
				}
			}
			fmt.Printf("Task '%s' is now %s\n", rec.Title, next)
		},
	}

	setLabelCmd := &cobra.Command{
		Use:   "set-label",
		Short: "Set the free-form status label of a task",
		Run: func(cmd *cobra.Command, args []string) {
			store := storeFromCmd(cmd)
			defer store.Close()
			rec, err := recordFromFlags(cmd)
			if err != nil {
				fail(err)
			}
			label, _ := cmd.Flags().GetString("label")
			if err := newEngine(store).UpdateStatusLabel(rec, label); err != nil {
				fail(err)
			}
			fmt.Printf("Task '%s' label is now %q\n", rec.Title, label)
		},
	}

	setProgressCmd := &cobra.Command{
		Use:   "set-progress",
		Short: "Set the progress of an in-progress task",
		Run: func(cmd *cobra.Command, args []string) {
			store := storeFromCmd(cmd)
			defer store.Close()
			rec, err := recordFromFlags(cmd)
			if err != nil {
				fail(err)
			}
			rec.Status = models.InProgressTaskStatus
			raw, _ := cmd.Flags().GetString("percent")
			if err := newEngine(store).UpdateProgressText(rec, raw); err != nil {
				fail(err)
			}
			fmt.Printf("Progress updated for '%s'\n", rec.Title)
		},
	}

	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "Move a task to the archived partition",
		Run: func(cmd *cobra.Command, args []string) {
			store := storeFromCmd(cmd)
			defer store.Close()
			rec, err := recordFromFlags(cmd)
			if err != nil {
				fail(err)
			}
			if err := newEngine(store).Archive(rec); err != nil {
				fail(err)
			}
			fmt.Printf("Archived '%s'\n", rec.Title)
		},
	}

	unarchiveCmd := &cobra.Command{
		Use:   "unarchive",
		Short: "Move a task back to its home partition",
		Run: func(cmd *cobra.Command, args []string) {
			store := storeFromCmd(cmd)
			defer store.Close()
			rec, err := recordFromFlags(cmd)
			if err != nil {
				fail(err)
			}
			if err := newEngine(store).Unarchive(rec); err != nil {
				fail(err)
			}
			fmt.Printf("Unarchived '%s'\n", rec.Title)
		},
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the hygiene sweep, deleting known junk titles",
		Run: func(cmd *cobra.Command, args []string) {
			store := storeFromCmd(cmd)
			defer store.Close()
			owner := ownerFromFlags(cmd)
			if err := newEngine(store).HygieneSweep(owner); err != nil {
				fail(err)
			}
			fmt.Println("Hygiene sweep complete")
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the task view over HTTP with a periodic hygiene sweep",
		Run: func(cmd *cobra.Command, args []string) {
			store := storeFromCmd(cmd)
			defer store.Close()
			owner := ownerFromFlags(cmd)
			port, _ := cmd.Flags().GetString("port")
			sweepEvery, _ := cmd.Flags().GetDuration("sweep-every")

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			dd := dedup.New()
			engine := service.NewLifecycleEngine(store, dd, log.GetLogger())
			view, err := service.NewTaskView(ctx, store, status.NewCatalog(), dd, log.GetLogger(), owner)
			if err != nil {
				fail(err)
			}
			defer view.Close()

			sw := sweeper.New(engine, owner, sweepEvery, log.GetLogger())
			sw.Start()
			defer sw.Stop()

			if err := internal_http.StartServer(port, view, engine); err != nil {
				fail(err)
			}
		},
	}

	commands := []*cobra.Command{
		createCmd, listCmd, setStatusCmd, setLabelCmd, setProgressCmd,
		archiveCmd, unarchiveCmd, sweepCmd, serveCmd,
	}
	for _, c := range commands {
		c.Flags().String("db", "", "Database connection string")
		c.Flags().String("email", "", "Owner email for query scoping")
		c.Flags().String("uid", "", "Owner uid for query scoping")
	}
	for _, c := range []*cobra.Command{createCmd, setStatusCmd, setLabelCmd, setProgressCmd, archiveCmd, unarchiveCmd} {
		c.Flags().String("title", "", "Task title (part of the identity key)")
		c.Flags().String("due", "", "Due date yyyy-mm-dd (part of the identity key)")
		c.Flags().String("origin", string(models.SelfOrigin), "Task origin: SELF, ADMIN_SHARED or CLIENT_ASSIGNED")
	}
	createCmd.Flags().String("description", "", "Task description")
	createCmd.Flags().String("assignee", "", "Assignee email or uid")
	createCmd.Flags().String("priority", string(models.P3Priority), "Priority: P1, P2 or P3")
	listCmd.Flags().Bool("self", false, "Show self-created tasks instead of the admin/client set")
	listCmd.Flags().String("search", "", "Free-text search over title and description")
	listCmd.Flags().String("status", "", "Status label filter (also accepts All, Today's Task, Recurring Task)")
	setStatusCmd.Flags().String("to", "", "Target status")
	setStatusCmd.Flags().String("comment", "", "Completion comment (required when completing)")
	setLabelCmd.Flags().String("label", "", "Free-form status label")
	setProgressCmd.Flags().String("percent", "", "Progress percentage 0-100")
	serveCmd.Flags().String("port", "8080", "HTTP port")
	serveCmd.Flags().Duration("sweep-every", time.Hour, "Hygiene sweep interval")

	rootCmd.AddCommand(commands...)
}

func storeFromCmd(cmd *cobra.Command) *internal_storage.PostgresStore {
	dbConnStr, err := cmd.Flags().GetString("db")
	if err != nil || dbConnStr == "" {
		log.GetLogger().Errorf("Missing --db connection string")
		os.Exit(1)
	}
	return initStore(dbConnStr)
}

func fail(err error) {
	log.GetLogger().Errorf("%v", err)
	fmt.Println(err)
	os.Exit(1)
}
