package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/CynnixSinn/Cynetics-CLI/internal/engine"
	"github.com/CynnixSinn/Cynetics-CLI/internal/model"
)

// ErrTaskNotCompleted is returned by task run when the execution reached a
// terminal state other than completed. The task record has already been
// printed; main turns this into a nonzero exit without an extra message.
var ErrTaskNotCompleted = errors.New("task did not complete")

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage and run tasks",
}

var (
	createName        string
	createDescription string
	createCommand     string
	createEnvironment string
	createTimeout     int
	createWorkDir     string
	createAllow       []string
)

var taskCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new task",
	RunE:  runTaskCreate,
}

var taskRunCmd = &cobra.Command{
	Use:   "run <id>",
	Short: "Execute a task and wait for it to finish",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskRun,
}

var taskGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a task record",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskGet,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runTaskList,
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a task record",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDelete,
}

var taskCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel an execution running in this process",
	Long: `Cancel an execution started by this process. Executions belong to the
process that started them, so a task running under the daemon must be
cancelled through the daemon's API (POST /v1/tasks/<id>/cancel), not here.`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskCancel,
}

var (
	listLimit  int
	listOffset int
)

func init() {
	taskCreateCmd.Flags().StringVar(&createName, "name", "", "task name")
	taskCreateCmd.Flags().StringVar(&createDescription, "description", "", "task description")
	taskCreateCmd.Flags().StringVar(&createCommand, "command", "", "shell command to run (required)")
	taskCreateCmd.Flags().StringVar(&createEnvironment, "environment", model.EnvLocal, "execution environment: local, sandbox, or container")
	taskCreateCmd.Flags().IntVar(&createTimeout, "timeout", 0, "execution timeout in seconds (0 = default)")
	taskCreateCmd.Flags().StringVar(&createWorkDir, "workdir", "", "working directory for local execution")
	taskCreateCmd.Flags().StringSliceVar(&createAllow, "allow", nil, "additional allowed path roots")
	_ = taskCreateCmd.MarkFlagRequired("command")

	taskListCmd.Flags().IntVar(&listLimit, "limit", 20, "maximum tasks to list")
	taskListCmd.Flags().IntVar(&listOffset, "offset", 0, "list offset")

	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskRunCmd)
	taskCmd.AddCommand(taskGetCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskDeleteCmd)
	taskCmd.AddCommand(taskCancelCmd)
}

func runTaskCreate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	task, err := a.engine.CreateTask(cmd.Context(), engine.Definition{
		Name:         createName,
		Description:  createDescription,
		Command:      createCommand,
		Environment:  createEnvironment,
		TimeoutS:     createTimeout,
		WorkingDir:   createWorkDir,
		AllowedPaths: createAllow,
	})
	if err != nil {
		return err
	}

	fmt.Println(task.ID)
	return nil
}

func runTaskRun(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	id := args[0]

	// Ctrl-C cancels the execution instead of killing the process outright,
	// so the task still lands in a terminal state.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		_ = a.engine.Cancel(context.Background(), id)
	}()

	// Stream output lines as they arrive.
	ch, unsub := a.engine.Broker().Subscribe(id)
	defer unsub()
	streamDone := make(chan struct{})
	go func() {
		defer close(streamDone)
		for line := range ch {
			fmt.Println(line)
		}
	}()

	task, err := a.engine.ExecuteTask(context.Background(), id)
	if err != nil {
		return err
	}
	<-streamDone

	printTask(task)
	if task.Status != model.StatusCompleted {
		return ErrTaskNotCompleted
	}
	return nil
}

func runTaskGet(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	task, err := a.engine.GetTask(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printTask(task)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	tasks, total, err := a.engine.ListTasks(cmd.Context(), listLimit, listOffset)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tENVIRONMENT\tSTATUS\tCREATED")
	for _, task := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			task.ID,
			task.Name,
			task.Environment,
			task.Status,
			task.CreatedAt.Format(time.RFC3339),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("%d of %d tasks\n", len(tasks), total)
	return nil
}

func runTaskCancel(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	return a.engine.Cancel(cmd.Context(), args[0])
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	return a.engine.DeleteTask(cmd.Context(), args[0])
}

// printTask writes the task record as indented JSON.
func printTask(task *model.Task) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(task); err != nil {
		fmt.Fprintf(os.Stderr, "encode task: %v\n", err)
	}
}
