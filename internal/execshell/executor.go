package execshell

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	loggerNotConfiguredMessageConstant        = "logger not configured"
	commandRunnerNotConfiguredMessageConstant = "command runner not configured"
	commandTimeoutErrorTemplateConstant       = "%s timed out after %s"
	defaultCommandTimeoutConstant             = 300 * time.Second
	externalToolGitStringConstant             = "git"
)

// CommandName identifies a supported executable.
type CommandName string

// Supported executables.
const (
	CommandGit CommandName = CommandName(externalToolGitStringConstant)
)

// CommandDetails describes a single tool invocation.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
}

// ShellCommand combines a CommandName with specific invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures the observable results of executing a command.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CommandRunner represents the ability to run shell commands.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

// CommandEventObserver receives lifecycle notifications for shell command execution.
type CommandEventObserver interface {
	// CommandStarted notifies observers that command execution is beginning.
	CommandStarted(command ShellCommand)
	// CommandCompleted notifies observers that command execution finished and supplies the result.
	CommandCompleted(command ShellCommand, result ExecutionResult)
	// CommandExecutionFailed reports unexpected failures prior to receiving an execution result.
	CommandExecutionFailed(command ShellCommand, failure error)
}

var (
	// ErrLoggerNotConfigured indicates the executor was constructed without a logger.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)
	// ErrCommandRunnerNotConfigured indicates the executor was constructed without a runner.
	ErrCommandRunnerNotConfigured = errors.New(commandRunnerNotConfiguredMessageConstant)
)

// CommandFailedError reports a command that completed with a non-zero exit code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error describes the command failure including captured standard error output.
func (failureError CommandFailedError) Error() string {
	formatter := CommandMessageFormatter{}
	return formatter.BuildFailureMessage(failureError.Command, failureError.Result)
}

// CommandExecutionError reports a command that could not be executed at all.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the execution failure.
func (executionError CommandExecutionError) Error() string {
	formatter := CommandMessageFormatter{}
	return formatter.BuildExecutionFailureMessage(executionError.Command, executionError.Cause)
}

// Unwrap exposes the underlying cause.
func (executionError CommandExecutionError) Unwrap() error {
	return executionError.Cause
}

// CommandTimedOutError reports a command terminated by the execution deadline.
type CommandTimedOutError struct {
	Command ShellCommand
	Timeout time.Duration
}

// Error describes the timeout.
func (timeoutError CommandTimedOutError) Error() string {
	formatter := CommandMessageFormatter{}
	return fmt.Sprintf(commandTimeoutErrorTemplateConstant, formatter.formatCommandLabel(timeoutError.Command), timeoutError.Timeout)
}

// ShellExecutor coordinates command execution with structured logging and bounded runtimes.
type ShellExecutor struct {
	logger         *zap.Logger
	runner         CommandRunner
	formatter      CommandMessageFormatter
	observers      []CommandEventObserver
	commandTimeout time.Duration
}

// NewShellExecutor constructs a ShellExecutor from the provided logger and runner.
func NewShellExecutor(logger *zap.Logger, runner CommandRunner) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if runner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}

	return &ShellExecutor{
		logger:         logger,
		runner:         runner,
		formatter:      CommandMessageFormatter{},
		commandTimeout: defaultCommandTimeoutConstant,
	}, nil
}

// RegisterObserver adds an additional observer for command lifecycle events.
func (executor *ShellExecutor) RegisterObserver(observer CommandEventObserver) {
	if executor == nil || observer == nil {
		return
	}
	executor.observers = append(executor.observers, observer)
}

// SetCommandTimeout overrides the default per-command execution ceiling.
func (executor *ShellExecutor) SetCommandTimeout(timeout time.Duration) {
	if executor == nil || timeout <= 0 {
		return
	}
	executor.commandTimeout = timeout
}

// Execute runs the supplied command, logging lifecycle events and converting failures into typed errors.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	if executionContext == nil {
		executionContext = context.Background()
	}

	executor.logger.Debug(executor.formatter.BuildStartedMessage(command))
	executor.notifyStarted(command)

	boundedContext, cancelExecution := context.WithTimeout(executionContext, executor.commandTimeout)
	defer cancelExecution()

	executionResult, runError := executor.runner.Run(boundedContext, command)
	if runError != nil {
		if errors.Is(runError, context.DeadlineExceeded) || errors.Is(boundedContext.Err(), context.DeadlineExceeded) {
			timeoutError := CommandTimedOutError{Command: command, Timeout: executor.commandTimeout}
			executor.logger.Error(executor.formatter.BuildExecutionFailureMessage(command, timeoutError))
			executor.notifyExecutionFailed(command, timeoutError)
			return ExecutionResult{}, timeoutError
		}

		executor.logger.Error(executor.formatter.BuildExecutionFailureMessage(command, runError))
		executor.notifyExecutionFailed(command, runError)
		return ExecutionResult{}, CommandExecutionError{Command: command, Cause: runError}
	}

	executor.notifyCompleted(command, executionResult)

	if executionResult.ExitCode != 0 {
		executor.logger.Debug(executor.formatter.BuildFailureMessage(command, executionResult))
		return executionResult, CommandFailedError{Command: command, Result: executionResult}
	}

	executor.logger.Debug(executor.formatter.BuildSuccessMessage(command, executionResult))
	return executionResult, nil
}

// ExecuteGit runs git with the provided details.
func (executor *ShellExecutor) ExecuteGit(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandGit, Details: details})
}

func (executor *ShellExecutor) notifyStarted(command ShellCommand) {
	for _, observer := range executor.observers {
		observer.CommandStarted(command)
	}
}

func (executor *ShellExecutor) notifyCompleted(command ShellCommand, result ExecutionResult) {
	for _, observer := range executor.observers {
		observer.CommandCompleted(command, result)
	}
}

func (executor *ShellExecutor) notifyExecutionFailed(command ShellCommand, failure error) {
	for _, observer := range executor.observers {
		observer.CommandExecutionFailed(command, failure)
	}
}
