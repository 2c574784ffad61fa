// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dar-workers/internal/common/errors"
	"dar-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Client wraps the Zeebe gRPC client with error mapping and a fixed-delay
// retry policy for process-engine requests.
type Client struct {
	client   zbc.Client
	commands commandSender
	config   *ClientConfig
}

// ClientConfig holds configuration for the Camunda/Zeebe client.
type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
	ProcessID              string
	RetryConfig            *RetryConfig
}

// RetryConfig is a bounded number of attempts with a constant pause between them.
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxAttempts: 3,
	Delay:       1 * time.Second,
}

// commandSender issues the two commands the application side needs.
type commandSender interface {
	createInstance(ctx context.Context, processID string, vars map[string]interface{}) error
	publishMessage(ctx context.Context, name, correlationKey string, vars map[string]interface{}) error
}

// NewClient creates a plaintext client for local setups.
func NewClient(address, processID string) (*Client, error) {
	return NewClientWithConfig(&ClientConfig{
		GatewayAddress:         address,
		UsePlaintextConnection: true,
		ConnectionTimeout:      10 * time.Second,
		RequestTimeout:         30 * time.Second,
		ProcessID:              processID,
		RetryConfig:            DefaultRetryConfig,
	})
}

// NewClientWithConfig dials the gateway and checks the topology.
func NewClientWithConfig(config *ClientConfig) (*Client, error) {
	if config.RetryConfig == nil {
		config.RetryConfig = DefaultRetryConfig
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectionTimeout)
	defer cancel()

	if _, err := zeebeClient.NewTopologyCommand().Send(ctx); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", config.GatewayAddress, err)
	}

	return &Client{
		client:   zeebeClient,
		commands: &zeebeCommands{client: zeebeClient},
		config:   config,
	}, nil
}

// GetClient returns the raw Zeebe client for job workers.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Publish delivers a workflow request. An initial submission starts a new
// process instance keyed by the application; every other kind is a message
// correlated on the application id.
func (c *Client) Publish(ctx context.Context, req models.WorkflowEngineRequest) error {
	vars := make(map[string]interface{}, len(req.Variables)+1)
	for k, v := range req.Variables {
		vars[k] = v
	}
	vars[models.VarApplicationID] = req.BusinessKey

	op := "publish " + string(req.Kind)
	_, err := c.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout())
		defer cancel()
		if req.Kind == models.RequestInitialSubmission {
			return nil, c.commands.createInstance(reqCtx, c.config.ProcessID, vars)
		}
		return nil, c.commands.publishMessage(reqCtx, string(req.Kind), req.BusinessKey, vars)
	}, op)
	if err != nil {
		return errors.NewWorkflowRequestFailedError(string(req.Kind), err)
	}
	return nil
}

// ExecuteWithRetry runs commandFunc up to MaxAttempts times with a fixed delay.
// Only transient errors are retried.
func (c *Client) ExecuteWithRetry(
	ctx context.Context,
	commandFunc func(context.Context) (interface{}, error),
	operationName string,
) (interface{}, error) {
	attempts := c.config.RetryConfig.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		result, err := commandFunc(ctx)
		if err == nil {
			return result, nil
		}
		if !isRetryableZeebeError(err) || attempt == attempts {
			return nil, c.mapZeebeError(err, operationName, attempt)
		}

		select {
		case <-time.After(c.config.RetryConfig.Delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("operation %s cancelled after %d attempts: %w", operationName, attempt, ctx.Err())
		}
	}
}

func (c *Client) requestTimeout() time.Duration {
	if c.config.RequestTimeout <= 0 {
		return 30 * time.Second
	}
	return c.config.RequestTimeout
}

func isRetryableZeebeError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, phrase := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"deadline exceeded",
		"unavailable",
		"unreachable",
		"broken pipe",
		"resource_exhausted",
	} {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// mapZeebeError converts Zeebe errors into standardized application errors.
func (c *Client) mapZeebeError(err error, operation string, attempts int) error {
	msg := err.Error()
	lowerMsg := strings.ToLower(msg)

	context := fmt.Sprintf("Zeebe operation '%s' failed", operation)
	if attempts > 1 {
		context += fmt.Sprintf(" after %d attempts", attempts)
	}
	wrapped := fmt.Errorf("%s: %s", context, msg)

	switch {
	case strings.Contains(lowerMsg, "timeout") || strings.Contains(lowerMsg, "deadline exceeded"):
		return errors.NewTimeoutError("zeebe", wrapped)
	case strings.Contains(lowerMsg, "not found"):
		return errors.NewResourceNotFoundError("zeebe", wrapped.Error())
	case strings.Contains(lowerMsg, "already exists"):
		return errors.NewBusinessRuleError(wrapped.Error(), "process instance already exists")
	case strings.Contains(lowerMsg, "permission denied") || strings.Contains(lowerMsg, "unauthenticated"):
		return errors.NewAuthenticationError(wrapped.Error())
	default:
		return errors.NewExternalServiceError("zeebe", wrapped)
	}
}

// HealthCheck performs a topology request against the broker.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}

type zeebeCommands struct {
	client zbc.Client
}

func (z *zeebeCommands) createInstance(ctx context.Context, processID string, vars map[string]interface{}) error {
	cmd, err := z.client.NewCreateInstanceCommand().
		BPMNProcessId(processID).
		LatestVersion().
		VariablesFromMap(vars)
	if err != nil {
		return fmt.Errorf("encode variables: %w", err)
	}
	_, err = cmd.Send(ctx)
	return err
}

func (z *zeebeCommands) publishMessage(ctx context.Context, name, correlationKey string, vars map[string]interface{}) error {
	cmd, err := z.client.NewPublishMessageCommand().
		MessageName(name).
		CorrelationKey(correlationKey).
		VariablesFromMap(vars)
	if err != nil {
		return fmt.Errorf("encode variables: %w", err)
	}
	_, err = cmd.Send(ctx)
	return err
}
