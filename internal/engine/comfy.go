package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/specialistvlad/facerig/internal/ctxlog"
	"github.com/specialistvlad/facerig/internal/fsutil"
	"github.com/specialistvlad/facerig/internal/workflow"
	"resty.dev/v3"
)

const defaultPollInterval = 500 * time.Millisecond

// Options configures a Comfy session.
type Options struct {
	// Address is the engine's host:port.
	Address string
	// ModelsDir is the engine's models root, used by ResolveWeights.
	ModelsDir string
	// WeightsBaseURL, when set, is where missing weights are downloaded from.
	WeightsBaseURL string
	// PollInterval is the delay between reachability probes in Connect.
	PollInterval time.Duration
	// DownloadConcurrency bounds parallel weight downloads.
	DownloadConcurrency int
}

// Comfy is a Session backed by a ComfyUI server.
type Comfy struct {
	opts     Options
	http     *resty.Client
	clientID string
	conn     *websocket.Conn
}

// NewComfy returns an unconnected session.
func NewComfy(opts Options) (*Comfy, error) {
	if opts.Address == "" {
		return nil, errors.New("engine address is required")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.DownloadConcurrency <= 0 {
		opts.DownloadConcurrency = 4
	}

	client := resty.New().
		SetBaseURL("http://"+opts.Address).
		SetHeader("Accept", "application/json")

	return &Comfy{
		opts:     opts,
		http:     client,
		clientID: uuid.NewString(),
	}, nil
}

// ClientID is the id the session registers on the engine's event stream.
func (c *Comfy) ClientID() string {
	return c.clientID
}

// Connect blocks until the engine answers on its HTTP API and then opens the
// event stream. Calling it on a connected session is a no-op.
func (c *Comfy) Connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	logger := ctxlog.FromContext(ctx).With("engine", c.opts.Address)

	for attempt := 1; ; attempt++ {
		res, err := c.http.R().SetContext(ctx).Get("/system_stats")
		if err == nil && res.StatusCode() == http.StatusOK {
			break
		}
		logger.Debug("Engine not reachable yet.", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("engine at %s not reachable: %w", c.opts.Address, ctx.Err())
		case <-time.After(c.opts.PollInterval):
		}
	}

	wsURL := url.URL{
		Scheme:   "ws",
		Host:     c.opts.Address,
		Path:     "/ws",
		RawQuery: url.Values{"clientId": {c.clientID}}.Encode(),
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to open engine event stream: %w", err)
	}
	c.conn = conn

	logger.Info("Connected to engine.", "client_id", c.clientID)
	return nil
}

type queueResponse struct {
	PromptID   string         `json:"prompt_id"`
	Number     int            `json:"number"`
	NodeErrors map[string]any `json:"node_errors"`
}

type event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type executingData struct {
	Node     *string `json:"node"`
	PromptID string  `json:"prompt_id"`
}

type errorData struct {
	PromptID         string `json:"prompt_id"`
	NodeID           string `json:"node_id"`
	NodeType         string `json:"node_type"`
	ExceptionType    string `json:"exception_type"`
	ExceptionMessage string `json:"exception_message"`
}

type progressData struct {
	Value    int    `json:"value"`
	Max      int    `json:"max"`
	PromptID string `json:"prompt_id"`
	Node     string `json:"node"`
}

// Execute queues g and blocks until the engine reports the prompt finished.
func (c *Comfy) Execute(ctx context.Context, g workflow.Graph) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	logger := ctxlog.FromContext(ctx)

	promptID, err := c.queue(ctx, g)
	if err != nil {
		return err
	}
	logger = logger.With("prompt_id", promptID)
	logger.Info("Prompt queued.")

	if err := c.wait(ctx, promptID); err != nil {
		return err
	}
	if err := c.checkHistory(ctx, promptID); err != nil {
		return err
	}

	logger.Info("Prompt finished.")
	return nil
}

func (c *Comfy) queue(ctx context.Context, g workflow.Graph) (string, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"prompt": g, "client_id": c.clientID}).
		Post("/prompt")
	if err != nil {
		return "", fmt.Errorf("failed to queue prompt: %w", err)
	}
	if res.IsError() {
		return "", fmt.Errorf("%w: %s: %s", ErrPromptRejected, res.Status(), res.String())
	}

	var queued queueResponse
	if err := json.Unmarshal([]byte(res.String()), &queued); err != nil {
		return "", fmt.Errorf("failed to decode queue response: %w", err)
	}
	if len(queued.NodeErrors) > 0 {
		return "", fmt.Errorf("%w: node errors: %v", ErrPromptRejected, queued.NodeErrors)
	}
	if queued.PromptID == "" {
		return "", fmt.Errorf("%w: no prompt id in response", ErrPromptRejected)
	}
	return queued.PromptID, nil
}

// wait reads the event stream until promptID completes or fails. A cancelled
// ctx unblocks the pending read; the stream is then unusable and dropped.
func (c *Comfy) wait(ctx context.Context, promptID string) error {
	logger := ctxlog.FromContext(ctx)
	conn := c.conn

	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			c.dropConn()
			if ctx.Err() != nil {
				return fmt.Errorf("execution abandoned: %w", ctx.Err())
			}
			return fmt.Errorf("engine event stream lost: %w", err)
		}
		if kind != websocket.TextMessage {
			// binary frames carry live previews
			continue
		}

		var ev event
		if err := json.Unmarshal(data, &ev); err != nil {
			logger.Warn("Ignoring undecodable engine event.", "error", err)
			continue
		}

		switch ev.Type {
		case "executing":
			var d executingData
			if err := json.Unmarshal(ev.Data, &d); err == nil && d.PromptID == promptID {
				if d.Node == nil {
					return nil
				}
				logger.Debug("Executing node.", "node", *d.Node)
			}
		case "execution_success":
			var d executingData
			if err := json.Unmarshal(ev.Data, &d); err == nil && d.PromptID == promptID {
				return nil
			}
		case "execution_error":
			var d errorData
			if err := json.Unmarshal(ev.Data, &d); err == nil && d.PromptID == promptID {
				msg := d.ExceptionMessage
				if d.ExceptionType != "" {
					msg = d.ExceptionType + ": " + msg
				}
				return &ExecutionError{PromptID: promptID, NodeID: d.NodeID, NodeType: d.NodeType, Message: msg}
			}
		case "execution_interrupted":
			var d errorData
			if err := json.Unmarshal(ev.Data, &d); err == nil && d.PromptID == promptID {
				return &ExecutionError{PromptID: promptID, NodeID: d.NodeID, NodeType: d.NodeType, Message: "interrupted"}
			}
		case "progress":
			var d progressData
			if err := json.Unmarshal(ev.Data, &d); err == nil {
				logger.Debug("Progress.", "node", d.Node, "value", d.Value, "max", d.Max)
			}
		}
	}
}

type historyEntry struct {
	Status struct {
		StatusStr string `json:"status_str"`
		Completed bool   `json:"completed"`
	} `json:"status"`
}

// checkHistory confirms the engine recorded the prompt as successful.
func (c *Comfy) checkHistory(ctx context.Context, promptID string) error {
	res, err := c.http.R().SetContext(ctx).Get("/history/" + url.PathEscape(promptID))
	if err != nil {
		return fmt.Errorf("failed to fetch prompt history: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("failed to fetch prompt history: %s", res.Status())
	}

	var history map[string]historyEntry
	if err := json.Unmarshal([]byte(res.String()), &history); err != nil {
		return fmt.Errorf("failed to decode prompt history: %w", err)
	}
	entry, ok := history[promptID]
	if !ok {
		return nil
	}
	if entry.Status.StatusStr == "error" {
		return &ExecutionError{PromptID: promptID, Message: "engine recorded status error"}
	}
	return nil
}

// ListScratchFiles returns every file under root.
func (c *Comfy) ListScratchFiles(_ context.Context, root string) ([]string, error) {
	return fsutil.ListFiles(root)
}

func (c *Comfy) dropConn() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Close releases the event stream and idle HTTP connections.
func (c *Comfy) Close() error {
	c.dropConn()
	return c.http.Close()
}
