// Package remote talks to a tavla board API over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hylla/tavla/internal/adapters/server/common"
	"github.com/hylla/tavla/internal/adapters/server/httpapi"
	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/domain"
)

// defaultTimeout bounds one request when the caller supplies no client.
const defaultTimeout = 10 * time.Second

// ErrUnexpectedStatus reports a non-2xx response.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Client wraps http.Client with the board API routes.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the API mounted at baseURL, e.g. http://127.0.0.1:8080/api.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    httpClient,
	}
}

// UserByUsername resolves one user.
func (c *Client) UserByUsername(ctx context.Context, username string) (domain.User, error) {
	var out common.DataEnvelope[common.UserPayload]
	if err := c.getJSON(ctx, "/users?username="+url.QueryEscape(username), &out); err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return common.UserFromPayload(out.Data), nil
}

// ListBoards returns one user's boards with their tasks.
func (c *Client) ListBoards(ctx context.Context, userID string) ([]domain.Board, error) {
	var out common.DataEnvelope[[]common.BoardPayload]
	if err := c.getJSON(ctx, "/boards?userId="+url.QueryEscape(userID), &out); err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	boards := make([]domain.Board, 0, len(out.Data))
	for _, b := range out.Data {
		boards = append(boards, common.BoardFromPayload(b))
	}
	return boards, nil
}

// AddBoard creates a board and returns the stored copy carrying the server id.
func (c *Client) AddBoard(ctx context.Context, board domain.Board) (domain.Board, error) {
	payload := common.BoardToPayload(board)
	payload.ID = ""
	var out common.DataEnvelope[common.BoardPayload]
	if err := c.postJSON(ctx, "/boards/addBoard", common.AddBoardRequest{NewBoard: payload}, &out); err != nil {
		return domain.Board{}, fmt.Errorf("add board: %w", err)
	}
	if strings.TrimSpace(out.Data.ID) == "" {
		return domain.Board{}, fmt.Errorf("add board: response carries no id")
	}
	return common.BoardFromPayload(out.Data), nil
}

// Send delivers one mutation to its endpoint. Rejections the server will
// never accept wrap app.ErrPermanent.
func (c *Client) Send(ctx context.Context, m domain.Mutation) error {
	path, body, err := route(m)
	if err != nil {
		return fmt.Errorf("send %s: %w", m.Kind, errors.Join(app.ErrPermanent, err))
	}
	if err := c.postJSON(ctx, path, body, nil); err != nil {
		return fmt.Errorf("send %s: %w", m.Kind, err)
	}
	return nil
}

// route maps a mutation onto its endpoint and request body.
func route(m domain.Mutation) (string, any, error) {
	switch m.Kind {
	case domain.MutationRemoveBoard:
		return "/boards/removeBoard", common.RemoveBoardRequest{ID: m.BoardID}, nil
	case domain.MutationAddTask:
		if m.Task == nil {
			return "", nil, domain.ErrInvalidID
		}
		return "/tasks/addTask", common.AddTaskRequest{
			NewTask: common.TaskToPayload(*m.Task),
			BoardID: m.BoardID,
		}, nil
	case domain.MutationRemoveTask:
		return "/tasks/removeTask", common.RemoveTaskRequest{
			TaskID:  m.TaskID,
			BoardID: m.BoardID,
			Tasks:   common.TasksToPayload(m.Tasks),
		}, nil
	case domain.MutationReplaceTasks:
		tasks := common.TasksToPayload(m.Tasks)
		if tasks == nil {
			tasks = []common.TaskPayload{}
		}
		return "/tasks/completeTask", common.CompleteTaskRequest{BoardID: m.BoardID, Tasks: tasks}, nil
	case domain.MutationRenameTask:
		return "/tasks/editTask", common.EditTaskRequest{
			TaskID:  m.TaskID,
			BoardID: m.BoardID,
			NewName: m.NewName,
		}, nil
	default:
		return "", nil, domain.ErrUnknownMutation
	}
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(body); err != nil {
		return errors.Join(app.ErrPermanent, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError classifies a failed response. 4xx other than 408 and 429 is permanent.
func statusError(resp *http.Response) error {
	var envelope httpapi.ErrorEnvelope
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
		msg = envelope.Error.Code + ": " + envelope.Error.Message
	}
	err := fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, msg)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.Join(app.ErrPermanent, app.ErrNotFound, err)
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusTooManyRequests:
		return err
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return errors.Join(app.ErrPermanent, err)
	default:
		return err
	}
}
