package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/hylla/tavla/internal/adapters/server"
	"github.com/hylla/tavla/internal/adapters/server/common"
	"github.com/hylla/tavla/internal/adapters/storage/sqlite"
	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/domain"
)

// capturedRequest records one request seen by a fake API.
type capturedRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

// newFakeAPI serves status for every request and records bodies.
func newFakeAPI(t *testing.T, status int, reply string) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var seen []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := capturedRequest{Method: r.Method, Path: r.URL.RequestURI()}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req.Body)
		}
		seen = append(seen, req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestSendRoutesEachMutationKind(t *testing.T) {
	task := domain.Task{ID: 5, Name: "milk"}
	cases := []struct {
		name     string
		mutation domain.Mutation
		path     string
		check    func(t *testing.T, body map[string]any)
	}{
		{
			name:     "remove board",
			mutation: domain.Mutation{Kind: domain.MutationRemoveBoard, BoardID: "b1"},
			path:     "/api/boards/removeBoard",
			check: func(t *testing.T, body map[string]any) {
				if body["id"] != "b1" {
					t.Fatalf("body = %#v", body)
				}
			},
		},
		{
			name:     "add task",
			mutation: domain.Mutation{Kind: domain.MutationAddTask, BoardID: "b1", Task: &task},
			path:     "/api/tasks/addTask",
			check: func(t *testing.T, body map[string]any) {
				newTask, _ := body["newTask"].(map[string]any)
				if body["boardId"] != "b1" || newTask["name"] != "milk" || newTask["id"] != float64(5) {
					t.Fatalf("body = %#v", body)
				}
			},
		},
		{
			name:     "remove task",
			mutation: domain.Mutation{Kind: domain.MutationRemoveTask, BoardID: "b1", TaskID: 5, Tasks: []domain.Task{}},
			path:     "/api/tasks/removeTask",
			check: func(t *testing.T, body map[string]any) {
				tasks, ok := body["tasks"].([]any)
				if body["taskId"] != float64(5) || !ok || len(tasks) != 0 {
					t.Fatalf("body = %#v", body)
				}
			},
		},
		{
			name:     "replace tasks",
			mutation: domain.Mutation{Kind: domain.MutationReplaceTasks, BoardID: "b1", Tasks: []domain.Task{{ID: 5, Name: "milk", Completed: true}}},
			path:     "/api/tasks/completeTask",
			check: func(t *testing.T, body map[string]any) {
				tasks, _ := body["tasks"].([]any)
				if len(tasks) != 1 || tasks[0].(map[string]any)["completed"] != true {
					t.Fatalf("body = %#v", body)
				}
			},
		},
		{
			name:     "rename task",
			mutation: domain.Mutation{Kind: domain.MutationRenameTask, BoardID: "b1", TaskID: 5, NewName: "oat milk"},
			path:     "/api/tasks/editTask",
			check: func(t *testing.T, body map[string]any) {
				if body["newName"] != "oat milk" || body["taskId"] != float64(5) {
					t.Fatalf("body = %#v", body)
				}
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, seen := newFakeAPI(t, http.StatusOK, `{"data":{}}`)
			client := New(srv.URL+"/api/", srv.Client())
			if err := client.Send(context.Background(), tc.mutation); err != nil {
				t.Fatalf("Send() error = %v", err)
			}
			if len(*seen) != 1 {
				t.Fatalf("requests = %d, want 1", len(*seen))
			}
			got := (*seen)[0]
			if got.Method != http.MethodPost || got.Path != tc.path {
				t.Fatalf("request = %s %s, want POST %s", got.Method, got.Path, tc.path)
			}
			tc.check(t, got.Body)
		})
	}
}

func TestSendUnknownKindIsPermanent(t *testing.T) {
	client := New("http://127.0.0.1:1", nil)
	err := client.Send(context.Background(), domain.Mutation{Kind: "nope", BoardID: "b1"})
	if !errors.Is(err, app.ErrPermanent) {
		t.Fatalf("Send() error = %v, want ErrPermanent", err)
	}
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		status    int
		permanent bool
	}{
		{http.StatusBadRequest, true},
		{http.StatusNotFound, true},
		{http.StatusRequestTimeout, false},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, false},
		{http.StatusBadGateway, false},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			srv, _ := newFakeAPI(t, tc.status, `{"error":{"code":"x","message":"nope"}}`)
			err := New(srv.URL, srv.Client()).Send(context.Background(), domain.Mutation{Kind: domain.MutationRemoveBoard, BoardID: "b1"})
			if !errors.Is(err, ErrUnexpectedStatus) {
				t.Fatalf("Send() error = %v, want ErrUnexpectedStatus", err)
			}
			if got := errors.Is(err, app.ErrPermanent); got != tc.permanent {
				t.Fatalf("permanent = %v, want %v (err %v)", got, tc.permanent, err)
			}
		})
	}
}

func TestAddBoardRequiresServerID(t *testing.T) {
	srv, _ := newFakeAPI(t, http.StatusCreated, `{"data":{"name":"x","tasks":[],"userId":"u1"}}`)
	_, err := New(srv.URL, srv.Client()).AddBoard(context.Background(), domain.Board{Name: "x", UserID: "u1"})
	if err == nil {
		t.Fatal("AddBoard() error = nil, want missing id error")
	}
}

// newLiveAPI starts the full board API over an in-memory database.
func newLiveAPI(t *testing.T) *httptest.Server {
	t.Helper()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	n := 0
	boards := common.NewAppServiceAdapter(app.NewService(repo, func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}))
	handler, _, err := server.NewHandler(server.Config{}, server.Dependencies{Boards: boards})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestSessionSyncsThroughOutboxToServer(t *testing.T) {
	ctx := context.Background()
	srv := newLiveAPI(t)
	client := New(srv.URL+"/api", srv.Client())

	outbox, err := sqlite.OpenOutbox(filepath.Join(t.TempDir(), "outbox.db"))
	if err != nil {
		t.Fatalf("OpenOutbox() error = %v", err)
	}
	t.Cleanup(func() { _ = outbox.Close() })
	queue := app.NewSyncQueue(outbox, client, nil, app.SyncConfig{})

	session, err := app.OpenSession(ctx, client, client, queue, "ada")
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	board, err := session.Boards().AddBoard(ctx, "Groceries", "")
	if err != nil {
		t.Fatalf("AddBoard() error = %v", err)
	}
	tasks, err := session.OpenBoard(board.ID)
	if err != nil {
		t.Fatalf("OpenBoard() error = %v", err)
	}
	milk, err := tasks.AddTask(ctx, "milk")
	if err != nil {
		t.Fatalf("AddTask(milk) error = %v", err)
	}
	eggs, err := tasks.AddTask(ctx, "eggs")
	if err != nil {
		t.Fatalf("AddTask(eggs) error = %v", err)
	}
	if err := tasks.CompleteTask(ctx, eggs.ID); err != nil {
		t.Fatalf("CompleteTask() error = %v", err)
	}
	if err := tasks.SubmitEditedTask(ctx, milk.ID, "oat milk"); err != nil {
		t.Fatalf("SubmitEditedTask() error = %v", err)
	}

	if n, _ := queue.Pending(ctx); n != 4 {
		t.Fatalf("Pending() = %d, want 4 before flush", n)
	}
	if err := queue.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	stored, err := client.ListBoards(ctx, session.User().ID)
	if err != nil {
		t.Fatalf("ListBoards() error = %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("boards = %d, want 1", len(stored))
	}
	want := tasks.Tasks()
	got := stored[0].Tasks
	if len(got) != len(want) {
		t.Fatalf("server tasks = %#v, want %#v", got, want)
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Name != want[i].Name || got[i].Completed != want[i].Completed {
			t.Fatalf("server task %d = %#v, want %#v", i, got[i], want[i])
		}
	}

	if err := session.Boards().RemoveBoard(ctx, board.ID); err != nil {
		t.Fatalf("RemoveBoard() error = %v", err)
	}
	if err := queue.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	stored, err = client.ListBoards(ctx, session.User().ID)
	if err != nil || len(stored) != 0 {
		t.Fatalf("ListBoards() = %#v, %v, want empty", stored, err)
	}
}

func TestQueueKeepsMutationsWhileServerIsDown(t *testing.T) {
	ctx := context.Background()
	srv := newLiveAPI(t)
	live := New(srv.URL+"/api", srv.Client())
	user, err := live.UserByUsername(ctx, "ada")
	if err != nil {
		t.Fatalf("UserByUsername() error = %v", err)
	}
	board, err := live.AddBoard(ctx, domain.Board{Name: "Home", Tasks: []domain.Task{}, UserID: user.ID})
	if err != nil {
		t.Fatalf("AddBoard() error = %v", err)
	}

	outbox, err := sqlite.OpenOutbox(filepath.Join(t.TempDir(), "outbox.db"))
	if err != nil {
		t.Fatalf("OpenOutbox() error = %v", err)
	}
	t.Cleanup(func() { _ = outbox.Close() })

	down := New("http://127.0.0.1:1/api", nil)
	queue := app.NewSyncQueue(outbox, down, nil, app.SyncConfig{})
	task := domain.Task{ID: 9, Name: "water plants"}
	if err := queue.Dispatch(ctx, domain.Mutation{Kind: domain.MutationAddTask, BoardID: board.ID, Task: &task}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if err := queue.Flush(ctx); err == nil {
		t.Fatal("Flush() error = nil, want connection failure")
	}
	if n, _ := queue.Pending(ctx); n != 1 {
		t.Fatalf("Pending() = %d, want 1", n)
	}

	recovered := app.NewSyncQueue(outbox, live, nil, app.SyncConfig{})
	if err := recovered.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	boards, err := live.ListBoards(ctx, user.ID)
	if err != nil || len(boards) != 1 || len(boards[0].Tasks) != 1 || boards[0].Tasks[0].ID != 9 {
		t.Fatalf("ListBoards() = %#v, %v", boards, err)
	}
}
