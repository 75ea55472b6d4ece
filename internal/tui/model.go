package tui

import (
	"context"
	"errors"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/atotto/clipboard"
	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/domain"
)

// Session is the board session the model drives.
type Session interface {
	User() domain.User
	Boards() *app.BoardListController
	OpenBoard(string) (*app.TaskListController, error)
	CloseBoard()
}

// screen selects the active view.
type screen int

const (
	screenBoards screen = iota
	screenTasks
)

// inputMode represents a text-entry overlay.
type inputMode int

const (
	modeNone inputMode = iota
	modeNewBoard
	modeNewTask
	modeRenameTask
)

// Model is the Bubble Tea model for the boards and tasks views.
type Model struct {
	ctx     context.Context
	session Session

	ready  bool
	width  int
	height int
	title  string
	status string

	help help.Model
	keys keyMap
	md   *markdownRenderer

	screen        screen
	selectedBoard int
	board         domain.Board
	tasks         *app.TaskListController
	selectedTask  int

	mode        inputMode
	nameInput   textinput.Model
	descInput   textinput.Model
	formFocus   int
	editingTask int64
	pending     bool

	failures <-chan SyncFailure
	copyText func(string) error
}

// boardAddedMsg carries the outcome of an awaited board creation.
type boardAddedMsg struct {
	board domain.Board
	err   error
}

// syncFailedMsg carries one failure from the sync queue.
type syncFailedMsg struct {
	failure SyncFailure
}

// NewModel constructs a model over session.
func NewModel(session Session, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		ctx:       context.Background(),
		session:   session,
		title:     "tavla",
		help:      h,
		keys:      newKeyMap(),
		md:        &markdownRenderer{},
		nameInput: newModalInput("name: ", "board or task name", "", 200),
		descInput: newModalInput("description: ", "optional, markdown", "", 2000),
		copyText:  clipboard.WriteAll,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init starts listening for sync failures.
func (m Model) Init() tea.Cmd {
	return m.waitForSyncFailure()
}

// Update applies one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case boardAddedMsg:
		m.pending = false
		if msg.err != nil {
			if !isValidationError(msg.err) {
				m.status = "add board failed: " + msg.err.Error()
			}
			return m, nil
		}
		m.mode = modeNone
		m.selectedBoard = m.boardIndex(msg.board.ID)
		m.status = "board created"
		return m, nil

	case syncFailedMsg:
		m.status = "sync failed: " + describeFailure(msg.failure)
		return m, m.waitForSyncFailure()

	case tea.KeyPressMsg:
		if m.mode != modeNone {
			return m.handleInputModeKey(msg)
		}
		if m.screen == screenTasks {
			return m.handleTasksKey(msg)
		}
		return m.handleBoardsKey(msg)

	default:
		return m, nil
	}
}

// waitForSyncFailure blocks on the failure channel.
func (m Model) waitForSyncFailure() tea.Cmd {
	ch := m.failures
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		failure, ok := <-ch
		if !ok {
			return nil
		}
		return syncFailedMsg{failure: failure}
	}
}

// handleBoardsKey handles keys on the board list.
func (m Model) handleBoardsKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	boards := m.session.Boards().Boards()
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.up):
		m.selectedBoard = clamp(m.selectedBoard-1, 0, len(boards)-1)
	case key.Matches(msg, m.keys.down):
		m.selectedBoard = clamp(m.selectedBoard+1, 0, len(boards)-1)
	case key.Matches(msg, m.keys.newItem):
		cmd := m.startBoardForm()
		return m, cmd
	case key.Matches(msg, m.keys.deleteItem):
		if len(boards) == 0 {
			return m, nil
		}
		board := boards[clamp(m.selectedBoard, 0, len(boards)-1)]
		if err := m.session.Boards().RemoveBoard(m.ctx, board.ID); err != nil {
			m.status = "delete board failed: " + err.Error()
			return m, nil
		}
		m.selectedBoard = clamp(m.selectedBoard, 0, len(boards)-2)
		m.status = "board deleted"
	case key.Matches(msg, m.keys.open):
		if len(boards) == 0 {
			return m, nil
		}
		board := boards[clamp(m.selectedBoard, 0, len(boards)-1)]
		tasks, err := m.session.OpenBoard(board.ID)
		if err != nil {
			m.status = "open board failed: " + err.Error()
			return m, nil
		}
		m.board = board
		m.tasks = tasks
		m.selectedTask = 0
		m.screen = screenTasks
		m.status = ""
	}
	return m, nil
}

// handleTasksKey handles keys on the open board.
func (m Model) handleTasksKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	tasks := m.tasks.Tasks()
	selected, hasSelected := taskAt(tasks, m.selectedTask)
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.back):
		m.session.CloseBoard()
		m.tasks = nil
		m.screen = screenBoards
		m.selectedBoard = m.boardIndex(m.board.ID)
		m.status = ""
	case key.Matches(msg, m.keys.up):
		m.selectedTask = clamp(m.selectedTask-1, 0, len(tasks)-1)
	case key.Matches(msg, m.keys.down):
		m.selectedTask = clamp(m.selectedTask+1, 0, len(tasks)-1)
	case key.Matches(msg, m.keys.newItem):
		cmd := m.startTaskForm()
		return m, cmd
	case !hasSelected:
		return m, nil
	case key.Matches(msg, m.keys.complete):
		if err := m.tasks.CompleteTask(m.ctx, selected.ID); err != nil {
			m.status = "complete failed: " + err.Error()
			return m, nil
		}
		m.followTask(selected.ID)
	case key.Matches(msg, m.keys.deleteItem):
		if err := m.tasks.RemoveTask(m.ctx, selected.ID); err != nil {
			m.status = "delete failed: " + err.Error()
			return m, nil
		}
		m.selectedTask = clamp(m.selectedTask, 0, len(tasks)-2)
	case key.Matches(msg, m.keys.edit):
		if !m.tasks.EditTask(selected.ID) {
			return m, nil
		}
		cmd := m.startRenameForm(selected)
		return m, cmd
	case key.Matches(msg, m.keys.moveUp):
		if over, ok := taskAt(tasks, m.selectedTask-1); ok {
			return m.reorder(selected.ID, over.ID)
		}
	case key.Matches(msg, m.keys.moveDown):
		if over, ok := taskAt(tasks, m.selectedTask+1); ok {
			return m.reorder(selected.ID, over.ID)
		}
	case key.Matches(msg, m.keys.copyName):
		if err := m.copyText(selected.Name); err != nil {
			m.status = "copy failed: " + err.Error()
			return m, nil
		}
		m.status = "copied task name"
	}
	return m, nil
}

// reorder moves activeID onto overID and keeps the cursor on the moved task.
func (m Model) reorder(activeID, overID int64) (tea.Model, tea.Cmd) {
	if err := m.tasks.Reorder(m.ctx, activeID, overID); err != nil {
		m.status = "move failed: " + err.Error()
		return m, nil
	}
	m.followTask(activeID)
	return m, nil
}

// handleInputModeKey handles keys while a form is open.
func (m Model) handleInputModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case msg.Code == tea.KeyEscape || msg.String() == "esc":
		return m.cancelInput(), nil
	case msg.Code == tea.KeyTab || msg.String() == "tab":
		if m.mode == modeNewBoard {
			cmd := m.focusFormField(1 - m.formFocus)
			return m, cmd
		}
		return m, nil
	case msg.Code == tea.KeyEnter || msg.String() == "enter":
		return m.submitInput()
	}

	var cmd tea.Cmd
	if m.mode == modeNewBoard && m.formFocus == 1 {
		m.descInput, cmd = m.descInput.Update(msg)
		return m, cmd
	}
	m.nameInput, cmd = m.nameInput.Update(msg)
	return m, cmd
}

// submitInput applies the open form. Blank names keep the form open without a message.
func (m Model) submitInput() (tea.Model, tea.Cmd) {
	name := m.nameInput.Value()
	switch m.mode {
	case modeNewBoard:
		if m.pending || domain.IsBlank(name) {
			return m, nil
		}
		m.pending = true
		m.status = "creating board..."
		return m, m.addBoardCmd(name, m.descInput.Value())
	case modeNewTask:
		task, err := m.tasks.AddTask(m.ctx, name)
		if err != nil {
			if !isValidationError(err) {
				m.status = "add task failed: " + err.Error()
			}
			return m, nil
		}
		m.mode = modeNone
		m.followTask(task.ID)
	case modeRenameTask:
		if err := m.tasks.SubmitEditedTask(m.ctx, m.editingTask, name); err != nil {
			if !isValidationError(err) {
				m.status = "rename failed: " + err.Error()
			}
			return m, nil
		}
		m.mode = modeNone
		m.editingTask = 0
	}
	return m, nil
}

// cancelInput closes the open form, leaving edit mode on the task being renamed.
func (m Model) cancelInput() Model {
	if m.mode == modeRenameTask && m.tasks != nil {
		if task, ok := m.tasks.Task(m.editingTask); ok && task.Edit {
			m.tasks.EditTask(m.editingTask)
		}
		m.editingTask = 0
	}
	m.mode = modeNone
	m.pending = false
	m.nameInput.Blur()
	m.descInput.Blur()
	return m
}

// addBoardCmd awaits the server-side board creation.
func (m Model) addBoardCmd(name, description string) tea.Cmd {
	ctx := m.ctx
	boards := m.session.Boards()
	return func() tea.Msg {
		board, err := boards.AddBoard(ctx, name, description)
		return boardAddedMsg{board: board, err: err}
	}
}

func (m *Model) startBoardForm() tea.Cmd {
	m.mode = modeNewBoard
	m.nameInput = newModalInput("name: ", "board name", "", 200)
	m.descInput = newModalInput("description: ", "optional, markdown", "", 2000)
	return m.focusFormField(0)
}

func (m *Model) startTaskForm() tea.Cmd {
	m.mode = modeNewTask
	m.nameInput = newModalInput("task: ", "what needs doing", "", 200)
	m.formFocus = 0
	return m.nameInput.Focus()
}

func (m *Model) startRenameForm(task domain.Task) tea.Cmd {
	m.mode = modeRenameTask
	m.editingTask = task.ID
	m.nameInput = newModalInput("rename: ", "task name", task.Name, 200)
	m.formFocus = 0
	return m.nameInput.Focus()
}

// focusFormField focuses one board form input.
func (m *Model) focusFormField(idx int) tea.Cmd {
	m.formFocus = idx
	if idx == 1 {
		m.nameInput.Blur()
		return m.descInput.Focus()
	}
	m.descInput.Blur()
	return m.nameInput.Focus()
}

// followTask moves the cursor to task id.
func (m *Model) followTask(id int64) {
	if m.tasks == nil {
		return
	}
	if idx := domain.IndexOfTask(m.tasks.Tasks(), id); idx >= 0 {
		m.selectedTask = idx
	}
}

// boardIndex returns the list position of board id, or the current selection.
func (m Model) boardIndex(id string) int {
	for i, b := range m.session.Boards().Boards() {
		if b.ID == id {
			return i
		}
	}
	return m.selectedBoard
}

func newModalInput(prompt, placeholder, value string, limit int) textinput.Model {
	in := textinput.New()
	in.Prompt = prompt
	in.Placeholder = placeholder
	in.CharLimit = limit
	if value != "" {
		in.SetValue(value)
	}
	return in
}

func taskAt(tasks []domain.Task, idx int) (domain.Task, bool) {
	if idx < 0 || idx >= len(tasks) {
		return domain.Task{}, false
	}
	return tasks[idx], true
}

// isValidationError reports input errors the UI ignores silently.
func isValidationError(err error) bool {
	return errors.Is(err, domain.ErrBlankName) || errors.Is(err, domain.ErrInvalidID)
}

func describeFailure(f SyncFailure) string {
	parts := make([]string, 0, 3)
	if f.Kind != "" {
		parts = append(parts, f.Kind)
	}
	if f.BoardID != "" {
		parts = append(parts, "board "+f.BoardID)
	}
	out := strings.Join(parts, " on ")
	if f.Err == "" {
		return out
	}
	if out == "" {
		return f.Err
	}
	return out + ": " + f.Err
}

// clamp bounds v to [minV, maxV], returning minV for an empty range.
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}
