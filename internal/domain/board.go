package domain

import "strings"

// Board is a named, ordered collection of tasks owned by one user.
type Board struct {
	ID          string
	Name        string
	Description string
	Tasks       []Task
	UserID      string
}

// NewBoard builds an unsaved board with an empty task sequence. The id is assigned by the server.
func NewBoard(name, description, userID string) (Board, error) {
	if IsBlank(name) {
		return Board{}, ErrBlankName
	}
	return Board{
		Name:        name,
		Description: description,
		Tasks:       []Task{},
		UserID:      strings.TrimSpace(userID),
	}, nil
}

// CompletedCount counts the board's completed tasks.
func (b Board) CompletedCount() int {
	return CompletedCount(b.Tasks)
}

// Clone returns a copy that shares no task storage with b.
func (b Board) Clone() Board {
	b.Tasks = CloneTasks(b.Tasks)
	return b
}

// User owns boards. Identity is established by an external session layer.
type User struct {
	ID       string
	Username string
}

// NewUser validates and constructs a user.
func NewUser(id, username string) (User, error) {
	id = strings.TrimSpace(id)
	username = strings.TrimSpace(username)
	if id == "" {
		return User{}, ErrInvalidID
	}
	if username == "" {
		return User{}, ErrInvalidUsername
	}
	return User{ID: id, Username: username}, nil
}
