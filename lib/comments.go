package lib

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/TecharoHQ/formguard/lib/store"
)

var (
	ErrEmptyComment   = errors.New("lib: comment is empty")
	ErrCommentTooLong = errors.New("lib: comment is too long")
	ErrBadThreadID    = errors.New("lib: thread id is invalid")
)

const (
	maxThreadIDLength = 128
	maxAuthorLength   = 64
)

// Comment is what the comment board stores per accepted submission.
type Comment struct {
	ID       string    `json:"id"`
	Author   string    `json:"author,omitempty"`
	Body     string    `json:"body"`
	PostedAt time.Time `json:"postedAt"`
}

func validThreadID(id string) error {
	if id == "" || len(id) > maxThreadIDLength || !utf8.ValidString(id) {
		return fmt.Errorf("%w: %q", ErrBadThreadID, id)
	}
	return nil
}

// newComment cleans up a submitted comment or explains why it can't be
// posted.
func newComment(author, body string, maxLength int, now time.Time) (Comment, error) {
	body = strings.TrimSpace(body)
	author = strings.TrimSpace(author)

	switch {
	case body == "":
		return Comment{}, ErrEmptyComment
	case utf8.RuneCountInString(body) > maxLength:
		return Comment{}, fmt.Errorf("%w: %d > %d characters", ErrCommentTooLong, utf8.RuneCountInString(body), maxLength)
	}

	if utf8.RuneCountInString(author) > maxAuthorLength {
		author = string([]rune(author)[:maxAuthorLength])
	}

	return Comment{
		ID:       uuid.NewString(),
		Author:   author,
		Body:     body,
		PostedAt: now.UTC(),
	}, nil
}

// loadThread returns the comments of a thread, oldest first. Threads nobody
// commented on yet are empty, not missing.
func (s *Server) loadThread(ctx context.Context, id string) ([]Comment, error) {
	comments, err := s.threads.Get(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("can't load thread %q: %w", id, err)
	}

	return comments, nil
}

// appendComment adds c to a thread and refreshes the thread's expiry. The
// append is atomic in the store, so instances sharing a backend never drop
// each other's comments.
func (s *Server) appendComment(ctx context.Context, id string, c Comment) error {
	if err := s.threads.Update(ctx, id, s.opts.Config.CommentTTL, func(comments []Comment) ([]Comment, error) {
		return append(comments, c), nil
	}); err != nil {
		return fmt.Errorf("can't store comment in thread %q: %w", id, err)
	}

	commentsStored.Inc()
	return nil
}
