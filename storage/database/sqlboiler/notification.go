package boiledrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/notification"
)

const notificationColumns = `id, user_id, type, title, message, link, read_at, created_at`

type notificationRow struct {
	ID        string    `boil:"id"`
	UserID    string    `boil:"user_id"`
	Type      string    `boil:"type"`
	Title     string    `boil:"title"`
	Message   string    `boil:"message"`
	Link      string    `boil:"link"`
	ReadAt    null.Time `boil:"read_at"`
	CreatedAt time.Time `boil:"created_at"`
}

func (row notificationRow) unboil() notification.Notification {
	return notification.Notification{
		ID:        row.ID,
		UserID:    row.UserID,
		Type:      row.Type,
		Title:     row.Title,
		Message:   row.Message,
		Link:      row.Link,
		ReadAt:    timePtr(row.ReadAt),
		CreatedAt: row.CreatedAt.UTC(),
	}
}

type notificationRepository struct {
	baseRepository
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(exec core.DBExecutor) notification.Repository {
	return &notificationRepository{baseRepository{exec: exec}}
}

func (repo notificationRepository) CreateNotifications(
	ctx context.Context,
	notifs []notification.Notification,
	exec ...core.DBExecutor,
) ([]notification.Notification, error) {
	exe := repo.getExec(exec)
	created := make([]notification.Notification, 0, len(notifs))
	for _, n := range notifs {
		n.ID = newID()
		var row notificationRow
		err := bind(ctx, exe, &row,
			`INSERT INTO notification (`+notificationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING `+notificationColumns,
			n.ID, n.UserID, n.Type, n.Title, n.Message, n.Link, ptrTime(n.ReadAt), n.CreatedAt.UTC(),
		)
		if err != nil {
			return nil, errors.Wrap(err, "inserting notification")
		}
		created = append(created, row.unboil())
	}
	return created, nil
}

func (repo notificationRepository) QueryNotifications(
	ctx context.Context,
	filter notification.QueryFilter,
	exec ...core.DBExecutor,
) ([]notification.Notification, error) {
	if !validID(filter.UserID) {
		return []notification.Notification{}, nil
	}
	q := `SELECT ` + notificationColumns + ` FROM notification WHERE user_id = ?`
	args := []interface{}{filter.UserID}
	if filter.UnreadOnly {
		q += ` AND read_at IS NULL`
	}
	q += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var rows []notificationRow
	if err := bind(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		notifs = append(notifs, row.unboil())
	}
	return notifs, nil
}

func (repo notificationRepository) CountUnread(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error) {
	if !validID(userID) {
		return 0, nil
	}
	n, err := count(ctx, repo.getExec(exec), `SELECT count(*) FROM notification WHERE user_id = ? AND read_at IS NULL`, userID)
	if err != nil {
		return 0, errors.Wrap(err, "counting unread notifications")
	}
	return n, nil
}

// MarkRead keeps the first read time of an already read notification.
func (repo notificationRepository) MarkRead(
	ctx context.Context,
	id, userID string,
	at time.Time,
	exec ...core.DBExecutor,
) (notification.Notification, error) {
	if !validID(id) || !validID(userID) {
		return notification.Notification{}, notification.ErrNotFound
	}
	var row notificationRow
	err := bind(ctx, repo.getExec(exec), &row,
		`UPDATE notification SET read_at = COALESCE(read_at, ?) WHERE id = ? AND user_id = ? RETURNING `+notificationColumns,
		at.UTC(), id, userID,
	)
	if err != nil {
		return notification.Notification{}, trapNoRowsErr(err, notification.ErrNotFound, "marking notification read")
	}
	return row.unboil(), nil
}

func (repo notificationRepository) MarkAllRead(ctx context.Context, userID string, at time.Time, exec ...core.DBExecutor) (int, error) {
	if !validID(userID) {
		return 0, nil
	}
	cnt, err := execute(ctx, repo.getExec(exec),
		`UPDATE notification SET read_at = ? WHERE user_id = ? AND read_at IS NULL`, at.UTC(), userID)
	if err != nil {
		return 0, errors.Wrap(err, "marking notifications read")
	}
	return cnt, nil
}
