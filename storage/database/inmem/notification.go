package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotifications(
	ctx context.Context,
	notifs []notification.Notification,
	exec ...core.DBExecutor,
) ([]notification.Notification, error) {
	defer repo.db.lock(exec)()

	created := make([]notification.Notification, 0, len(notifs))
	for _, n := range notifs {
		n.ID = newID()
		repo.db.tables.notifications[n.ID] = n
		created = append(created, n)
	}
	return created, nil
}

func (repo *notificationRepository) QueryNotifications(
	ctx context.Context,
	filter notification.QueryFilter,
	exec ...core.DBExecutor,
) ([]notification.Notification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	notifs := make([]notification.Notification, 0)
	for _, n := range repo.db.tables.notifications {
		if n.UserID != filter.UserID || (filter.UnreadOnly && n.IsRead()) {
			continue
		}
		notifs = append(notifs, n)
	}
	sort.Slice(notifs, func(i, j int) bool { return notifs[i].CreatedAt.After(notifs[j].CreatedAt) })
	if filter.Limit > 0 && len(notifs) > filter.Limit {
		notifs = notifs[:filter.Limit]
	}
	return notifs, nil
}

func (repo *notificationRepository) CountUnread(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var count int
	for _, n := range repo.db.tables.notifications {
		if n.UserID == userID && !n.IsRead() {
			count++
		}
	}
	return count, nil
}

func (repo *notificationRepository) MarkRead(
	ctx context.Context,
	id, userID string,
	at time.Time,
	exec ...core.DBExecutor,
) (notification.Notification, error) {
	defer repo.db.lock(exec)()

	n, ok := repo.db.tables.notifications[id]
	if !ok || n.UserID != userID {
		return notification.Notification{}, notification.ErrNotFound
	}
	if !n.IsRead() {
		n.ReadAt = &at
		repo.db.tables.notifications[id] = n
	}
	return n, nil
}

func (repo *notificationRepository) MarkAllRead(ctx context.Context, userID string, at time.Time, exec ...core.DBExecutor) (int, error) {
	defer repo.db.lock(exec)()

	var count int
	for id, n := range repo.db.tables.notifications {
		if n.UserID == userID && !n.IsRead() {
			readAt := at
			n.ReadAt = &readAt
			repo.db.tables.notifications[id] = n
			count++
		}
	}
	return count, nil
}
