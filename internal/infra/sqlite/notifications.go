package sqlite

import (
	"database/sql"
	"time"

	"github.com/plano-ai/plano/internal/domain"
)

// ─── Notifications ──────────────────────────────────────────────────────────

// InsertNotification creates a new notification.
func (d *DB) InsertNotification(n domain.Notification) (int64, error) {
	result, err := d.db.Exec(
		`INSERT INTO notifications (type, title, body, created_at, shown)
		 VALUES (?, ?, ?, ?, ?)`,
		string(n.Type), n.Title, n.Body, n.CreatedAt.Unix(), n.Shown,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListNotifications returns the most recent notifications, newest first.
// With pendingOnly, notifications already marked shown are skipped.
func (d *DB) ListNotifications(limit int, pendingOnly bool) ([]domain.Notification, error) {
	query := `SELECT id, type, title, body, created_at, shown FROM notifications`
	if pendingOnly {
		query += ` WHERE shown = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := d.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifs []domain.Notification
	for rows.Next() {
		n, err := scanNotifRows(rows)
		if err != nil {
			return nil, err
		}
		notifs = append(notifs, *n)
	}
	return notifs, rows.Err()
}

// MarkNotificationShown marks a notification as shown.
// Returns false when no notification has that id.
func (d *DB) MarkNotificationShown(id int64) (bool, error) {
	result, err := d.db.Exec(`UPDATE notifications SET shown = 1 WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// DeleteNotificationsBefore removes notifications created before t.
func (d *DB) DeleteNotificationsBefore(t time.Time) (int64, error) {
	result, err := d.db.Exec(`DELETE FROM notifications WHERE created_at < ?`, t.Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanNotifRows(rows *sql.Rows) (*domain.Notification, error) {
	var n domain.Notification
	var createdAt int64
	err := rows.Scan(&n.ID, &n.Type, &n.Title, &n.Body, &createdAt, &n.Shown)
	if err != nil {
		return nil, err
	}
	n.CreatedAt = time.Unix(createdAt, 0)
	return &n, nil
}
