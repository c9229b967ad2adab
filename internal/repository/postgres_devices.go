package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wisefido-hub/internal/domain"

	"github.com/lib/pq"
)

// PostgresDevicesRepo 设备库 PostgreSQL 实现
//
//	CREATE TABLE devices (
//	    device_id    TEXT PRIMARY KEY,
//	    capabilities TEXT[] NOT NULL DEFAULT '{}',
//	    status       TEXT NOT NULL DEFAULT 'offline',
//	    push_url     TEXT NOT NULL DEFAULT '',
//	    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    last_seen_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresDevicesRepo struct {
	db *sql.DB
}

func NewPostgresDevicesRepo(db *sql.DB) *PostgresDevicesRepo {
	return &PostgresDevicesRepo{db: db}
}

var _ DevicesRepository = (*PostgresDevicesRepo)(nil)

const deviceColumns = `device_id, capabilities, status, push_url, created_at, last_seen_at`

func (r *PostgresDevicesRepo) GetDevice(ctx context.Context, deviceID string) (*domain.DeviceRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE device_id = $1`, deviceID)
	return scanDevice(row)
}

func (r *PostgresDevicesRepo) ListDevices(ctx context.Context, page, size int) ([]*domain.DeviceRecord, int, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count devices: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices ORDER BY device_id LIMIT $1 OFFSET $2`,
		size, (page-1)*size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var out []*domain.DeviceRecord
	for rows.Next() {
		var d domain.DeviceRecord
		var caps pq.StringArray
		if err := rows.Scan(&d.DeviceID, &caps, &d.Status, &d.PushURL, &d.CreatedAt, &d.LastSeenAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan device: %w", err)
		}
		d.Capabilities = caps
		out = append(out, &d)
	}
	return out, total, rows.Err()
}

func (r *PostgresDevicesRepo) TouchOnSeen(ctx context.Context, deviceID, capability string, seenAt time.Time) (*domain.DeviceRecord, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	var prevStatus string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM devices WHERE device_id = $1 FOR UPDATE`, deviceID).Scan(&prevStatus)

	var row *sql.Row
	inserted := false
	switch {
	case err == sql.ErrNoRows:
		// 首次上报：自动建档并置为 online
		inserted = true
		row = tx.QueryRowContext(ctx,
			`INSERT INTO devices (device_id, capabilities, status, created_at, last_seen_at)
			 VALUES ($1, CASE WHEN $2 = '' THEN '{}'::text[] ELSE ARRAY[$2] END, 'online', $3, $3)
			 RETURNING `+deviceColumns,
			deviceID, capability, seenAt)
	case err != nil:
		return nil, false, fmt.Errorf("failed to read device status: %w", err)
	default:
		row = tx.QueryRowContext(ctx,
			`UPDATE devices
			 SET status = 'online',
			     last_seen_at = $3,
			     capabilities = CASE
			         WHEN $2 = '' OR $2 = ANY(capabilities) THEN capabilities
			         ELSE array_append(capabilities, $2)
			     END
			 WHERE device_id = $1
			 RETURNING `+deviceColumns,
			deviceID, capability, seenAt)
	}

	var d domain.DeviceRecord
	var caps pq.StringArray
	if err := row.Scan(&d.DeviceID, &caps, &d.Status, &d.PushURL, &d.CreatedAt, &d.LastSeenAt); err != nil {
		return nil, false, fmt.Errorf("failed to touch device: %w", err)
	}
	d.Capabilities = caps

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit: %w", err)
	}

	cameOnline := inserted || prevStatus != domain.DeviceStatusOnline
	return &d, cameOnline, nil
}

func (r *PostgresDevicesRepo) SetStatus(ctx context.Context, deviceID, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE devices SET status = $2 WHERE device_id = $1`, deviceID, status)
	if err != nil {
		return fmt.Errorf("failed to update device status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPushURL 配置设备的 HTTP 推送地址（为空时指令走 MQTT 下发）
func (r *PostgresDevicesRepo) SetPushURL(ctx context.Context, deviceID, pushURL string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE devices SET push_url = $2 WHERE device_id = $1`, deviceID, pushURL)
	if err != nil {
		return fmt.Errorf("failed to update device push_url: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDevice(row *sql.Row) (*domain.DeviceRecord, error) {
	var d domain.DeviceRecord
	var caps pq.StringArray
	if err := row.Scan(&d.DeviceID, &caps, &d.Status, &d.PushURL, &d.CreatedAt, &d.LastSeenAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan device: %w", err)
	}
	d.Capabilities = caps
	return &d, nil
}
