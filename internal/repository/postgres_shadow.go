package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"wisefido-hub/internal/domain"
)

// PostgresShadowStore 影子存储 PostgreSQL 实现
// 版本门控用单条 UPSERT 完成（WHERE version 条件），并发写同设备不会丢更新：
//
//	CREATE TABLE device_shadows (
//	    device_id  TEXT PRIMARY KEY,
//	    version    BIGINT NOT NULL DEFAULT 0,
//	    reported   JSONB NOT NULL DEFAULT '{}',
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresShadowStore struct {
	db *sql.DB
}

func NewPostgresShadowStore(db *sql.DB) *PostgresShadowStore {
	return &PostgresShadowStore{db: db}
}

var _ ShadowStore = (*PostgresShadowStore)(nil)

func (s *PostgresShadowStore) Get(ctx context.Context, deviceID string) (*domain.ShadowEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT device_id, version, reported, updated_at FROM device_shadows WHERE device_id = $1`,
		deviceID,
	)
	return scanShadow(row)
}

func (s *PostgresShadowStore) ApplyUpdate(ctx context.Context, deviceID string, version int64, patch map[string]any) (*domain.ShadowEntry, bool, error) {
	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal patch: %w", err)
	}

	// jsonb || 即浅合并；INSERT 分支与 UPDATE 分支都受版本门控，
	// 未建档设备配 version < 1 不落行。RETURNING 让生效判定与写入
	// 同属一条语句，不受并发更高版本写入影响
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO device_shadows (device_id, version, reported, updated_at)
		 SELECT $1, $2, $3::jsonb, now() WHERE $2 >= 1
		 ON CONFLICT (device_id)
		 DO UPDATE SET version = EXCLUDED.version,
		               reported = device_shadows.reported || EXCLUDED.reported,
		               updated_at = now()
		 WHERE device_shadows.version < EXCLUDED.version
		 RETURNING device_id, version, reported, updated_at`,
		deviceID, version, string(patchJSON),
	)
	entry, err := scanShadow(row)
	if err != nil {
		return nil, false, fmt.Errorf("failed to apply shadow update: %w", err)
	}
	if entry != nil {
		return entry, true, nil
	}

	// 写入未生效：读回当前文档
	entry, err = s.Get(ctx, deviceID)
	if err != nil {
		return nil, false, err
	}
	if entry == nil {
		return domain.ZeroShadow(deviceID), false, nil
	}
	return entry, false, nil
}

func scanShadow(row *sql.Row) (*domain.ShadowEntry, error) {
	var (
		entry        domain.ShadowEntry
		reportedJSON []byte
		updatedAt    time.Time
	)
	if err := row.Scan(&entry.DeviceID, &entry.Version, &reportedJSON, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan shadow: %w", err)
	}
	if err := json.Unmarshal(reportedJSON, &entry.Reported); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reported: %w", err)
	}
	entry.UpdatedAt = updatedAt.UnixMilli()
	return &entry, nil
}
