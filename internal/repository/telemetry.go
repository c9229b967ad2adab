package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"wisefido-hub/internal/domain"
)

// MemoryTelemetryRepo 进程内时序数据存储（每设备保留最近 N 条）
type MemoryTelemetryRepo struct {
	mu      sync.RWMutex
	byDev   map[string][]*domain.TelemetryRecord
	nextID  int64
	keepPer int
}

func NewMemoryTelemetryRepo() *MemoryTelemetryRepo {
	return &MemoryTelemetryRepo{
		byDev:   map[string][]*domain.TelemetryRecord{},
		keepPer: 1000,
	}
}

var _ TelemetryRepository = (*MemoryTelemetryRepo)(nil)

func (r *MemoryTelemetryRepo) Insert(_ context.Context, rec *domain.TelemetryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	clone := *rec
	clone.ID = r.nextID
	records := append(r.byDev[rec.DeviceID], &clone)
	if len(records) > r.keepPer {
		records = records[len(records)-r.keepPer:]
	}
	r.byDev[rec.DeviceID] = records
	return nil
}

func (r *MemoryTelemetryRepo) GetLatest(_ context.Context, deviceID string, limit int) ([]*domain.TelemetryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := r.byDev[deviceID]
	if limit <= 0 || limit > len(records) {
		limit = len(records)
	}

	// 最新在前
	out := make([]*domain.TelemetryRecord, 0, limit)
	for i := len(records) - 1; i >= len(records)-limit; i-- {
		clone := *records[i]
		out = append(out, &clone)
	}
	return out, nil
}

// PostgresTelemetryRepo 时序数据 PostgreSQL 实现（仅插入 + 最新查询）
//
//	CREATE TABLE hub_telemetry (
//	    id             BIGSERIAL PRIMARY KEY,
//	    device_id      TEXT NOT NULL,
//	    capability     TEXT NOT NULL,
//	    data_class     TEXT NOT NULL,
//	    value          JSONB,
//	    policy_version TEXT NOT NULL,
//	    timestamp      BIGINT NOT NULL,
//	    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresTelemetryRepo struct {
	db *sql.DB
}

func NewPostgresTelemetryRepo(db *sql.DB) *PostgresTelemetryRepo {
	return &PostgresTelemetryRepo{db: db}
}

var _ TelemetryRepository = (*PostgresTelemetryRepo)(nil)

func (r *PostgresTelemetryRepo) Insert(ctx context.Context, rec *domain.TelemetryRecord) error {
	valueJSON, err := json.Marshal(rec.Value)
	if err != nil {
		return fmt.Errorf("failed to marshal telemetry value: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO hub_telemetry (device_id, capability, data_class, value, policy_version, timestamp)
		 VALUES ($1, $2, $3, $4::jsonb, $5, $6)`,
		rec.DeviceID, rec.Capability, string(rec.DataClass), string(valueJSON), rec.PolicyVersion, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert telemetry: %w", err)
	}
	return nil
}

func (r *PostgresTelemetryRepo) GetLatest(ctx context.Context, deviceID string, limit int) ([]*domain.TelemetryRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, capability, data_class, value, policy_version, timestamp, created_at
		 FROM hub_telemetry WHERE device_id = $1 ORDER BY id DESC LIMIT $2`,
		deviceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query telemetry: %w", err)
	}
	defer rows.Close()

	var out []*domain.TelemetryRecord
	for rows.Next() {
		var (
			rec       domain.TelemetryRecord
			dataClass string
			valueJSON []byte
			createdAt time.Time
		)
		if err := rows.Scan(&rec.ID, &rec.DeviceID, &rec.Capability, &dataClass, &valueJSON, &rec.PolicyVersion, &rec.Timestamp, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan telemetry: %w", err)
		}
		rec.DataClass = domain.DataClass(dataClass)
		rec.CreatedAt = createdAt
		if len(valueJSON) > 0 {
			if err := json.Unmarshal(valueJSON, &rec.Value); err != nil {
				return nil, fmt.Errorf("failed to unmarshal telemetry value: %w", err)
			}
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
