package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trust-service/internal/client"
	"trust-service/internal/models"
	"trust-service/internal/util"
)

var ErrDeviceNotFound = errors.New("device not found")

// DeviceRepository is the durable registry of devices seen per user.
type DeviceRepository struct {
	client *client.PostgresClient
}

func NewDeviceRepository(client *client.PostgresClient) *DeviceRepository {
	return &DeviceRepository{client: client}
}

// Upsert inserts the device or refreshes last_seen and trust on conflict.
// first_seen survives re-registration.
func (r *DeviceRepository) Upsert(device *models.DeviceInfo) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := r.client.DB.ExecContext(ctx, `
		INSERT INTO user_devices
			(fingerprint, user_id, platform, model, os_version, app_version,
			 is_trusted, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, fingerprint) DO UPDATE SET
			platform    = EXCLUDED.platform,
			model       = EXCLUDED.model,
			os_version  = EXCLUDED.os_version,
			app_version = EXCLUDED.app_version,
			is_trusted  = EXCLUDED.is_trusted,
			last_seen   = EXCLUDED.last_seen`,
		device.Fingerprint, device.UserID, device.Platform, device.Model,
		device.OSVersion, device.AppVersion, device.IsTrusted,
		device.FirstSeen, device.LastSeen)
	if err != nil {
		util.Error("failed to upsert device",
			util.String("user_id", device.UserID),
			util.String("fingerprint", device.Fingerprint),
			util.ErrorField(err))
		return fmt.Errorf("failed to upsert device: %w", err)
	}
	return nil
}

func (r *DeviceRepository) GetByFingerprint(userID, fingerprint string) (*models.DeviceInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var device models.DeviceInfo
	err := r.client.DB.QueryRowContext(ctx, `
		SELECT fingerprint, user_id, platform, model, os_version, app_version,
		       is_trusted, first_seen, last_seen
		FROM user_devices
		WHERE user_id = $1 AND fingerprint = $2`, userID, fingerprint).Scan(
		&device.Fingerprint, &device.UserID, &device.Platform, &device.Model,
		&device.OSVersion, &device.AppVersion, &device.IsTrusted,
		&device.FirstSeen, &device.LastSeen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return &device, nil
}

// ListByUser returns the user's devices, most recently seen first.
func (r *DeviceRepository) ListByUser(userID string) ([]*models.DeviceInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := r.client.DB.QueryContext(ctx, `
		SELECT fingerprint, user_id, platform, model, os_version, app_version,
		       is_trusted, first_seen, last_seen
		FROM user_devices
		WHERE user_id = $1
		ORDER BY last_seen DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []*models.DeviceInfo
	for rows.Next() {
		var device models.DeviceInfo
		if err := rows.Scan(&device.Fingerprint, &device.UserID, &device.Platform,
			&device.Model, &device.OSVersion, &device.AppVersion,
			&device.IsTrusted, &device.FirstSeen, &device.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, &device)
	}
	return devices, rows.Err()
}

// Delete removes a device registration. Returns ErrDeviceNotFound when the
// pair does not exist.
func (r *DeviceRepository) Delete(userID, fingerprint string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := r.client.DB.ExecContext(ctx, `
		DELETE FROM user_devices
		WHERE user_id = $1 AND fingerprint = $2`, userID, fingerprint)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrDeviceNotFound
	}

	util.Info("device deleted",
		util.String("user_id", userID),
		util.String("fingerprint", fingerprint))
	return nil
}

// DeleteAllByUser wipes every device registered to the user and returns how
// many were removed. Used by forced logout.
func (r *DeviceRepository) DeleteAllByUser(userID string) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := r.client.DB.ExecContext(ctx, `
		DELETE FROM user_devices
		WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user devices: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	util.Info("all devices deleted for user",
		util.String("user_id", userID),
		util.Int("count", int(affected)))
	return int(affected), nil
}

// CountByUser returns total and untrusted device counts for the user.
func (r *DeviceRepository) CountByUser(userID string) (total, untrusted int, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = r.client.DB.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE NOT is_trusted)
		FROM user_devices
		WHERE user_id = $1`, userID).Scan(&total, &untrusted)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count devices: %w", err)
	}
	return total, untrusted, nil
}
