package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/badkiko/y2m/internal/model"
)

var ErrNotFound = errors.New("not found")

const deviceColumns = `id, name, yandex_type, adb_host, adb_port, created_at, updated_at`

func (r *Repository) CreateDevice(ctx context.Context, d model.Device) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.YandexType, fromStringPtr(d.ADBHost), fromIntPtr(d.ADBPort),
		d.CreatedAt.UTC().Format(time.RFC3339Nano), d.UpdatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (r *Repository) ListDevices(ctx context.Context) ([]model.Device, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, device)
	}
	return result, rows.Err()
}

// DevicesWithADB returns devices that carry bridge connection parameters,
// the working set for the autoconnect sweep.
func (r *Repository) DevicesWithADB(ctx context.Context) ([]model.Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+deviceColumns+` FROM devices
		WHERE adb_host IS NOT NULL AND adb_host != '' AND adb_port IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, device)
	}
	return result, rows.Err()
}

func (r *Repository) GetDevice(ctx context.Context, id string) (model.Device, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)
	device, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Device{}, ErrNotFound
	}
	return device, err
}

func (r *Repository) UpdateDevice(ctx context.Context, d model.Device) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE devices SET name = ?, yandex_type = ?, adb_host = ?, adb_port = ?, updated_at = ?
		WHERE id = ?`,
		d.Name, d.YandexType, fromStringPtr(d.ADBHost), fromIntPtr(d.ADBPort), now(), d.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteDevice removes the device; bindings go with it via the FK cascade.
func (r *Repository) DeleteDevice(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *Repository) DeviceExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM devices WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

const bindingColumns = `id, device_id, capability, action_type, action_config_json, created_at, updated_at`

func (r *Repository) CreateBinding(ctx context.Context, b model.Binding) error {
	configJSON, err := json.Marshal(b.ActionConfig)
	if err != nil {
		return fmt.Errorf("encode action config: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO bindings (`+bindingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.DeviceID, b.Capability, b.ActionType, string(configJSON),
		b.CreatedAt.UTC().Format(time.RFC3339Nano), b.UpdatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (r *Repository) ListBindings(ctx context.Context) ([]model.Binding, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+bindingColumns+` FROM bindings ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Binding
	for rows.Next() {
		binding, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, binding)
	}
	return result, rows.Err()
}

func (r *Repository) GetBinding(ctx context.Context, id string) (model.Binding, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bindingColumns+` FROM bindings WHERE id = ?`, id)
	binding, err := scanBinding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Binding{}, ErrNotFound
	}
	return binding, err
}

// FindBinding looks up a binding by device and capability instance, the
// resolution path used by provider action requests.
func (r *Repository) FindBinding(ctx context.Context, deviceID, capability string) (model.Binding, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+bindingColumns+` FROM bindings
		WHERE device_id = ? AND capability = ?
		ORDER BY created_at LIMIT 1`, deviceID, capability)
	binding, err := scanBinding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Binding{}, ErrNotFound
	}
	return binding, err
}

// UpdateBinding applies a partial update; id and device_id stay immutable.
func (r *Repository) UpdateBinding(ctx context.Context, id string, capability, actionType *string, actionConfig map[string]any) error {
	binding, err := r.GetBinding(ctx, id)
	if err != nil {
		return err
	}
	if capability != nil {
		binding.Capability = *capability
	}
	if actionType != nil {
		binding.ActionType = *actionType
	}
	if actionConfig != nil {
		binding.ActionConfig = actionConfig
	}
	configJSON, err := json.Marshal(binding.ActionConfig)
	if err != nil {
		return fmt.Errorf("encode action config: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE bindings SET capability = ?, action_type = ?, action_config_json = ?, updated_at = ?
		WHERE id = ?`,
		binding.Capability, binding.ActionType, string(configJSON), now(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *Repository) DeleteBinding(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bindings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

const tokenColumns = `id, user_id, provider, access_token, access_token_hash, refresh_token, expires_at, created_at, updated_at`

func (r *Repository) SaveUserToken(ctx context.Context, t model.UserToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_tokens (`+tokenColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Provider, t.AccessToken, t.AccessTokenHash,
		fromStringPtr(t.RefreshToken), fromTimePtr(t.ExpiresAt),
		t.CreatedAt.UTC().Format(time.RFC3339Nano), t.UpdatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// CurrentToken returns the most recent stored token for the provider. The
// deployment is single-account, so "most recent" is the active one.
func (r *Repository) CurrentToken(ctx context.Context, provider string) (model.UserToken, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+tokenColumns+` FROM user_tokens
		WHERE provider = ? AND access_token != ''
		ORDER BY created_at DESC LIMIT 1`, provider)
	token, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserToken{}, ErrNotFound
	}
	return token, err
}

func (r *Repository) TokenByID(ctx context.Context, id string) (model.UserToken, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM user_tokens WHERE id = ?`, id)
	token, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserToken{}, ErrNotFound
	}
	return token, err
}

func (r *Repository) TokenByHash(ctx context.Context, provider, hash string) (model.UserToken, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+tokenColumns+` FROM user_tokens
		WHERE provider = ? AND access_token_hash = ?
		ORDER BY created_at DESC LIMIT 1`, provider, hash)
	token, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserToken{}, ErrNotFound
	}
	return token, err
}

// TokenWithRefresh returns a stored token that carries a refresh token, for
// the refresh_token grant.
func (r *Repository) TokenWithRefresh(ctx context.Context, provider string) (model.UserToken, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+tokenColumns+` FROM user_tokens
		WHERE provider = ? AND refresh_token IS NOT NULL AND refresh_token != ''
		ORDER BY created_at DESC LIMIT 1`, provider)
	token, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserToken{}, ErrNotFound
	}
	return token, err
}

func (r *Repository) UpdateTokenSecrets(ctx context.Context, id, accessToken, accessTokenHash string, refreshToken *string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE user_tokens SET access_token = ?, access_token_hash = ?,
			refresh_token = COALESCE(?, refresh_token), updated_at = ?
		WHERE id = ?`,
		accessToken, accessTokenHash, fromStringPtr(refreshToken), now(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *Repository) DeleteTokens(ctx context.Context, provider, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_tokens WHERE provider = ? AND user_id = ?`, provider, userID)
	return err
}

func (r *Repository) CountTokens(ctx context.Context, provider string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_tokens WHERE provider = ?`, provider).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (model.Device, error) {
	var (
		device               model.Device
		host                 sql.NullString
		port                 sql.NullInt64
		createdAt, updatedAt string
	)
	if err := row.Scan(&device.ID, &device.Name, &device.YandexType, &host, &port, &createdAt, &updatedAt); err != nil {
		return model.Device{}, err
	}
	device.ADBHost = strPtr(host)
	device.ADBPort = intPtr(port)
	device.CreatedAt = parseTime(createdAt)
	device.UpdatedAt = parseTime(updatedAt)
	return device, nil
}

func scanBinding(row rowScanner) (model.Binding, error) {
	var (
		binding              model.Binding
		configJSON           string
		createdAt, updatedAt string
	)
	if err := row.Scan(&binding.ID, &binding.DeviceID, &binding.Capability, &binding.ActionType, &configJSON, &createdAt, &updatedAt); err != nil {
		return model.Binding{}, err
	}
	if err := json.Unmarshal([]byte(configJSON), &binding.ActionConfig); err != nil {
		return model.Binding{}, fmt.Errorf("decode action config for %s: %w", binding.ID, err)
	}
	binding.CreatedAt = parseTime(createdAt)
	binding.UpdatedAt = parseTime(updatedAt)
	return binding, nil
}

func scanToken(row rowScanner) (model.UserToken, error) {
	var (
		token                model.UserToken
		hash, refresh        sql.NullString
		expiresAt            sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&token.ID, &token.UserID, &token.Provider, &token.AccessToken, &hash, &refresh, &expiresAt, &createdAt, &updatedAt); err != nil {
		return model.UserToken{}, err
	}
	if hash.Valid {
		token.AccessTokenHash = hash.String
	}
	token.RefreshToken = strPtr(refresh)
	token.ExpiresAt = toTimePtr(expiresAt)
	token.CreatedAt = parseTime(createdAt)
	token.UpdatedAt = parseTime(updatedAt)
	return token, nil
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
