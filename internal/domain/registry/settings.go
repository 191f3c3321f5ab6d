package registry

import (
	"context"
	"sort"
	"strings"

	"github.com/arcadia-launcher/arcadia/backend/internal/shared/types"
	"github.com/arcadia-launcher/arcadia/backend/internal/storage"
)

// Settings are keyed values scoped to one extension id, persisted as
// one durable record per (extension_id, key). They are purged as part
// of uninstall.

// GetSetting reads one setting value
func (m *Manager) GetSetting(ctx context.Context, extID, key string) (string, error) {
	if _, err := m.Get(extID); err != nil {
		return "", err
	}

	data, err := m.store.Get(ctx, storage.BucketSettings, settingKey(extID, key))
	if err == storage.ErrNotFound {
		return "", &types.NotFoundError{Kind: "setting", ID: extID + "/" + key}
	}
	if err != nil {
		return "", &types.IOError{Op: "read", Err: err}
	}
	return string(data), nil
}

// SetSetting writes one setting value
func (m *Manager) SetSetting(ctx context.Context, extID, key, value string) error {
	if _, err := m.Get(extID); err != nil {
		return err
	}
	if key == "" {
		return &types.NotFoundError{Kind: "setting", ID: extID + "/"}
	}

	if err := m.store.Set(ctx, storage.BucketSettings, settingKey(extID, key), []byte(value)); err != nil {
		return &types.IOError{Op: "write", Err: err}
	}
	return nil
}

// ListSettings returns all settings for an extension, sorted by key
func (m *Manager) ListSettings(ctx context.Context, extID string) ([]types.ExtensionSetting, error) {
	if _, err := m.Get(extID); err != nil {
		return nil, err
	}

	rows, err := m.store.List(ctx, storage.BucketSettings, extID+"/")
	if err != nil {
		return nil, &types.IOError{Op: "list", Err: err}
	}

	out := make([]types.ExtensionSetting, 0, len(rows))
	for key, value := range rows {
		out = append(out, types.ExtensionSetting{
			ExtensionID: extID,
			Key:         strings.TrimPrefix(key, extID+"/"),
			Value:       string(value),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// DeleteSetting removes one setting
func (m *Manager) DeleteSetting(ctx context.Context, extID, key string) error {
	if _, err := m.Get(extID); err != nil {
		return err
	}

	if err := m.store.Delete(ctx, storage.BucketSettings, settingKey(extID, key)); err != nil {
		return &types.IOError{Op: "delete", Err: err}
	}
	return nil
}

func settingKey(extID, key string) string {
	return extID + "/" + key
}
