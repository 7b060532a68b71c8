// Package backup exports and restores full-store snapshots as JSON. Restore
// is destructive, so a safety snapshot of the current data is written to
// disk before anything is replaced.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
)

type Manager struct {
	repo store.Repository
	dir  string
}

func NewManager(repo store.Repository, dir string) *Manager {
	return &Manager{repo: repo, dir: dir}
}

// Export streams a snapshot of every product and ledger row.
func (m *Manager) Export(ctx context.Context, w io.Writer) error {
	snap, err := m.repo.ExportSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	snap.ID = uuid.NewString()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// Restore replaces the whole store with the snapshot read from r. The data
// being overwritten is first written to the backup directory; if even that
// safety write fails, the restore is aborted.
func (m *Manager) Restore(ctx context.Context, r io.Reader) error {
	var snap domain.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("%w: malformed snapshot: %v", store.ErrInvalidInput, err)
	}
	if snap.Version != domain.SnapshotVersion {
		return fmt.Errorf("%w: unsupported snapshot version %d", store.ErrInvalidInput, snap.Version)
	}

	safetyPath, err := m.writeSafetySnapshot(ctx)
	if err != nil {
		return fmt.Errorf("safety snapshot: %w", err)
	}
	log.Info().Str("path", safetyPath).Msg("wrote pre-restore safety snapshot")

	if err := m.repo.ImportSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}

	log.Info().
		Str("snapshot_id", snap.ID).
		Int("products", len(snap.Products)).
		Int("cash_flows", len(snap.CashFlows)).
		Msg("restore complete")
	return nil
}

func (m *Manager) writeSafetySnapshot(ctx context.Context) (string, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", err
	}

	snap, err := m.repo.ExportSnapshot(ctx)
	if err != nil {
		return "", err
	}
	snap.ID = uuid.NewString()

	name := fmt.Sprintf("pre-restore-%s.json", time.Now().UTC().Format("20060102-150405"))
	path := filepath.Join(m.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return "", err
	}
	return path, nil
}
