/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/acronis/go-cachekit/log"
)

// EmptyTrash removes everything under the trash area in background.
// It returns immediately. Failures are logged and otherwise ignored,
// since the trash content is already logically deleted.
func (s *Store) EmptyTrash() {
	if s.trashCtx.Err() != nil {
		return
	}
	s.trashWG.Add(1)
	go func() {
		defer s.trashWG.Done()
		if err := s.emptyTrash(s.trashCtx); err != nil {
			s.logger.Warn("failed to empty trash", log.Path(s.trashPath), log.Error(err))
		}
	}()
}

func (s *Store) emptyTrash(ctx context.Context) error {
	entries, err := os.ReadDir(s.trashPath)
	if err != nil {
		return fmt.Errorf("read trash directory: %w", err)
	}
	removed := 0
	for _, entry := range entries {
		if err = s.trashLimiter.Wait(ctx); err != nil {
			return err
		}
		path := filepath.Join(s.trashPath, entry.Name())
		if err = os.RemoveAll(path); err != nil {
			s.logger.Warn("failed to remove trash entry", log.Path(path), log.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Debug("trash emptied", log.Int("removed", removed))
	}
	return nil
}
