package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kasuganosora/towerdefense/audit"
	"github.com/kasuganosora/towerdefense/cache"
	"github.com/spf13/cobra"
)

var auditLimit int64

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Print the intent trail persisted by a running server (needs cache.redis_addr)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if cfg.Cache.RedisAddr == "" {
			return errors.New("audit history is only shared across processes through redis; set cache.redis_addr")
		}
		store, err := cache.New(cfg.Cache)
		if err != nil {
			return fmt.Errorf("cache: %w", err)
		}
		defer store.Close()
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		return printAudit(ctx, store, cfg.Audit.StoreKey, auditLimit, cmd.OutOrStdout())
	},
}

func init() {
	auditCmd.Flags().Int64Var(&auditLimit, "limit", 50, "number of entries, newest first")
}

// printAudit writes up to limit stored entries as JSON lines.
func printAudit(ctx context.Context, store cache.List, key string, limit int64, out io.Writer) error {
	if limit < 1 {
		return fmt.Errorf("limit must be positive, got %d", limit)
	}
	entries, err := audit.ReadStore(ctx, store, key, limit)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}
