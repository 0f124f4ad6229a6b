package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OsmanWais29/filesecureai-sub002/internal/infrastructure/cache/sqlite"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Maintain the offline document cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry count and size",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd.Context(), func(ctx context.Context, cache *sqlite.Cache) error {
			stats, err := cache.Stats(ctx)
			if err != nil {
				return err
			}
			used := 0.0
			if stats.MaxBytes > 0 {
				used = float64(stats.Bytes) / float64(stats.MaxBytes) * 100
			}
			fmt.Fprintf(cmd.OutOrStdout(), "entries: %d\nbytes:   %d / %d (%.1f%%)\n", stats.Entries, stats.Bytes, stats.MaxBytes, used)
			return nil
		})
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd.Context(), func(ctx context.Context, cache *sqlite.Cache) error {
			cache.Clear(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		})
	},
}

var cacheEvictCmd = &cobra.Command{
	Use:   "evict",
	Short: "Run an eviction pass against the size budget",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd.Context(), func(ctx context.Context, cache *sqlite.Cache) error {
			entries, bytes, err := cache.Evict(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "evicted %d entries (%d bytes)\n", entries, bytes)
			return nil
		})
	},
}

func withCache(ctx context.Context, fn func(ctx context.Context, cache *sqlite.Cache) error) error {
	cache, err := sqlite.Open(ctx, cfg.CachePath, sqlite.Options{
		MaxBytes:  cfg.CacheMaxBytes,
		Retention: cfg.CacheRetention,
	})
	if err != nil {
		return err
	}
	defer cache.Close()
	return fn(ctx, cache)
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cacheEvictCmd)
}
