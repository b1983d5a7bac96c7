// Package cleanup は期限切れデータの自動削除ジョブを提供する。
// 有効期間を過ぎたアカウント有効化トークンと、期限切れのセッションを
// 定期バッチで削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/inkpost/internal/metrics"
)

// 削除対象の種別。メトリクスのkindラベルにも使う。
const (
	KindActivationTokens = "activation_tokens"
	KindSessions         = "sessions"
)

// 既定値。0以下の設定値はこれに置き換える。
const (
	DefaultActivationTokenTTL = 24 * time.Hour
	DefaultInterval           = time.Hour
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob は期限切れデータの自動削除ジョブ。
// 冪等な削除処理を保証し、何度実行しても結果は変わらない。
type CleanupJob struct {
	db        Executor
	logger    *slog.Logger
	collector metrics.MetricsCollector

	// ActivationTokenTTL はアカウント有効化トークンの有効期間（デフォルト: 24時間）。
	// 0以下の場合はDefaultActivationTokenTTLを使用する。
	ActivationTokenTTL time.Duration
}

// NewCleanupJob は新しいCleanupJobを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewCleanupJob(db Executor, logger *slog.Logger, collector metrics.MetricsCollector) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &CleanupJob{
		db:                 db,
		logger:             logger,
		collector:          collector,
		ActivationTokenTTL: DefaultActivationTokenTTL,
	}
}

// Run は期限切れのトークンとセッションを削除する。
// 一方の削除に失敗しても、もう一方は実行する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	tokens, tokenErr := j.deleteExpiredActivationTokens(ctx)
	sessions, sessionErr := j.deleteExpiredSessions(ctx)

	if tokenErr != nil {
		return tokenErr
	}
	if sessionErr != nil {
		return sessionErr
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_activation_tokens", tokens),
		slog.Int64("deleted_sessions", sessions),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// deleteExpiredActivationTokens はcreated_atがTTLより古いトークンを削除する。
func (j *CleanupJob) deleteExpiredActivationTokens(ctx context.Context) (int64, error) {
	interval := fmt.Sprintf("%d seconds", int64(j.activationTokenTTL()/time.Second))

	query := `DELETE FROM activation_tokens WHERE created_at < now() - $1::interval`
	return j.exec(ctx, KindActivationTokens, query, interval)
}

func (j *CleanupJob) activationTokenTTL() time.Duration {
	if j.ActivationTokenTTL <= 0 {
		return DefaultActivationTokenTTL
	}
	return j.ActivationTokenTTL
}

// deleteExpiredSessions はexpires_atを過ぎたセッションを削除する。
func (j *CleanupJob) deleteExpiredSessions(ctx context.Context) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at < now()`
	return j.exec(ctx, KindSessions, query)
}

func (j *CleanupJob) exec(ctx context.Context, kind, query string, args ...interface{}) (int64, error) {
	result, err := j.db.ExecContext(ctx, query, args...)
	if err != nil {
		j.logger.Error("クリーンアップの実行に失敗しました",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("%sのクリーンアップに失敗: %w", kind, err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	j.collector.RecordCleanupDeleted(kind, deletedCount)
	return deletedCount, nil
}

// Start はintervalごとにRunを実行する。起動直後に1回実行する。
// intervalが0以下の場合はDefaultIntervalを使用する。
// ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	j.logger.Info("クリーンアップジョブを開始します",
		slog.Duration("interval", interval),
		slog.Duration("activation_token_ttl", j.activationTokenTTL()),
	)

	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}
