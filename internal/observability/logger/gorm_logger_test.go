package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestGormLoggerTrace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewGormLogger(zap.New(core), DefaultGormLoggerConfig())
	ctx := ContextWithStore(ContextWithRunID(context.Background(), "run-1"), "coop")
	sql := func() (string, int64) { return "SELECT * FROM stores WHERE name = ?", 1 }

	log.Trace(ctx, time.Now(), sql, gormlogger.ErrRecordNotFound)
	assert.Zero(t, logs.Len(), "record not found is part of get-or-create")

	log.Trace(ctx, time.Now(), sql, errors.New("connection reset"))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "gorm.query", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "SELECT", fields["operation"])
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, "coop", fields["store"])

	log.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[1].Level)
}

func TestGormLoggerSilent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewGormLogger(zap.New(core), DefaultGormLoggerConfig()).LogMode(gormlogger.Silent)

	log.Trace(context.Background(), time.Now(), func() (string, int64) { return "UPDATE x", 0 }, errors.New("boom"))
	log.Error(context.Background(), "boom")
	assert.Zero(t, logs.Len())
}

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "SELECT", operationFromSQL("WITH prev AS (SELECT * FROM store_listings) SELECT 1"))
	assert.Equal(t, "INSERT", operationFromSQL("  insert into listing_history values (?)"))
	assert.Equal(t, "UNKNOWN", operationFromSQL(""))
}
