package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestZapLoggerTrace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapLogger(zap.New(core), logger.Warn)
	fc := func() (string, int64) { return `SELECT * FROM "requests"`, 1 }
	ctx := context.Background()

	l.Trace(ctx, time.Now(), fc, gorm.ErrRecordNotFound)
	assert.Equal(t, 0, logs.Len())

	l.Trace(ctx, time.Now(), fc, errors.New("connection reset"))
	assert.Equal(t, 1, logs.FilterMessage("query failed").Len())

	l.Trace(ctx, time.Now().Add(-time.Second), fc, nil)
	assert.Equal(t, 1, logs.FilterMessage("slow query").Len())

	l.Trace(ctx, time.Now(), fc, nil)
	assert.Equal(t, 2, logs.Len())
}

func TestZapLoggerSilent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapLogger(zap.New(core), logger.Warn).LogMode(logger.Silent)

	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "", 0 }, errors.New("boom"))
	l.Warn(context.Background(), "ignored %d", 1)
	assert.Equal(t, 0, logs.Len())
}
