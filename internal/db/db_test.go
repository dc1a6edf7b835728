package db

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestGormLoggerSkipsRecordNotFound(t *testing.T) {
	var buf bytes.Buffer
	l := newGormLogger(log.New(&buf, "", 0))
	query := func() (string, int64) { return "SELECT * FROM loans LIMIT 1", 0 }

	l.Trace(context.Background(), time.Now(), query, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String(), "a missing row is not an error worth logging")

	l.Trace(context.Background(), time.Now(), query, errors.New("disk I/O error"))
	assert.Contains(t, buf.String(), "disk I/O error")
	assert.NotContains(t, buf.String(), "\x1b[", "output is plain text")
}
