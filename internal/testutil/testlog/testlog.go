package testlog

import (
	"testing"

	"github.com/danmuck/indidrv/internal/logging"
	"github.com/danmuck/indidrv/internal/logx"
)

func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	logx.Infof("test=%s", t.Name())
}
