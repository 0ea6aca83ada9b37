package migrate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestUp_UnreachableDatabase(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := Up(ctx, "postgres://learnhub@127.0.0.1:1/learnhub?connect_timeout=1", zaptest.NewLogger(t))
	require.Error(t, err)
}
