package ui

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRouter_NavigateMovesPath(t *testing.T) {
	t.Parallel()

	r := NewRouter("/dashboard")
	require.Equal(t, "/dashboard", r.Path())
	r.Navigate(context.Background(), "/signin")
	require.Equal(t, "/signin", r.Path())
}

func TestRecorder_And_Fanout(t *testing.T) {
	t.Parallel()

	var rec Recorder
	var buf bytes.Buffer
	f := Fanout{&rec, WriterNotifier{W: &buf}, LogNotifier{Log: zaptest.NewLogger(t)}}
	f.Notify(Notification{Kind: KindNetwork, Message: "offline"})

	require.Equal(t, []Notification{{Kind: KindNetwork, Message: "offline"}}, rec.Notifications())
	require.Equal(t, "! offline\n", buf.String())

	rec.Navigate(context.Background(), "/signin")
	require.Equal(t, []string{"/signin"}, rec.Navigations())
	require.Len(t, rec.NavigationContexts(), 1)
}
