package app

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/dalemusser/contactrelay/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDeps struct{ closed *bool }

func testHooks(t *testing.T) (Hooks[string, fakeDeps], *bool) {
	t.Helper()
	closed := new(bool)
	return Hooks[string, fakeDeps]{
		Name: "test",
		LoadConfig: func(*zap.Logger) (*config.CoreConfig, string, error) {
			return &config.CoreConfig{Env: "dev", LogLevel: "error"}, "app", nil
		},
		Connect: func(context.Context, *config.CoreConfig, string, *zap.Logger) (fakeDeps, error) {
			return fakeDeps{closed: closed}, nil
		},
		BuildHandler: func(*config.CoreConfig, string, fakeDeps, *zap.Logger) (http.Handler, error) {
			return nil, errors.New("no handler")
		},
		Close: func(d fakeDeps) { *d.closed = true },
	}, closed
}

func TestRun_LoadConfigError(t *testing.T) {
	hooks, closed := testHooks(t)
	hooks.LoadConfig = func(*zap.Logger) (*config.CoreConfig, string, error) {
		return nil, "", errors.New("bad config")
	}

	err := Run(context.Background(), hooks)
	require.Error(t, err)
	assert.ErrorContains(t, err, "load config")
	assert.False(t, *closed)
}

func TestRun_ConnectError(t *testing.T) {
	hooks, closed := testHooks(t)
	hooks.Connect = func(context.Context, *config.CoreConfig, string, *zap.Logger) (fakeDeps, error) {
		return fakeDeps{}, errors.New("no transport")
	}

	err := Run(context.Background(), hooks)
	assert.ErrorContains(t, err, "connect: no transport")
	assert.False(t, *closed)
}

func TestRun_VerifyErrorClosesDeps(t *testing.T) {
	hooks, closed := testHooks(t)
	var gotDeadline bool
	hooks.Verify = func(ctx context.Context, _ *config.CoreConfig, appCfg string, _ fakeDeps, _ *zap.Logger) error {
		_, gotDeadline = ctx.Deadline()
		assert.Equal(t, "app", appCfg)
		return errors.New("smtp auth failed")
	}

	err := Run(context.Background(), hooks)
	assert.ErrorContains(t, err, "verify: smtp auth failed")
	assert.True(t, gotDeadline, "verify runs under DefaultVerifyTimeout")
	assert.True(t, *closed)
}

func TestRun_BuildHandlerError(t *testing.T) {
	hooks, closed := testHooks(t)

	err := Run(context.Background(), hooks)
	assert.ErrorContains(t, err, "build handler: no handler")
	assert.True(t, *closed)
}
