package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kopkar/kopkar-client/internal/testutil"
)

type cli struct {
	t          *testing.T
	mock       *testutil.MockBackend
	sessionDir string
}

func newCLI(t *testing.T) *cli {
	mock := testutil.NewMockBackend()
	t.Cleanup(mock.Close)
	return &cli{t: t, mock: mock, sessionDir: t.TempDir()}
}

// run executes the command line with a clean environment.
func (c *cli) run(args ...string) (map[string]any, error) {
	c.t.Helper()

	global := []string{
		"--base-url", c.mock.BaseURL(),
		"--session-dir", c.sessionDir,
		"--log-level", "disabled",
		"--retries", "1",
	}
	getenv := func(string) string { return "" }
	getwd := func() (string, error) { return c.sessionDir, nil }

	stdout := &bytes.Buffer{}
	err := run(context.Background(), getenv, getwd, append(global, args...), stdout, &bytes.Buffer{})
	if err != nil {
		return nil, err
	}

	var out map[string]any
	require.NoError(c.t, json.Unmarshal(stdout.Bytes(), &out), "stdout: %s", stdout.String())
	return out, nil
}

func Test_run(t *testing.T) {
	t.Run("login, status, logout", func(t *testing.T) {
		c := newCLI(t)
		c.mock.SetResponse("auth/sign-in", testutil.NewSuccessResponse("ok", map[string]any{"token": "tok", "name": "Siti"}))

		out, err := c.run("login", "-u", "siti", "-p", "pw")
		require.NoError(t, err)
		require.Equal(t, true, out["signed_in"])
		require.Equal(t, "Siti", out["name"])

		out, err = c.run("status")
		require.NoError(t, err)
		require.Equal(t, true, out["signed_in"])

		out, err = c.run("logout")
		require.NoError(t, err)
		require.Equal(t, false, out["signed_in"])

		out, err = c.run("status")
		require.NoError(t, err)
		require.Equal(t, false, out["signed_in"])
		require.NotContains(t, out, "name")
	})

	t.Run("token persists between runs", func(t *testing.T) {
		c := newCLI(t)
		c.mock.SetResponse("auth/sign-in", testutil.NewSuccessResponse("ok", map[string]any{"token": "persisted"}))
		c.mock.SetResponse("trx/total", testutil.NewSuccessResponse("ok", map[string]any{"data": "1000"}))

		_, err := c.run("login", "-u", "siti", "-p", "pw")
		require.NoError(t, err)

		out, err := c.run("total", "--type", "pinjaman")
		require.NoError(t, err)
		require.Equal(t, "pinjaman", out["type"])
		require.Equal(t, "1000", out["total"])

		req, _ := c.mock.LastRequest()
		require.Equal(t, "Bearer persisted", req.Header.Get("Authorization"))
	})

	t.Run("verify failure signs out", func(t *testing.T) {
		c := newCLI(t)
		c.mock.SetResponse("auth/sign-in", testutil.NewSuccessResponse("ok", map[string]any{"token": "tok"}))
		c.mock.SetResponse("auth/verify", testutil.NewErrorResponse(http.StatusUnauthorized, "expired"))

		_, err := c.run("login", "-u", "siti", "-p", "pw")
		require.NoError(t, err)

		_, err = c.run("verify")
		require.Error(t, err)
		require.Contains(t, err.Error(), "session expired")

		out, err := c.run("status")
		require.NoError(t, err)
		require.Equal(t, false, out["signed_in"])
	})

	t.Run("history overview and all pages", func(t *testing.T) {
		c := newCLI(t)
		c.mock.SetResponse("trx/total", testutil.NewSuccessResponse("ok", map[string]any{"data": 500}))
		c.mock.SetHandler("trx/histories", func(w http.ResponseWriter, r *http.Request) {
			var q struct {
				Start int `json:"start"`
			}
			_ = json.NewDecoder(r.Body).Decode(&q)

			data := []map[string]any{}
			if q.Start < 4 {
				data = append(data, map[string]any{"name": "row", "value": q.Start}, map[string]any{"name": "row", "value": q.Start + 1})
			}
			testutil.NewSuccessResponse("ok", map[string]any{"data": data, "next": q.Start + len(data)}).Write(w, r)
		})

		out, err := c.run("history", "--type", "simpanan", "--limit", "2")
		require.NoError(t, err)
		require.Equal(t, "500", out["total"])
		require.Len(t, out["entries"], 2)
		require.Equal(t, true, out["has_more"])

		out, err = c.run("history", "--type", "simpanan", "--limit", "2", "--all")
		require.NoError(t, err)
		require.Len(t, out["entries"], 4)
	})

	t.Run("loan and deposit", func(t *testing.T) {
		c := newCLI(t)
		c.mock.SetResponse("trx/loan", testutil.NewSuccessResponse("Pinjaman diajukan", nil))
		c.mock.SetResponse("trx/deposit", testutil.NewSuccessResponse("Setoran diterima", nil))

		out, err := c.run("loan", "--amount", "1000000")
		require.NoError(t, err)
		require.Equal(t, "Pinjaman diajukan", out["message"])

		proof := filepath.Join(t.TempDir(), "bukti.png")
		require.NoError(t, os.WriteFile(proof, []byte("PNG"), 0o600))

		out, err = c.run("deposit", "--amount", "50000", "--file", proof)
		require.NoError(t, err)
		require.Equal(t, "Setoran diterima", out["message"])
	})

	t.Run("usage errors", func(t *testing.T) {
		c := newCLI(t)

		_, err := c.run()
		require.ErrorIs(t, err, errUsage)

		_, err = c.run("transfer")
		require.ErrorIs(t, err, errUsage)

		_, err = c.run("loan")
		require.ErrorIs(t, err, errUsage)

		_, err = c.run("deposit", "--amount", "1")
		require.ErrorIs(t, err, errUsage)

		_, err = c.run("loan", "--amount", "lots")
		require.ErrorIs(t, err, errUsage)
	})

	t.Run("invalid config", func(t *testing.T) {
		err := run(context.Background(), func(string) string { return "" }, os.Getwd, []string{"status"}, &bytes.Buffer{}, &bytes.Buffer{})
		require.Error(t, err, "base url is required")
	})
}
