package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/osechi/internal/arbiter"
	"github.com/dyluth/osechi/internal/config"
	"github.com/dyluth/osechi/internal/printer"
	"github.com/dyluth/osechi/internal/scaffold"
	"github.com/dyluth/osechi/pkg/box"
	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupBox starts miniredis, writes a config pointing at it and captures
// printer output.
func setupBox(t *testing.T) (string, *miniredis.Miniredis, *bytes.Buffer) {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	dir := t.TempDir()
	path, err := scaffold.Initialize(dir, scaffold.Options{BoxName: "cli-test", RedisURL: "redis://" + mr.Addr()}, false)
	require.NoError(t, err)

	var out bytes.Buffer
	prevOut, prevErr, prevNoColor := printer.Stdout, printer.Stderr, color.NoColor
	printer.Stdout, printer.Stderr, color.NoColor = &out, &out, true
	t.Cleanup(func() {
		printer.Stdout, printer.Stderr, color.NoColor = prevOut, prevErr, prevNoColor
	})

	for _, name := range []string{"REDIS_URL", "OSECHI_BOX", "OSECHI_TOKEN", "OSECHI_TOKEN_SECRET"} {
		t.Setenv(name, "")
	}

	return path, mr, &out
}

func storeClient(t *testing.T, mr *miniredis.Miniredis) *box.Client {
	t.Helper()
	client, err := box.NewClient(&redis.Options{Addr: mr.Addr()}, "cli-test")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestInitCommand_Seed(t *testing.T) {
	path, mr, out := setupBox(t)

	_, err := execute(t, "init", "--seed", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Seeded 3 tiers of 9 slots")
	assert.Equal(t, "3", mr.HGet(box.TiersKey("cli-test"), "count"))

	out.Reset()
	_, err = execute(t, "init", "--seed", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "already exists, left unchanged")
}

func TestInitCommand_RefusesExistingConfig(t *testing.T) {
	path, _, out := setupBox(t)
	seedInit = false
	forceInit = false

	_, err := execute(t, "init", "-c", path)
	require.Error(t, err)
	assert.Equal(t, "box already configured", err.Error())
	assert.Contains(t, out.String(), "osechi init --force")
}

func TestClaimShowRelease(t *testing.T) {
	path, mr, out := setupBox(t)

	_, err := execute(t, "claim", "0", "2", "-c", path, "--by", "Yuki", "--dish", "Kuri Kinton", "--colour", "Yellow", "--origin", "Japan")
	require.NoError(t, err, out.String())
	assert.Contains(t, out.String(), "claimed Kuri Kinton for Yuki")

	got, err := storeClient(t, mr).ReadBox(context.Background())
	require.NoError(t, err)
	b := box.Normalize(got, box.DefaultLayout())
	require.NotNil(t, b.SlotAt(0, 2))
	assert.Equal(t, "Kuri Kinton", b.SlotAt(0, 2).Title)
	assert.True(t, b.SlotAt(0, 2).Owner.IsCommunal(), "CLI guests claim anonymously")

	t.Run("duplicate dish is rejected", func(t *testing.T) {
		out.Reset()
		_, err := execute(t, "claim", "1", "0", "-c", path, "--by", "Ken", "--dish", "kuri kinton", "--colour", "Yellow")
		require.Error(t, err)
		assert.Equal(t, "claim rejected", err.Error())
		assert.Contains(t, out.String(), "Reason: DuplicateTitle")
	})

	t.Run("out of range position", func(t *testing.T) {
		_, err := execute(t, "claim", "5", "0", "-c", path, "--by", "Ken", "--dish", "Tai", "--colour", "Red")
		require.Error(t, err)
		assert.Equal(t, "no such slot", err.Error())
	})

	t.Run("show jsonl", func(t *testing.T) {
		stdout, err := execute(t, "show", "-c", path, "-o", "jsonl")
		require.NoError(t, err)
		assert.Contains(t, stdout, `"title":"Kuri Kinton"`)
		assert.Contains(t, stdout, `"path":"osechi/tiers/0/slots/2"`)
	})

	t.Run("show table", func(t *testing.T) {
		stdout, err := execute(t, "show", "-c", path, "-o", "table")
		require.NoError(t, err)
		assert.Contains(t, stdout, "1/27 slots filled (Yellow 1)")
	})

	t.Run("release", func(t *testing.T) {
		out.Reset()
		_, err := execute(t, "release", "0", "2", "-c", path)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "released (Kuri Kinton)")

		out.Reset()
		_, err = execute(t, "release", "0", "2", "-c", path)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "is already empty")
	})
}

func TestClaimCommand_TokenWithoutSecret(t *testing.T) {
	path, _, _ := setupBox(t)

	_, err := execute(t, "claim", "0", "0", "-c", path, "--by", "A", "--dish", "Ebi", "--colour", "Red", "--token", "abc")
	require.Error(t, err)
	assert.Equal(t, "identity token cannot be verified", err.Error())
	claimToken = ""
}

func TestShowCommand_NotSeeded(t *testing.T) {
	path, _, _ := setupBox(t)

	_, err := execute(t, "show", "-c", path, "-o", "table")
	require.Error(t, err)
	assert.Equal(t, "box not found", err.Error())
}

func TestLoadConfig_ExplicitMissingFile(t *testing.T) {
	_, _, _ = setupBox(t)

	_, err := execute(t, "show", "-c", filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
	assert.Equal(t, "invalid configuration", err.Error())
}

func TestLoadConfig_EnvOverridesBox(t *testing.T) {
	path, mr, _ := setupBox(t)
	t.Setenv("OSECHI_BOX", "other-box")

	_, err := execute(t, "init", "--seed", "-c", path)
	require.NoError(t, err)
	assert.Equal(t, "3", mr.HGet(box.TiersKey("other-box"), "count"))
	assert.False(t, mr.Exists(box.TiersKey("cli-test")))
}

func TestSessionClose_WaitsForAcceptedWrites(t *testing.T) {
	path, mr, _ := setupBox(t)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	ctx := context.Background()
	s, err := openSession(ctx, cfg, zerolog.Nop(), nil)
	require.NoError(t, err)

	result := s.engine.Claim(1, 4, arbiter.Payload{
		OwnerLabel: "Ann",
		Title:      "Kazunoko",
		Attribute:  box.AttributeYellow,
	})
	require.True(t, result.Success, result.Message)

	// No flush: closing alone must not drop the queued write.
	s.Close()

	raw, err := storeClient(t, mr).ReadBox(ctx)
	require.NoError(t, err)
	require.Len(t, raw.Tiers, 3)
	require.NotNil(t, raw.Tiers[1].Slots[4])
	assert.Equal(t, "Kazunoko", raw.Tiers[1].Slots[4].Title)
}
